package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/salvioris-moderation/internal/middleware"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/AnshRaj112/salvioris-moderation/internal/services"
)

type BatchRunner interface {
	RunBatchAnalysis(ctx context.Context, triggeredBy string) (*services.BatchResult, error)
}

type AnalysisReader interface {
	Get(ctx context.Context, id string) (*models.ModerationAnalysis, error)
	List(ctx context.Context, f models.AnalysisFilter) ([]models.ModerationAnalysis, int64, error)
}

type ReportFetcher interface {
	FetchReports(ctx context.Context, externalIDs []string) []models.Report
}

type SanctionService interface {
	ResolveAnalysis(ctx context.Context, req services.ResolveRequest) (*services.ResolveOutcome, error)
	SanctionForCompliance(ctx context.Context, req services.ComplianceRequest) (*services.SanctionResult, error)
	UserStatus(ctx context.Context, userID string) (*services.UserStatus, error)
}

type ReactivationRunner interface {
	ReactivateExpiredSuspensions(ctx context.Context, triggeredBy string) (*services.ReactivationResult, error)
}

// ModerationHandler serves the moderator console commands.
type ModerationHandler struct {
	batch       BatchRunner
	analyses    AnalysisReader
	reports     ReportFetcher
	sanctions   SanctionService
	reactivator ReactivationRunner
	logger      *slog.Logger
}

func NewModerationHandler(batch BatchRunner, analyses AnalysisReader, reports ReportFetcher, sanctions SanctionService, reactivator ReactivationRunner, logger *slog.Logger) *ModerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationHandler{
		batch:       batch,
		analyses:    analyses,
		reports:     reports,
		sanctions:   sanctions,
		reactivator: reactivator,
		logger:      logger.With("module", "handlers"),
	}
}

func triggeredBy(r *http.Request) string {
	return "moderator:" + middleware.ModeratorIDFromContext(r.Context())
}

// runInBackground reports whether the caller asked not to wait for a job.
func runInBackground(r *http.Request) bool {
	wait := strings.TrimSpace(r.URL.Query().Get("wait"))
	return wait == "false" || wait == "0"
}

// RunAnalysis triggers a batch analysis. With ?wait=false the run continues
// after the response and 202 is returned.
func (h *ModerationHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	by := triggeredBy(r)
	if runInBackground(r) {
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := h.batch.RunBatchAnalysis(ctx, by); err != nil {
				h.logger.Error("background batch analysis failed", "operation", "run_analysis", "outcome", "failure", "error", err)
			}
		}()
		writeOK(w, http.StatusAccepted, "Batch analysis started", nil)
		return
	}
	result, err := h.batch.RunBatchAnalysis(r.Context(), by)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("Analyzed %d users", result.Analyzed), result)
}

type analysisPage struct {
	Analyses []models.ModerationAnalysis `json:"analyses"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
}

func parseAnalysisFilter(r *http.Request) (models.AnalysisFilter, error) {
	q := r.URL.Query()
	var f models.AnalysisFilter
	if v := q.Get("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: resolved must be true or false", models.ErrValidation)
		}
		f.Resolved = &b
	}
	if v := q.Get("classification"); v != "" {
		c := models.Classification(v)
		if c != models.ClassificationReview && c != models.ClassificationBan {
			return f, fmt.Errorf("%w: classification must be Review or Ban", models.ErrValidation)
		}
		f.Classification = &c
	}
	for name, dst := range map[string]*int{"page": &f.Page, "page_size": &f.PageSize} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return f, fmt.Errorf("%w: %s must be a number", models.ErrValidation, name)
			}
			*dst = n
		}
	}
	f.Normalize()
	return f, nil
}

func (h *ModerationHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalysisFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	items, total, err := h.analyses.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list analyses failed", "operation", "list_analyses", "outcome", "failure", "error", err)
		writeError(w, err)
		return
	}
	if items == nil {
		items = []models.ModerationAnalysis{}
	}
	writeOK(w, http.StatusOK, "Analyses retrieved", analysisPage{
		Analyses: items, Total: total, Page: filter.Page, PageSize: filter.PageSize,
	})
}

type analysisReports struct {
	Analysis *models.ModerationAnalysis `json:"analysis"`
	Reports  []models.Report            `json:"reports"`
	Missing  []string                   `json:"missing,omitempty"`
}

// AnalysisReports returns an analysis together with the full reports it was
// built from. Reports a domain can no longer produce are listed as missing.
func (h *ModerationHandler) AnalysisReports(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analyses.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	reports := h.reports.FetchReports(r.Context(), analysis.AnalyzedReportIDs)
	found := make(map[string]bool, len(reports))
	for _, rep := range reports {
		found[rep.ExternalID()] = true
	}
	var missing []string
	for _, id := range analysis.AnalyzedReportIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if reports == nil {
		reports = []models.Report{}
	}
	writeOK(w, http.StatusOK, "Reports retrieved", analysisReports{Analysis: analysis, Reports: reports, Missing: missing})
}

type resolveBody struct {
	Action         models.ResolutionAction `json:"action"`
	Notes          string                  `json:"notes"`
	SuspensionDays int                     `json:"suspensionDays"`
}

func (h *ModerationHandler) ResolveAnalysis(w http.ResponseWriter, r *http.Request) {
	var body resolveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	outcome, err := h.sanctions.ResolveAnalysis(r.Context(), services.ResolveRequest{
		AnalysisID:     chi.URLParam(r, "id"),
		Action:         body.Action,
		ModeratorID:    middleware.ModeratorIDFromContext(r.Context()),
		Notes:          body.Notes,
		SuspensionDays: body.SuspensionDays,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	message := "Analysis resolved"
	if outcome.SanctionError != "" {
		message = "Analysis resolved; sanction failed: " + outcome.SanctionError
	}
	writeOK(w, http.StatusOK, message, outcome)
}

// RunReactivation triggers the expired-suspension sweep on demand.
func (h *ModerationHandler) RunReactivation(w http.ResponseWriter, r *http.Request) {
	result, err := h.reactivator.ReactivateExpiredSuspensions(r.Context(), triggeredBy(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("Reactivated %d users", result.Reactivated), result)
}

type complianceBody struct {
	UserID string `json:"userId"`
	Action string `json:"action"`
	Reason string `json:"reason"`
	Days   int    `json:"days"`
}

func (h *ModerationHandler) ComplianceSanction(w http.ResponseWriter, r *http.Request) {
	var body complianceBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.sanctions.SanctionForCompliance(r.Context(), services.ComplianceRequest{
		UserID:       body.UserID,
		ComplianceID: chi.URLParam(r, "complianceId"),
		Action:       services.ComplianceAction(strings.ToLower(strings.TrimSpace(body.Action))),
		Reason:       body.Reason,
		Days:         body.Days,
		ModeratorID:  middleware.ModeratorIDFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Sanction applied", result)
}

func (h *ModerationHandler) UserStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.sanctions.UserStatus(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "User status retrieved", status)
}
