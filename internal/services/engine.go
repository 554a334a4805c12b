package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	banOffensiveThreshold    = 3
	reviewTotalThreshold     = 10
	reviewViolationThreshold = 2

	batchLockName = "batch_analysis"
	batchLockTTL  = 2 * time.Hour
)

// AnalysisRepository is the durable store of analyses.
type AnalysisRepository interface {
	CreateUnlessDuplicate(ctx context.Context, a *models.ModerationAnalysis) (*models.ModerationAnalysis, bool, error)
	FindUnresolvedBySet(ctx context.Context, userID, setKey string) (*models.ModerationAnalysis, error)
	Get(ctx context.Context, id string) (*models.ModerationAnalysis, error)
	List(ctx context.Context, f models.AnalysisFilter) ([]models.ModerationAnalysis, int64, error)
	ListPendingNotification(ctx context.Context) ([]models.ModerationAnalysis, error)
	MarkNotified(ctx context.Context, ids []string, at time.Time) (int64, error)
	MarkResolved(ctx context.Context, id string, r models.Resolution) error
}

type ReportSource interface {
	CollectActiveReports(ctx context.Context) []models.ReportBundle
	RetireStaleReports(ctx context.Context, cutoff time.Time) int
}

type SafetyClassifier interface {
	ClassifyText(ctx context.Context, text string) (models.SafetyVerdict, error)
}

type SummaryWriter interface {
	Summarize(ctx context.Context, in SummaryInput) string
}

type PendingNotifier interface {
	NotifyPendingAnalyses(ctx context.Context) (int, error)
}

type EngineConfig struct {
	BatchSize       int
	BatchPause      time.Duration
	ReportRetention time.Duration
}

// Engine turns report bundles into analyses and runs the batch pipeline.
type Engine struct {
	reports    ReportSource
	safety     SafetyClassifier
	summarizer SummaryWriter
	store      AnalysisRepository
	matcher    *ViolationMatcher
	notifier   PendingNotifier
	locks      JobLocker
	cfg        EngineConfig
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(
	reports ReportSource,
	safety SafetyClassifier,
	summarizer SummaryWriter,
	store AnalysisRepository,
	matcher *ViolationMatcher,
	notifier PendingNotifier,
	locks JobLocker,
	cfg EngineConfig,
	logger *slog.Logger,
) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reports:    reports,
		safety:     safety,
		summarizer: summarizer,
		store:      store,
		matcher:    matcher,
		notifier:   notifier,
		locks:      locks,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Classify maps report counters to a verdict. Only the offensive signal can
// produce Ban; everything else goes to a human.
func Classify(total, offensive, violations int) models.Classification {
	switch {
	case offensive >= banOffensiveThreshold:
		return models.ClassificationBan
	case total >= reviewTotalThreshold:
		return models.ClassificationReview
	case violations >= reviewViolationThreshold:
		return models.ClassificationReview
	default:
		return models.ClassificationReview
	}
}

// EvaluateUser analyses one user's bundle. When an unresolved analysis for
// the identical report set exists it is returned with created=false.
func (e *Engine) EvaluateUser(ctx context.Context, bundle models.ReportBundle) (*models.ModerationAnalysis, bool, error) {
	if bundle.UserID == "" || bundle.Size() == 0 {
		return nil, false, fmt.Errorf("%w: empty report bundle", models.ErrValidation)
	}

	texts := make([]string, 0, bundle.Size())
	for _, r := range bundle.Reports {
		texts = append(texts, r.Text())
	}
	verdict, err := e.safety.ClassifyText(ctx, strings.Join(texts, "\n"))
	if err != nil {
		return nil, false, fmt.Errorf("classify reports for %s: %w", bundle.UserID, err)
	}

	total := bundle.Size()
	offensive := 0
	if verdict.IsOffensive() {
		offensive = total
	}
	violations := e.matcher.Count(bundle.Reports)
	classification := Classify(total, offensive, violations)

	summary := e.summarizer.Summarize(ctx, SummaryInput{
		UserID:           bundle.UserID,
		TotalReports:     total,
		OffensiveReports: offensive,
		ViolationReports: violations,
		Classification:   classification,
		Samples:          bundle.Reports,
	})

	ids := bundle.ExternalIDs()
	existing, err := e.store.FindUnresolvedBySet(ctx, bundle.UserID, models.ReportSetKey(ids))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	return e.store.CreateUnlessDuplicate(ctx, &models.ModerationAnalysis{
		UserID:            bundle.UserID,
		AnalyzedReportIDs: ids,
		TotalReports:      total,
		OffensiveReports:  offensive,
		ViolationReports:  violations,
		Classification:    classification,
		AISummary:         summary,
		CreatedAt:         e.now().UTC(),
	})
}

type UserResult struct {
	UserID         string                `json:"user_id"`
	AnalysisID     string                `json:"analysis_id,omitempty"`
	Classification models.Classification `json:"classification,omitempty"`
	Created        bool                  `json:"created"`
	Error          string                `json:"error,omitempty"`
}

type BatchResult struct {
	RunID       string       `json:"run_id"`
	TriggeredBy string       `json:"triggered_by"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Retired     int          `json:"retired"`
	Analyzed    int          `json:"analyzed"`
	Created     int          `json:"created"`
	Failed      int          `json:"failed"`
	Notified    int          `json:"notified"`
	Results     []UserResult `json:"results"`
}

// RunBatchAnalysis retires stale reports, evaluates every reported user in
// fixed-size concurrent batches separated by a pause, then notifies
// moderators. A user's failure is recorded in its result and never aborts
// the run. Returns models.ErrJobRunning if another run holds the lock.
func (e *Engine) RunBatchAnalysis(ctx context.Context, triggeredBy string) (*BatchResult, error) {
	release, ok, err := e.locks.TryLock(ctx, batchLockName, batchLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: batch analysis", models.ErrJobRunning)
	}
	defer release()

	result := &BatchResult{
		RunID:       uuid.NewString(),
		TriggeredBy: triggeredBy,
		StartedAt:   e.now().UTC(),
		Results:     []UserResult{},
	}
	ctx = events.WithCorrelationID(ctx, result.RunID)
	log := e.logger.With("module", "engine", "operation", "run_batch_analysis", "correlation_id", result.RunID)
	log.Info("batch analysis started", "triggered_by", triggeredBy)

	result.Retired = e.reports.RetireStaleReports(ctx, e.now().Add(-e.cfg.ReportRetention))
	bundles := e.reports.CollectActiveReports(ctx)

	var runErr error
	for start := 0; start < len(bundles); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(bundles))
		chunk := bundles[start:end]
		results := make([]UserResult, len(chunk))

		var g errgroup.Group
		for i, bundle := range chunk {
			g.Go(func() error {
				results[i] = e.evaluateSafely(ctx, log, bundle)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			result.Results = append(result.Results, r)
			if r.Error != "" {
				result.Failed++
				continue
			}
			result.Analyzed++
			if r.Created {
				result.Created++
			}
		}

		if end < len(bundles) {
			if err := e.sleep(ctx, e.cfg.BatchPause); err != nil {
				runErr = err
				break
			}
		}
	}

	if runErr == nil && e.notifier != nil {
		n, err := e.notifier.NotifyPendingAnalyses(ctx)
		if err != nil {
			log.Warn("moderator notification failed", "outcome", "failure", "error", err.Error())
		}
		result.Notified = n
	}

	result.FinishedAt = e.now().UTC()
	log.Info("batch analysis finished",
		"outcome", outcomeOf(runErr),
		"bundles", len(bundles), "analyzed", result.Analyzed, "created", result.Created, "failed", result.Failed)
	return result, runErr
}

func (e *Engine) evaluateSafely(ctx context.Context, log *slog.Logger, bundle models.ReportBundle) (res UserResult) {
	res.UserID = bundle.UserID
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error("user evaluation panicked", "user_id", bundle.UserID, "error", res.Error)
		}
	}()

	analysis, created, err := e.EvaluateUser(ctx, bundle)
	if err != nil {
		res.Error = err.Error()
		log.Error("user evaluation failed", "user_id", bundle.UserID, "outcome", "failure", "error", err.Error())
		return res
	}
	res.AnalysisID = analysis.ID.Hex()
	res.Classification = analysis.Classification
	res.Created = created
	return res
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
