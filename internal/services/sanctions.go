package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
)

const minResolutionLockTTL = time.Minute

// resolutionLockTTL covers a worst-case resolution where every external step
// runs into its timeout: the account write, the commitment snapshot, the
// event, the email, plus a cascade and a report deactivation per domain.
func resolutionLockTTL(step time.Duration, domains int) time.Duration {
	ttl := step*time.Duration(4+2*domains) + 30*time.Second
	return max(ttl, minResolutionLockTTL)
}

type AccountRepository interface {
	Get(ctx context.Context, userID string) (*models.AccountState, error)
	Ban(ctx context.Context, p models.BanParams) (*models.AccountState, error)
	Suspend(ctx context.Context, p models.SuspendParams) (*models.AccountState, error)
	ListExpiredSuspensions(ctx context.Context, cutoff time.Time) ([]models.AccountState, error)
	Reactivate(ctx context.Context, userID string, at, cutoff time.Time) (*models.AccountState, error)
}

type ActionRepository interface {
	Append(ctx context.Context, action *models.ModerationAction) error
	ListByUser(ctx context.Context, userID string, limit int64) ([]models.ModerationAction, error)
}

type SanctionEvents interface {
	UserBanned(ctx context.Context, e events.UserBanned) error
	UserSuspended(ctx context.Context, e events.UserSuspended) error
	UserReactivated(ctx context.Context, e events.UserReactivated) error
}

type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
}

type ReportDeactivator interface {
	DeactivateReports(ctx context.Context, externalIDs []string) (int, []string)
}

// Sanctions executes moderator decisions against account state. The account
// row is the system of truth: once it is committed, audit, events, cascades
// and email are attempted but never roll it back.
type Sanctions struct {
	analyses   AnalysisRepository
	accounts   AccountRepository
	ledger     ActionRepository
	domains    []ContentDomain
	reports    ReportDeactivator
	bus        SanctionEvents
	mailer     Mailer
	locks      JobLocker
	dispatcher *Dispatcher
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewSanctions(
	analyses AnalysisRepository,
	accounts AccountRepository,
	ledger ActionRepository,
	domains []ContentDomain,
	reports ReportDeactivator,
	bus SanctionEvents,
	mailer Mailer,
	locks JobLocker,
	dispatcher *Dispatcher,
	location *time.Location,
	logger *slog.Logger,
) *Sanctions {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Sanctions{
		analyses:   analyses,
		accounts:   accounts,
		ledger:     ledger,
		domains:    domains,
		reports:    reports,
		bus:        bus,
		mailer:     mailer,
		locks:      locks,
		dispatcher: dispatcher,
		location:   location,
		logger:     logger,
		now:        time.Now,
	}
}

type ResolveRequest struct {
	AnalysisID     string
	Action         models.ResolutionAction
	ModeratorID    string
	Notes          string
	SuspensionDays int
}

func (r ResolveRequest) Validate() error {
	if strings.TrimSpace(r.AnalysisID) == "" {
		return fmt.Errorf("%w: analysis id is required", models.ErrValidation)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", models.ErrValidation, r.Action)
	}
	if strings.TrimSpace(r.ModeratorID) == "" {
		return fmt.Errorf("%w: moderator id is required", models.ErrValidation)
	}
	if r.Action == models.ActionSuspendUser && !models.ValidSuspensionDays(r.SuspensionDays) {
		return fmt.Errorf("%w: suspension days must be one of %v", models.ErrValidation, models.AllowedSuspensionDays)
	}
	return nil
}

type ResolveOutcome struct {
	AnalysisID         string                  `json:"analysis_id"`
	UserID             string                  `json:"user_id"`
	Action             models.ResolutionAction `json:"action"`
	SanctionApplied    bool                    `json:"sanction_applied"`
	SanctionError      string                  `json:"sanction_error,omitempty"`
	DeactivatedReports int                     `json:"deactivated_reports"`
	FailedReportIDs    []string                `json:"failed_report_ids,omitempty"`
	ResolvedAt         time.Time               `json:"resolved_at"`
	Sanction           *SanctionResult         `json:"sanction,omitempty"`
}

// ResolveAnalysis applies a moderator's decision. Parameter, lookup and
// already-resolved errors are returned before anything changes. After that
// the sanction runs, the analysed reports are deactivated whatever its
// outcome, and marking the analysis resolved is the last write.
func (s *Sanctions) ResolveAnalysis(ctx context.Context, req ResolveRequest) (*ResolveOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	release, ok, err := s.locks.TryLock(ctx, "analysis:"+req.AnalysisID, resolutionLockTTL(s.dispatcher.timeout, len(s.domains)))
	if err != nil {
		return nil, fmt.Errorf("acquire resolution lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: analysis %s is being resolved", models.ErrConflict, req.AnalysisID)
	}
	defer release()

	analysis, err := s.analyses.Get(ctx, req.AnalysisID)
	if err != nil {
		return nil, err
	}
	if analysis.Resolved {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyResolved, req.AnalysisID)
	}

	ctx = events.WithCorrelationID(ctx, uuid.NewString())
	log := s.logger.With("module", "sanctions", "operation", "resolve_analysis",
		"correlation_id", events.CorrelationID(ctx), "analysis_id", req.AnalysisID, "user_id", analysis.UserID)

	outcome := &ResolveOutcome{AnalysisID: req.AnalysisID, UserID: analysis.UserID, Action: req.Action}
	analysisID := req.AnalysisID
	reason := resolutionReason(req, analysis)

	var sanctionErr error
	switch req.Action {
	case models.ActionBanUser:
		outcome.Sanction, sanctionErr = s.BanUser(ctx, BanRequest{
			UserID: analysis.UserID, ModeratorID: req.ModeratorID, Reason: reason,
			AnalysisID: &analysisID, AffectedReportIDs: analysis.AnalyzedReportIDs,
		})
	case models.ActionSuspendUser:
		outcome.Sanction, sanctionErr = s.SuspendUser(ctx, SuspendRequest{
			UserID: analysis.UserID, ModeratorID: req.ModeratorID, Reason: reason, Days: req.SuspensionDays,
			AnalysisID: &analysisID, AffectedReportIDs: analysis.AnalyzedReportIDs,
		})
	case models.ActionReleaseUser:
		_, sanctionErr = s.ReleaseUser(ctx, analysis.UserID, req.ModeratorID, reason, &analysisID, analysis.AnalyzedReportIDs)
	case models.ActionKeepMonitoring:
		sanctionErr = s.KeepMonitoring(ctx, analysis.UserID, req.ModeratorID, analysisID)
	}
	if sanctionErr != nil {
		outcome.SanctionError = sanctionErr.Error()
		log.Warn("sanction not applied", "action", req.Action, "outcome", "failure", "error", sanctionErr.Error())
	} else {
		outcome.SanctionApplied = true
	}

	outcome.DeactivatedReports, outcome.FailedReportIDs = s.reports.DeactivateReports(ctx, analysis.AnalyzedReportIDs)
	if len(outcome.FailedReportIDs) > 0 {
		log.Warn("some reports were not deactivated", "failed", outcome.FailedReportIDs)
	}

	outcome.ResolvedAt = s.now().UTC()
	if err := s.analyses.MarkResolved(ctx, req.AnalysisID, models.Resolution{
		Action:      req.Action,
		ModeratorID: req.ModeratorID,
		Notes:       req.Notes,
		ResolvedAt:  outcome.ResolvedAt,

		SanctionApplied: outcome.SanctionApplied,
		SanctionError:   outcome.SanctionError,
	}); err != nil {
		return nil, fmt.Errorf("mark analysis resolved: %w", err)
	}

	log.Info("analysis resolved", "action", req.Action, "outcome", "success", "sanction_applied", outcome.SanctionApplied)
	return outcome, nil
}

func resolutionReason(req ResolveRequest, a *models.ModerationAnalysis) string {
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		return notes
	}
	return fmt.Sprintf("Community guidelines violation (%d reports reviewed)", a.TotalReports)
}

type BanRequest struct {
	UserID            string
	ModeratorID       string
	Reason            string
	AnalysisID        *string
	ComplianceID      string
	AffectedReportIDs []string
}

type SuspendRequest struct {
	UserID            string
	ModeratorID       string
	Reason            string
	Days              int
	AnalysisID        *string
	ComplianceID      string
	AffectedReportIDs []string
}

type SanctionResult struct {
	Account         *models.AccountState      `json:"account"`
	Action          *models.ModerationAction  `json:"action,omitempty"`
	Commitments     models.CommitmentSnapshot `json:"commitments"`
	CascadeFailures []models.Domain           `json:"cascade_failures,omitempty"`
	EventEmitted    bool                      `json:"event_emitted"`
	EmailSent       bool                      `json:"email_sent"`
}

// BanUser bans a user who is not already banned. Existing sessions are left
// alone so the client can show the user why before logging them out.
func (s *Sanctions) BanUser(ctx context.Context, req BanRequest) (*SanctionResult, error) {
	current, err := s.accounts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.AccountBanned {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyBanned, req.UserID)
	}

	snapshot := s.snapshotCommitments(ctx, req.UserID)
	at := s.now().UTC()

	account, err := s.accounts.Ban(ctx, models.BanParams{
		UserID: req.UserID, ModeratorID: req.ModeratorID, Reason: req.Reason, At: at,
	})
	if err != nil {
		return nil, err
	}

	result := &SanctionResult{Account: account, Commitments: snapshot}
	result.Action = s.appendAudit(ctx, &models.ModerationAction{
		UserID:      account.UserID,
		ActionType:  models.ActionTypeBanned,
		ModeratorID: stringPtr(req.ModeratorID),
		Reason:      req.Reason,
		AnalysisID:  req.AnalysisID,
		Metadata: models.ActionMetadata{
			Commitments:       &snapshot,
			AffectedReportIDs: req.AffectedReportIDs,
			ComplianceID:      req.ComplianceID,
		},
		CreatedAt: at,
	})

	result.EventEmitted = s.dispatcher.Do(ctx, "emit_user_banned", func(ctx context.Context) error {
		return s.bus.UserBanned(ctx, events.UserBanned{UserID: account.UserID, Reason: req.Reason})
	}, "user_id", account.UserID)

	result.CascadeFailures = s.cascade(ctx, "soft_delete_user_content", account.UserID, ContentDomain.SoftDeleteUserContent)

	result.EmailSent = s.sendNotice(ctx, "send_ban_notice", account, func() (models.EmailMessage, error) {
		return BanNotice(*account, req.Reason, snapshot)
	})
	return result, nil
}

// SuspendUser suspends an active user for one of the allowed durations.
// Banned users are never downgraded.
func (s *Sanctions) SuspendUser(ctx context.Context, req SuspendRequest) (*SanctionResult, error) {
	if !models.ValidSuspensionDays(req.Days) {
		return nil, fmt.Errorf("%w: suspension days must be one of %v", models.ErrValidation, models.AllowedSuspensionDays)
	}

	current, err := s.accounts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case models.AccountBanned:
		return nil, fmt.Errorf("%w: %s", models.ErrUserBanned, req.UserID)
	case models.AccountSuspended:
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadySuspended, req.UserID)
	}

	snapshot := s.snapshotCommitments(ctx, req.UserID)
	at := s.now().UTC()
	expiresAt := at.AddDate(0, 0, req.Days)

	account, err := s.accounts.Suspend(ctx, models.SuspendParams{
		UserID: req.UserID, ModeratorID: req.ModeratorID, Reason: req.Reason,
		Days: req.Days, At: at, ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, err
	}

	result := &SanctionResult{Account: account, Commitments: snapshot}
	result.Action = s.appendAudit(ctx, &models.ModerationAction{
		UserID:      account.UserID,
		ActionType:  models.ActionTypeSuspended,
		ModeratorID: stringPtr(req.ModeratorID),
		Reason:      req.Reason,
		AnalysisID:  req.AnalysisID,
		Metadata: models.ActionMetadata{
			Commitments:         &snapshot,
			SuspensionDays:      req.Days,
			SuspendedAt:         &at,
			SuspensionExpiresAt: &expiresAt,
			AffectedReportIDs:   req.AffectedReportIDs,
			ComplianceID:        req.ComplianceID,
		},
		CreatedAt: at,
	})

	result.EventEmitted = s.dispatcher.Do(ctx, "emit_user_suspended", func(ctx context.Context) error {
		return s.bus.UserSuspended(ctx, events.UserSuspended{UserID: account.UserID, Reason: req.Reason, ExpiresAt: expiresAt})
	}, "user_id", account.UserID)

	result.CascadeFailures = s.cascade(ctx, "hide_user_content", account.UserID, ContentDomain.HideUserContent)

	result.EmailSent = s.sendNotice(ctx, "send_suspension_notice", account, func() (models.EmailMessage, error) {
		return SuspensionNotice(*account, req.Reason, req.Days, expiresAt, s.location, snapshot)
	})
	return result, nil
}

// ReleaseUser records that the reports did not warrant a sanction. Account
// state is untouched.
func (s *Sanctions) ReleaseUser(ctx context.Context, userID, moderatorID, reason string, analysisID *string, reportIDs []string) (*models.ModerationAction, error) {
	action := &models.ModerationAction{
		UserID:      userID,
		ActionType:  models.ActionTypeReleased,
		ModeratorID: stringPtr(moderatorID),
		Reason:      reason,
		AnalysisID:  analysisID,
		Metadata:    models.ActionMetadata{AffectedReportIDs: reportIDs},
		CreatedAt:   s.now().UTC(),
	}
	if err := s.ledger.Append(ctx, action); err != nil {
		return nil, fmt.Errorf("append release audit: %w", err)
	}
	return action, nil
}

// KeepMonitoring changes nothing; the decision lives on the analysis itself.
func (s *Sanctions) KeepMonitoring(ctx context.Context, userID, moderatorID, analysisID string) error {
	s.logger.Info("user kept under monitoring",
		"module", "sanctions", "correlation_id", events.CorrelationID(ctx),
		"user_id", userID, "moderator_id", moderatorID, "analysis_id", analysisID)
	return nil
}

type ComplianceAction string

const (
	ComplianceBan     ComplianceAction = "ban"
	ComplianceSuspend ComplianceAction = "suspend"
)

type ComplianceRequest struct {
	UserID       string
	ComplianceID string
	Action       ComplianceAction
	Reason       string
	Days         int
	ModeratorID  string
}

// SanctionForCompliance bans or suspends a user for a named compliance
// violation without going through report analysis.
func (s *Sanctions) SanctionForCompliance(ctx context.Context, req ComplianceRequest) (*SanctionResult, error) {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	case strings.TrimSpace(req.ComplianceID) == "":
		return nil, fmt.Errorf("%w: compliance id is required", models.ErrValidation)
	case strings.TrimSpace(req.ModeratorID) == "":
		return nil, fmt.Errorf("%w: moderator id is required", models.ErrValidation)
	case strings.TrimSpace(req.Reason) == "":
		return nil, fmt.Errorf("%w: reason is required", models.ErrValidation)
	}

	ctx = events.WithCorrelationID(ctx, uuid.NewString())
	reason := fmt.Sprintf("compliance:%s: %s", req.ComplianceID, strings.TrimSpace(req.Reason))

	switch req.Action {
	case ComplianceBan:
		return s.BanUser(ctx, BanRequest{
			UserID: req.UserID, ModeratorID: req.ModeratorID, Reason: reason, ComplianceID: req.ComplianceID,
		})
	case ComplianceSuspend:
		return s.SuspendUser(ctx, SuspendRequest{
			UserID: req.UserID, ModeratorID: req.ModeratorID, Reason: reason, Days: req.Days, ComplianceID: req.ComplianceID,
		})
	default:
		return nil, fmt.Errorf("%w: compliance action must be ban or suspend", models.ErrValidation)
	}
}

// snapshotCommitments gathers active commitments from every domain. A domain
// that cannot answer contributes nothing.
func (s *Sanctions) snapshotCommitments(ctx context.Context, userID string) models.CommitmentSnapshot {
	var (
		mu    sync.Mutex
		items []models.Commitment
		wg    sync.WaitGroup
	)
	for _, d := range s.domains {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatcher.Do(ctx, "check_user_active_commitments", func(ctx context.Context) error {
				found, err := d.CheckUserActiveCommitments(ctx, userID)
				if err != nil {
					return err
				}
				mu.Lock()
				items = append(items, found...)
				mu.Unlock()
				return nil
			}, "user_id", userID, "domain", d.Domain())
		}()
	}
	wg.Wait()
	return models.NewCommitmentSnapshot(items, s.now().UTC())
}

func (s *Sanctions) cascade(ctx context.Context, operation, userID string, fn func(ContentDomain, context.Context, string) (int, error)) []models.Domain {
	var failed []models.Domain
	for _, d := range s.domains {
		ok := s.dispatcher.Do(ctx, operation, func(ctx context.Context) error {
			_, err := fn(d, ctx, userID)
			return err
		}, "user_id", userID, "domain", d.Domain())
		if !ok {
			failed = append(failed, d.Domain())
		}
	}
	return failed
}

func (s *Sanctions) sendNotice(ctx context.Context, operation string, account *models.AccountState, render func() (models.EmailMessage, error)) bool {
	if account.Email == "" {
		s.logger.Warn("no email address on account, notice skipped",
			"module", "sanctions", "operation", operation, "user_id", account.UserID)
		return false
	}
	return s.dispatcher.Do(ctx, operation, func(ctx context.Context) error {
		msg, err := render()
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, msg)
	}, "user_id", account.UserID)
}

// appendAudit writes the ledger entry. A failure is logged; the committed
// account change stands.
func (s *Sanctions) appendAudit(ctx context.Context, action *models.ModerationAction) *models.ModerationAction {
	if err := s.ledger.Append(ctx, action); err != nil {
		s.logger.Error("audit append failed",
			"module", "sanctions", "correlation_id", events.CorrelationID(ctx),
			"user_id", action.UserID, "action_type", action.ActionType, "outcome", "failure", "error", err.Error())
		return nil
	}
	return action
}

// UserStatus is an account's current state with its audit history.
type UserStatus struct {
	Account *models.AccountState      `json:"account"`
	History []models.ModerationAction `json:"history"`
}

func (s *Sanctions) UserStatus(ctx context.Context, userID string) (*UserStatus, error) {
	account, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.ledger.ListByUser(ctx, userID, 50)
	if err != nil {
		return nil, fmt.Errorf("list audit history: %w", err)
	}
	return &UserStatus{Account: account, History: history}, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsConflict reports whether err is a conflicting-state rejection.
func IsConflict(err error) bool {
	return errors.Is(err, models.ErrConflict) ||
		errors.Is(err, models.ErrAlreadyResolved) ||
		errors.Is(err, models.ErrAlreadyBanned) ||
		errors.Is(err, models.ErrAlreadySuspended) ||
		errors.Is(err, models.ErrUserBanned) ||
		errors.Is(err, models.ErrJobRunning)
}
