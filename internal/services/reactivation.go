package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/google/uuid"
)

const (
	reactivationLockName = "reactivation_sweep"
	reactivationLockTTL  = 30 * time.Minute
)

type UserSessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID string, at time.Time) error
}

// Reactivator lifts suspensions that have run out. The scheduled sweep and
// the operator trigger both call ReactivateExpiredSuspensions.
type Reactivator struct {
	accounts   AccountRepository
	ledger     ActionRepository
	sessions   UserSessionInvalidator
	bus        SanctionEvents
	mailer     Mailer
	locks      JobLocker
	dispatcher *Dispatcher
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

func NewReactivator(
	accounts AccountRepository,
	ledger ActionRepository,
	sessions UserSessionInvalidator,
	bus SanctionEvents,
	mailer Mailer,
	locks JobLocker,
	dispatcher *Dispatcher,
	location *time.Location,
	logger *slog.Logger,
) *Reactivator {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactivator{
		accounts:   accounts,
		ledger:     ledger,
		sessions:   sessions,
		bus:        bus,
		mailer:     mailer,
		locks:      locks,
		dispatcher: dispatcher,
		location:   location,
		logger:     logger,
		now:        time.Now,
	}
}

type ReactivationFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type ReactivationResult struct {
	SweepID     string                `json:"sweep_id"`
	TriggeredBy string                `json:"triggered_by"`
	Cutoff      time.Time             `json:"cutoff"`
	Reactivated int                   `json:"reactivated"`
	Failed      int                   `json:"failed"`
	UserIDs     []string              `json:"user_ids"`
	Failures    []ReactivationFailure `json:"failures,omitempty"`
}

// EndOfDay is the last instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
}

// ReactivateExpiredSuspensions reactivates every suspension ending by the end
// of today. A user that fails is recorded and the sweep moves on.
func (r *Reactivator) ReactivateExpiredSuspensions(ctx context.Context, triggeredBy string) (*ReactivationResult, error) {
	release, ok, err := r.locks.TryLock(ctx, reactivationLockName, reactivationLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire reactivation lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: reactivation sweep", models.ErrJobRunning)
	}
	defer release()

	now := r.now()
	result := &ReactivationResult{
		SweepID:     uuid.NewString(),
		TriggeredBy: triggeredBy,
		Cutoff:      EndOfDay(now, r.location),
		UserIDs:     []string{},
	}
	ctx = events.WithCorrelationID(ctx, result.SweepID)
	log := r.logger.With("module", "reactivation", "operation", "reactivate_expired_suspensions", "correlation_id", result.SweepID)

	due, err := r.accounts.ListExpiredSuspensions(ctx, result.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired suspensions: %w", err)
	}

	for _, account := range due {
		if err := r.reactivateOne(ctx, account.UserID, now.UTC(), result.Cutoff); err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ReactivationFailure{UserID: account.UserID, Error: err.Error()})
			log.Error("reactivation failed", "user_id", account.UserID, "outcome", "failure", "error", err.Error())
			continue
		}
		result.Reactivated++
		result.UserIDs = append(result.UserIDs, account.UserID)
	}

	log.Info("reactivation sweep finished",
		"triggered_by", triggeredBy, "due", len(due), "reactivated", result.Reactivated, "failed", result.Failed)
	return result, nil
}

func (r *Reactivator) reactivateOne(ctx context.Context, userID string, at, cutoff time.Time) error {
	previous, err := r.accounts.Reactivate(ctx, userID, at, cutoff)
	if err != nil {
		return err
	}

	r.dispatcher.Do(ctx, "invalidate_user_sessions", func(ctx context.Context) error {
		return r.sessions.InvalidateUser(ctx, userID, at)
	}, "user_id", userID)

	audit := &models.ModerationAction{
		UserID:     userID,
		ActionType: models.ActionTypeReactivated,
		Reason:     "Suspension period ended",
		Metadata: models.ActionMetadata{
			SuspendedAt:             previous.SuspendedAt,
			SuspensionExpiresAt:     previous.SuspensionExpiresAt,
			IsAutomaticReactivation: true,
		},
		CreatedAt: at,
	}
	if previous.SuspensionDays != nil {
		audit.Metadata.SuspensionDays = *previous.SuspensionDays
	}
	if err := r.ledger.Append(ctx, audit); err != nil {
		r.logger.Error("audit append failed",
			"module", "reactivation", "correlation_id", events.CorrelationID(ctx),
			"user_id", userID, "outcome", "failure", "error", err.Error())
	}

	r.dispatcher.Do(ctx, "emit_user_reactivated", func(ctx context.Context) error {
		return r.bus.UserReactivated(ctx, events.UserReactivated{UserID: userID})
	}, "user_id", userID)

	if previous.Email != "" {
		r.dispatcher.Do(ctx, "send_reactivation_notice", func(ctx context.Context) error {
			msg, err := ReactivationNotice(*previous)
			if err != nil {
				return err
			}
			return r.mailer.Send(ctx, msg)
		}, "user_id", userID)
	}
	return nil
}
