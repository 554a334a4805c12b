package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/events"
	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDispatcher() *Dispatcher {
	return NewDispatcher(discardLogger(), time.Second)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	ttls map[string]time.Duration
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, ttls: map[string]time.Duration{}}
}

func (l *fakeLocker) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return func() {}, false, nil
	}
	l.held[name] = true
	l.ttls[name] = ttl
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true, nil
}

type fakeAnalysisStore struct {
	mu      sync.Mutex
	items   map[string]*models.ModerationAnalysis
	order   []string
	creates int
	listErr error
	markErr error
}

func newFakeAnalysisStore() *fakeAnalysisStore {
	return &fakeAnalysisStore{items: map[string]*models.ModerationAnalysis{}}
}

func (s *fakeAnalysisStore) put(a *models.ModerationAnalysis) *models.ModerationAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.ReportSetKey = models.ReportSetKey(a.AnalyzedReportIDs)
	s.items[a.ID.Hex()] = a
	s.order = append(s.order, a.ID.Hex())
	return a
}

func (s *fakeAnalysisStore) findLocked(userID, key string) *models.ModerationAnalysis {
	for _, id := range s.order {
		a := s.items[id]
		if !a.Resolved && a.UserID == userID && a.ReportSetKey == key {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (s *fakeAnalysisStore) CreateUnlessDuplicate(_ context.Context, a *models.ModerationAnalysis) (*models.ModerationAnalysis, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ReportSetKey = models.ReportSetKey(a.AnalyzedReportIDs)
	if existing := s.findLocked(a.UserID, a.ReportSetKey); existing != nil {
		return existing, false, nil
	}
	a.ID = primitive.NewObjectID()
	s.items[a.ID.Hex()] = a
	s.order = append(s.order, a.ID.Hex())
	s.creates++
	cp := *a
	return &cp, true, nil
}

func (s *fakeAnalysisStore) FindUnresolvedBySet(_ context.Context, userID, key string) (*models.ModerationAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(userID, key), nil
}

func (s *fakeAnalysisStore) Get(_ context.Context, id string) (*models.ModerationAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: analysis %s", models.ErrNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAnalysisStore) List(_ context.Context, f models.AnalysisFilter) ([]models.ModerationAnalysis, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.Normalize()
	var out []models.ModerationAnalysis
	for _, id := range s.order {
		a := s.items[id]
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		if f.Classification != nil && a.Classification != *f.Classification {
			continue
		}
		out = append(out, *a)
	}
	return out, int64(len(out)), nil
}

func (s *fakeAnalysisStore) ListPendingNotification(context.Context) ([]models.ModerationAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ModerationAnalysis
	for _, id := range s.order {
		if a := s.items[id]; !a.Resolved && !a.Notified {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeAnalysisStore) MarkNotified(_ context.Context, ids []string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return 0, s.markErr
	}
	var n int64
	for _, id := range ids {
		if a, ok := s.items[id]; ok && !a.Notified {
			a.Notified = true
			t := at
			a.NotifiedAt = &t
			n++
		}
	}
	return n, nil
}

func (s *fakeAnalysisStore) MarkResolved(_ context.Context, id string, r models.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%w: analysis %s", models.ErrNotFound, id)
	}
	if a.Resolved {
		return fmt.Errorf("%w: %s", models.ErrAlreadyResolved, id)
	}
	a.Resolved = true
	by, at, action, notes := r.ModeratorID, r.ResolvedAt, r.Action, r.Notes
	a.ResolvedBy, a.ResolvedAt, a.ResolutionAction, a.ResolutionNotes = &by, &at, &action, &notes
	applied := r.SanctionApplied
	a.SanctionApplied = &applied
	if r.SanctionError != "" {
		sanctionErr := r.SanctionError
		a.SanctionError = &sanctionErr
	}
	return nil
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.AccountState
	banCalls int
	failOn   map[string]error
}

func newFakeAccounts(accounts ...models.AccountState) *fakeAccounts {
	f := &fakeAccounts{accounts: map[string]*models.AccountState{}, failOn: map[string]error{}}
	for _, a := range accounts {
		a := a
		f.accounts[a.UserID] = &a
	}
	return f
}

func (f *fakeAccounts) Get(_ context.Context, userID string) (*models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) Ban(_ context.Context, p models.BanParams) (*models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banCalls++
	a, ok := f.accounts[p.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, p.UserID)
	}
	if a.Status == models.AccountBanned {
		return nil, models.ErrAlreadyBanned
	}
	at, by, reason := p.At, p.ModeratorID, p.Reason
	a.Status = models.AccountBanned
	a.BannedAt, a.BannedBy, a.BanReason = &at, &by, &reason
	a.SuspendedAt, a.SuspensionExpiresAt, a.SuspensionReason, a.SuspensionDays, a.SuspendedBy = nil, nil, nil, nil, nil
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) Suspend(_ context.Context, p models.SuspendParams) (*models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[p.UserID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, p.UserID)
	}
	switch a.Status {
	case models.AccountBanned:
		return nil, models.ErrUserBanned
	case models.AccountSuspended:
		return nil, models.ErrAlreadySuspended
	}
	at, exp, reason, days, by := p.At, p.ExpiresAt, p.Reason, p.Days, p.ModeratorID
	a.Status = models.AccountSuspended
	a.SuspendedAt, a.SuspensionExpiresAt, a.SuspensionReason, a.SuspensionDays, a.SuspendedBy = &at, &exp, &reason, &days, &by
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) ListExpiredSuspensions(_ context.Context, cutoff time.Time) ([]models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AccountState
	for _, a := range f.accounts {
		if a.Status == models.AccountSuspended && a.SuspensionExpiresAt != nil && !a.SuspensionExpiresAt.After(cutoff) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeAccounts) Reactivate(_ context.Context, userID string, at, cutoff time.Time) (*models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[userID]; err != nil {
		return nil, err
	}
	a, ok := f.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", models.ErrNotFound, userID)
	}
	if a.Status != models.AccountSuspended || a.SuspensionExpiresAt.After(cutoff) {
		return nil, models.ErrConflict
	}
	prev := *a
	t := at
	a.Status = models.AccountActive
	a.SuspendedAt, a.SuspensionExpiresAt, a.SuspensionReason, a.SuspensionDays, a.SuspendedBy = nil, nil, nil, nil, nil
	a.TokenInvalidatedAt = &t
	return &prev, nil
}

type fakeLedger struct {
	mu        sync.Mutex
	actions   []models.ModerationAction
	appendErr error
}

func (l *fakeLedger) Append(_ context.Context, a *models.ModerationAction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		return l.appendErr
	}
	a.ID = primitive.NewObjectID()
	l.actions = append(l.actions, *a)
	return nil
}

func (l *fakeLedger) ListByUser(_ context.Context, userID string, _ int64) ([]models.ModerationAction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.ModerationAction
	for i := len(l.actions) - 1; i >= 0; i-- {
		if l.actions[i].UserID == userID {
			out = append(out, l.actions[i])
		}
	}
	return out, nil
}

func (l *fakeLedger) byType(userID string, t models.ActionType) []models.ModerationAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.ModerationAction
	for _, a := range l.actions {
		if a.UserID == userID && a.ActionType == t {
			out = append(out, a)
		}
	}
	return out
}

type fakeDomain struct {
	mu            sync.Mutex
	domain        models.Domain
	reports       []models.Report
	listErr       error
	commitments   []models.Commitment
	commitmentErr error
	cascadeErr    error
	deactivateErr error
	deactivated   []string
	hidden        []string
	deleted       []string
	retiredBefore []time.Time
}

func (d *fakeDomain) Domain() models.Domain { return d.domain }

func (d *fakeDomain) ListActiveReports(context.Context) ([]models.Report, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.reports, nil
}

func (d *fakeDomain) GetReports(_ context.Context, ids []string) ([]models.Report, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Report
	for _, r := range d.reports {
		if want[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *fakeDomain) DeactivateReports(_ context.Context, ids []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deactivateErr != nil {
		return 0, d.deactivateErr
	}
	d.deactivated = append(d.deactivated, ids...)
	return len(ids), nil
}

func (d *fakeDomain) SoftDeleteOldReports(_ context.Context, cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retiredBefore = append(d.retiredBefore, cutoff)
	return 0, nil
}

func (d *fakeDomain) HideUserContent(_ context.Context, userID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cascadeErr != nil {
		return 0, d.cascadeErr
	}
	d.hidden = append(d.hidden, userID)
	return 1, nil
}

func (d *fakeDomain) SoftDeleteUserContent(_ context.Context, userID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cascadeErr != nil {
		return 0, d.cascadeErr
	}
	d.deleted = append(d.deleted, userID)
	return 1, nil
}

func (d *fakeDomain) CheckUserActiveCommitments(context.Context, string) ([]models.Commitment, error) {
	if d.commitmentErr != nil {
		return nil, d.commitmentErr
	}
	return d.commitments, nil
}

type fakeBus struct {
	mu          sync.Mutex
	banned      []events.UserBanned
	suspended   []events.UserSuspended
	reactivated []events.UserReactivated
	notified    []events.ModeratorsNotified
	err         error
}

func (b *fakeBus) UserBanned(_ context.Context, e events.UserBanned) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.banned = append(b.banned, e)
	return nil
}

func (b *fakeBus) UserSuspended(_ context.Context, e events.UserSuspended) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.suspended = append(b.suspended, e)
	return nil
}

func (b *fakeBus) UserReactivated(_ context.Context, e events.UserReactivated) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.reactivated = append(b.reactivated, e)
	return nil
}

func (b *fakeBus) NotifyModerators(_ context.Context, e events.ModeratorsNotified) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.notified = append(b.notified, e)
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []models.EmailMessage
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg models.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeSessions struct {
	mu          sync.Mutex
	invalidated []string
}

func (s *fakeSessions) InvalidateUser(_ context.Context, userID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, userID)
	return nil
}

type fakeFeed struct {
	events []FeedEvent
}

func (f *fakeFeed) Broadcast(_ context.Context, e FeedEvent) error {
	f.events = append(f.events, e)
	return nil
}
