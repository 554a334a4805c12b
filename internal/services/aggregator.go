package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"golang.org/x/sync/errgroup"
)

// ContentDomain is the moderation surface each content domain exposes.
type ContentDomain interface {
	Domain() models.Domain
	ListActiveReports(ctx context.Context) ([]models.Report, error)
	GetReports(ctx context.Context, ids []string) ([]models.Report, error)
	DeactivateReports(ctx context.Context, ids []string) (int, error)
	SoftDeleteOldReports(ctx context.Context, cutoff time.Time) (int, error)
	HideUserContent(ctx context.Context, userID string) (int, error)
	SoftDeleteUserContent(ctx context.Context, userID string) (int, error)
	CheckUserActiveCommitments(ctx context.Context, userID string) ([]models.Commitment, error)
}

// ReportAggregator fans out to every content domain. A failing domain is
// logged and skipped; the others still contribute.
type ReportAggregator struct {
	domains []ContentDomain
	byName  map[models.Domain]ContentDomain
	logger  *slog.Logger
	timeout time.Duration
}

func NewReportAggregator(logger *slog.Logger, timeout time.Duration, domains ...ContentDomain) *ReportAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[models.Domain]ContentDomain, len(domains))
	for _, d := range domains {
		byName[d.Domain()] = d
	}
	return &ReportAggregator{domains: domains, byName: byName, logger: logger, timeout: timeout}
}

func (a *ReportAggregator) Domains() []ContentDomain { return a.domains }

func (a *ReportAggregator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// CollectActiveReports returns one bundle per reported user, ordered by user
// id. Reports with no reported user are dropped.
func (a *ReportAggregator) CollectActiveReports(ctx context.Context) []models.ReportBundle {
	var (
		mu  sync.Mutex
		all []models.Report
	)

	var g errgroup.Group
	for _, d := range a.domains {
		g.Go(func() error {
			callCtx, cancel := a.bounded(ctx)
			defer cancel()

			reports, err := d.ListActiveReports(callCtx)
			if err != nil {
				a.logger.Error("list active reports failed",
					"module", "aggregator", "domain", d.Domain(), "outcome", "failure", "error", err.Error())
				return nil
			}
			mu.Lock()
			all = append(all, reports...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return groupByUser(all)
}

func groupByUser(reports []models.Report) []models.ReportBundle {
	byUser := make(map[string][]models.Report)
	seen := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		userID := strings.TrimSpace(r.ReportedUserID)
		if userID == "" || !r.IsActive {
			continue
		}
		if _, dup := seen[r.ExternalID()]; dup {
			continue
		}
		seen[r.ExternalID()] = struct{}{}
		byUser[userID] = append(byUser[userID], r)
	}

	bundles := make([]models.ReportBundle, 0, len(byUser))
	for userID, rs := range byUser {
		sort.Slice(rs, func(i, j int) bool { return rs[i].ExternalID() < rs[j].ExternalID() })
		bundles = append(bundles, models.ReportBundle{UserID: userID, Reports: rs})
	}
	sort.Slice(bundles, func(i, j int) bool { return bundles[i].UserID < bundles[j].UserID })
	return bundles
}

// RetireStaleReports asks every domain to soft-deactivate active reports
// created before cutoff and returns the total retired.
func (a *ReportAggregator) RetireStaleReports(ctx context.Context, cutoff time.Time) int {
	total := 0
	for _, d := range a.domains {
		callCtx, cancel := a.bounded(ctx)
		n, err := d.SoftDeleteOldReports(callCtx, cutoff)
		cancel()
		if err != nil {
			a.logger.Warn("retire stale reports failed",
				"module", "aggregator", "domain", d.Domain(), "outcome", "failure", "error", err.Error())
			continue
		}
		total += n
	}
	return total
}

// groupExternalIDs splits composite ids by domain. Malformed ids are
// returned separately.
func groupExternalIDs(externalIDs []string) (map[models.Domain][]string, []string) {
	grouped := make(map[models.Domain][]string)
	var bad []string
	for _, ext := range externalIDs {
		d, id, err := models.SplitExternalReportID(ext)
		if err != nil {
			bad = append(bad, ext)
			continue
		}
		grouped[d] = append(grouped[d], id)
	}
	return grouped, bad
}

// DeactivateReports deactivates composite report ids grouped by domain and
// returns the composite ids that could not be deactivated.
func (a *ReportAggregator) DeactivateReports(ctx context.Context, externalIDs []string) (int, []string) {
	grouped, failed := groupExternalIDs(externalIDs)
	deactivated := 0

	for domain, ids := range grouped {
		d, ok := a.byName[domain]
		if !ok {
			for _, id := range ids {
				failed = append(failed, models.ExternalReportID(domain, id))
			}
			continue
		}
		callCtx, cancel := a.bounded(ctx)
		n, err := d.DeactivateReports(callCtx, ids)
		cancel()
		if err != nil {
			a.logger.Warn("deactivate reports failed",
				"module", "aggregator", "domain", domain, "count", len(ids), "outcome", "failure", "error", err.Error())
			for _, id := range ids {
				failed = append(failed, models.ExternalReportID(domain, id))
			}
			continue
		}
		deactivated += n
	}
	sort.Strings(failed)
	return deactivated, failed
}

// FetchReports resolves composite ids to full reports. Ids whose domain
// cannot be reached are skipped.
func (a *ReportAggregator) FetchReports(ctx context.Context, externalIDs []string) []models.Report {
	grouped, bad := groupExternalIDs(externalIDs)
	if len(bad) > 0 {
		a.logger.Warn("skipping malformed report ids", "module", "aggregator", "ids", bad)
	}

	var out []models.Report
	for domain, ids := range grouped {
		d, ok := a.byName[domain]
		if !ok {
			continue
		}
		callCtx, cancel := a.bounded(ctx)
		reports, err := d.GetReports(callCtx, ids)
		cancel()
		if err != nil {
			a.logger.Warn("fetch reports failed",
				"module", "aggregator", "domain", domain, "outcome", "failure", "error", err.Error())
			continue
		}
		out = append(out, reports...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID() < out[j].ExternalID() })
	return out
}
