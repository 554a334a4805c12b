package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(d models.Domain, id, user string) models.Report {
	return models.Report{ID: id, Domain: d, ReportedUserID: user, Reason: models.ReasonSpam, IsActive: true}
}

func TestCollectActiveReportsGroupsAndSurvivesDomainFailure(t *testing.T) {
	services := &fakeDomain{domain: models.DomainService, reports: []models.Report{
		report(models.DomainService, "1", "u1"),
		report(models.DomainService, "2", "u2"),
		report(models.DomainService, "3", ""),
	}}
	projects := &fakeDomain{domain: models.DomainProject, listErr: errors.New("timeout")}
	pubs := &fakeDomain{domain: models.DomainPublication, reports: []models.Report{
		report(models.DomainPublication, "9", "u1"),
	}}

	agg := NewReportAggregator(discardLogger(), time.Second, services, projects, pubs)
	bundles := agg.CollectActiveReports(context.Background())

	require.Len(t, bundles, 2)
	assert.Equal(t, "u1", bundles[0].UserID)
	assert.Equal(t, []string{"pub:9", "svc:1"}, bundles[0].ExternalIDs())
	assert.Equal(t, "u2", bundles[1].UserID)
}

func TestRetireStaleReportsAsksEveryDomain(t *testing.T) {
	a := &fakeDomain{domain: models.DomainService}
	b := &fakeDomain{domain: models.DomainProject}
	cutoff := time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC)

	NewReportAggregator(discardLogger(), time.Second, a, b).RetireStaleReports(context.Background(), cutoff)

	assert.Equal(t, []time.Time{cutoff}, a.retiredBefore)
	assert.Equal(t, []time.Time{cutoff}, b.retiredBefore)
}

func TestDeactivateReportsGroupsByPrefix(t *testing.T) {
	svc := &fakeDomain{domain: models.DomainService}
	prj := &fakeDomain{domain: models.DomainProject, deactivateErr: errors.New("503")}
	agg := NewReportAggregator(discardLogger(), time.Second, svc, prj)

	n, failed := agg.DeactivateReports(context.Background(), []string{"svc:1", "svc:2", "prj:7", "pub:3", "garbage"})

	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"1", "2"}, svc.deactivated)
	assert.Equal(t, []string{"garbage", "prj:7", "pub:3"}, failed)
}

func TestFetchReportsResolvesCompositeIDs(t *testing.T) {
	svc := &fakeDomain{domain: models.DomainService, reports: []models.Report{
		report(models.DomainService, "1", "u1"),
		report(models.DomainService, "2", "u1"),
	}}
	agg := NewReportAggregator(discardLogger(), time.Second, svc)

	got := agg.FetchReports(context.Background(), []string{"svc:2", "bad"})
	require.Len(t, got, 1)
	assert.Equal(t, "svc:2", got[0].ExternalID())
}
