package clients

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

// DomainClient talks to one content domain's internal moderation API.
type DomainClient struct {
	domain  models.Domain
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewDomainClient(domain models.Domain, baseURL, apiKey string, hc *http.Client, logger *slog.Logger) *DomainClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DomainClient{
		domain:  domain,
		baseURL: strings.TrimRight(baseURL, "/") + "/internal/moderation",
		apiKey:  apiKey,
		http:    hc,
		logger:  logger.With("module", "clients", "domain", domain),
	}
}

func (c *DomainClient) Domain() models.Domain { return c.domain }

type reportDTO struct {
	ID             string    `json:"id"`
	ReporterID     string    `json:"reporterId"`
	ReportedUserID string    `json:"reportedUserId"`
	Reason         string    `json:"reason"`
	OtherReason    string    `json:"otherReason"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	IsActive       *bool     `json:"isActive"`
}

type reportsResponse struct {
	Reports []reportDTO `json:"reports"`
}

type countResponse struct {
	Count int `json:"count"`
}

type commitmentDTO struct {
	Kind         string `json:"kind"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Counterparty string `json:"counterparty"`
}

type commitmentsResponse struct {
	Commitments []commitmentDTO `json:"commitments"`
}

// toReports validates the wire payload. Reports without an id are dropped;
// unknown reasons fold into "other". A missing reportedUserId is kept and
// left for the aggregator to discard.
func (c *DomainClient) toReports(in []reportDTO, activeOnly bool) []models.Report {
	out := make([]models.Report, 0, len(in))
	dropped := 0
	for _, r := range in {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			dropped++
			continue
		}
		active := r.IsActive == nil || *r.IsActive
		if activeOnly && !active {
			continue
		}
		out = append(out, models.Report{
			ID:             id,
			Domain:         c.domain,
			ReporterID:     strings.TrimSpace(r.ReporterID),
			ReportedUserID: strings.TrimSpace(r.ReportedUserID),
			Reason:         models.NormalizeReason(r.Reason),
			OtherReason:    strings.TrimSpace(r.OtherReason),
			Description:    strings.TrimSpace(r.Description),
			CreatedAt:      r.CreatedAt,
			IsActive:       active,
		})
	}
	if dropped > 0 {
		c.logger.Warn("dropped malformed reports", "operation", "list_reports", "count", dropped)
	}
	return out
}

func (c *DomainClient) ListActiveReports(ctx context.Context) ([]models.Report, error) {
	var resp reportsResponse
	if err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/reports?active=true", c.apiKey, nil, &resp); err != nil {
		return nil, err
	}
	return c.toReports(resp.Reports, true), nil
}

// GetReports fetches reports by local id, active or not.
func (c *DomainClient) GetReports(ctx context.Context, ids []string) ([]models.Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{"ids": {strings.Join(ids, ",")}}
	var resp reportsResponse
	if err := doJSON(ctx, c.http, http.MethodGet, c.baseURL+"/reports?"+q.Encode(), c.apiKey, nil, &resp); err != nil {
		return nil, err
	}
	return c.toReports(resp.Reports, false), nil
}

func (c *DomainClient) DeactivateReports(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var resp countResponse
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/reports/deactivate", c.apiKey,
		map[string][]string{"ids": ids}, &resp)
	return resp.Count, err
}

func (c *DomainClient) SoftDeleteOldReports(ctx context.Context, cutoff time.Time) (int, error) {
	var resp countResponse
	err := doJSON(ctx, c.http, http.MethodPost, c.baseURL+"/reports/retire", c.apiKey,
		map[string]time.Time{"before": cutoff.UTC()}, &resp)
	return resp.Count, err
}

func (c *DomainClient) userURL(userID, action string) string {
	return c.baseURL + "/users/" + url.PathEscape(userID) + "/" + action
}

func (c *DomainClient) HideUserContent(ctx context.Context, userID string) (int, error) {
	var resp countResponse
	err := doJSON(ctx, c.http, http.MethodPost, c.userURL(userID, "hide"), c.apiKey, nil, &resp)
	return resp.Count, err
}

func (c *DomainClient) SoftDeleteUserContent(ctx context.Context, userID string) (int, error) {
	var resp countResponse
	err := doJSON(ctx, c.http, http.MethodPost, c.userURL(userID, "soft-delete"), c.apiKey, nil, &resp)
	return resp.Count, err
}

func (c *DomainClient) CheckUserActiveCommitments(ctx context.Context, userID string) ([]models.Commitment, error) {
	var resp commitmentsResponse
	if err := doJSON(ctx, c.http, http.MethodGet, c.userURL(userID, "commitments"), c.apiKey, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Commitment, 0, len(resp.Commitments))
	for _, cm := range resp.Commitments {
		if strings.TrimSpace(cm.ID) == "" {
			continue
		}
		out = append(out, models.Commitment{
			Domain:       c.domain,
			Kind:         models.CommitmentKind(cm.Kind),
			ID:           cm.ID,
			Title:        cm.Title,
			Counterparty: cm.Counterparty,
		})
	}
	return out, nil
}
