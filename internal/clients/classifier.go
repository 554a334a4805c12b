package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"golang.org/x/time/rate"
)

// ClassifierClient calls a moderation endpoint that accepts
// {"model","input"} and answers {"results":[{"flagged","categories"}]}.
// It makes exactly one attempt per call; retries belong to the caller.
type ClassifierClient struct {
	url     string
	apiKey  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClassifierClient builds the client. rps <= 0 disables client-side pacing.
func NewClassifierClient(url, apiKey, model string, rps float64, hc *http.Client) *ClassifierClient {
	c := &ClassifierClient{url: url, apiKey: apiKey, model: model, http: hc}
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

type classifyRequest struct {
	Model string `json:"model,omitempty"`
	Input string `json:"input"`
}

type classifyResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (c *ClassifierClient) Classify(ctx context.Context, text string) (models.SafetyVerdict, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.SafetyVerdict{}, err
		}
	}

	var resp classifyResponse
	err := doJSON(ctx, c.http, http.MethodPost, c.url, c.apiKey, classifyRequest{Model: c.model, Input: text}, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusTooManyRequests {
			return models.SafetyVerdict{}, fmt.Errorf("%w: %v", models.ErrProviderRateLimited, err)
		}
		return models.SafetyVerdict{}, err
	}
	if len(resp.Results) == 0 {
		return models.SafetyVerdict{}, fmt.Errorf("%w: classifier returned no results", models.ErrInvalidPayload)
	}

	r := resp.Results[0]
	categories := r.Categories
	if categories == nil {
		categories = map[string]bool{}
	}
	return models.SafetyVerdict{Flagged: r.Flagged, Categories: categories}, nil
}
