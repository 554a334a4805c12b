package clients

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListActiveReportsValidatesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/internal/moderation/reports", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"reports":[
			{"id":"1","reportedUserId":"u1","reason":"SPAM","description":" buy now "},
			{"id":"","reportedUserId":"u2","reason":"spam"},
			{"id":"3","reportedUserId":"","reason":"made-up"},
			{"id":"4","reportedUserId":"u1","reason":"fraudulent","isActive":false}
		]}`))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := NewDomainClient(models.DomainService, srv.URL+"/", "secret", srv.Client(), logger)
	reports, err := c.ListActiveReports(t.Context())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Contains(t, logs.String(), "dropped malformed reports")
	assert.Contains(t, logs.String(), "domain=service")
	assert.Contains(t, logs.String(), "count=1")

	assert.Equal(t, "svc:1", reports[0].ExternalID())
	assert.Equal(t, models.ReasonSpam, reports[0].Reason)
	assert.Equal(t, "buy now", reports[0].Description)
	assert.Equal(t, models.ReasonOther, reports[1].Reason)
	assert.Empty(t, reports[1].ReportedUserID)
}

func TestListActiveReportsRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reports": "nope"}`))
	}))
	defer srv.Close()

	c := NewDomainClient(models.DomainProject, srv.URL, "", srv.Client(), nil)
	_, err := c.ListActiveReports(t.Context())
	assert.ErrorIs(t, err, models.ErrInvalidPayload)
}

func TestDeactivateAndRetire(t *testing.T) {
	var gotIDs []string
	var gotBefore time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/moderation/reports/deactivate":
			var body struct {
				IDs []string `json:"ids"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotIDs = body.IDs
			_, _ = w.Write([]byte(`{"count":2}`))
		case "/internal/moderation/reports/retire":
			var body struct {
				Before time.Time `json:"before"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotBefore = body.Before
			_, _ = w.Write([]byte(`{"count":5}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewDomainClient(models.DomainPublication, srv.URL, "", srv.Client(), nil)

	n, err := c.DeactivateReports(t.Context(), []string{"7", "8"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"7", "8"}, gotIDs)

	cutoff := time.Date(2025, 10, 17, 0, 0, 0, 0, time.UTC)
	n, err = c.SoftDeleteOldReports(t.Context(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, cutoff.Equal(gotBefore))
}

func TestCommitmentsAndStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/internal/moderation/users/u1/commitments":
			_, _ = w.Write([]byte(`{"commitments":[
				{"kind":"hired_service","id":"s1","title":"Logo design"},
				{"kind":"owned_project","id":"","title":"broken"}
			]}`))
		case "/internal/moderation/users/u1/hide":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewDomainClient(models.DomainService, srv.URL, "", srv.Client(), nil)

	items, err := c.CheckUserActiveCommitments(t.Context(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.CommitmentHiredService, items[0].Kind)
	assert.Equal(t, models.DomainService, items[0].Domain)

	_, err = c.HideUserContent(t.Context(), "u1")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
}
