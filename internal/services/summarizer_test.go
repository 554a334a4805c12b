package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	prompt string
	out    string
	err    error
}

func (g *stubGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.prompt = prompt
	return g.out, g.err
}

func TestSummarizeFallsBackOnProviderError(t *testing.T) {
	s := NewSummarizer(&stubGenerator{err: errors.New("503")}, discardLogger(), 0)
	in := SummaryInput{UserID: "u1", TotalReports: 4, OffensiveReports: 4, Classification: models.ClassificationBan}

	got := s.Summarize(context.Background(), in)
	assert.Equal(t, FallbackSummary(in), got)
	assert.Contains(t, got, "4 active report(s)")
}

func TestSummarizeWithoutGenerator(t *testing.T) {
	s := NewSummarizer(nil, discardLogger(), 0)
	got := s.Summarize(context.Background(), SummaryInput{UserID: "u2", TotalReports: 1, Classification: models.ClassificationReview})
	assert.Contains(t, got, "Manual moderator review")
}

func TestSummaryPromptIsBounded(t *testing.T) {
	gen := &stubGenerator{out: "Looks like spam."}
	s := NewSummarizer(gen, discardLogger(), 0)

	samples := make([]models.Report, 8)
	for i := range samples {
		samples[i] = models.Report{ID: "r", Domain: models.DomainService, Reason: models.ReasonSpam, Description: strings.Repeat("x", 1000)}
	}
	got := s.Summarize(context.Background(), SummaryInput{UserID: "u3", TotalReports: 8, Samples: samples})

	assert.Equal(t, "Looks like spam.", got)
	assert.Equal(t, maxSummarySamples, strings.Count(gen.prompt, "[service]"))
	assert.NotContains(t, gen.prompt, strings.Repeat("x", maxSampleDescription+1))
}
