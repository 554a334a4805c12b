package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

const (
	maxSummarySamples      = 5
	maxSampleDescription   = 280
	summarizerSystemPrompt = "You are a trust and safety assistant. Summarize the reports against a marketplace user " +
		"for a human moderator in at most four sentences. Be factual and neutral, and do not recommend a sanction."
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type SummaryInput struct {
	UserID           string
	TotalReports     int
	OffensiveReports int
	ViolationReports int
	Classification   models.Classification
	Samples          []models.Report
}

// Summarizer always returns a summary. Provider failures fall back to a
// template built from the same counters.
type Summarizer struct {
	generator TextGenerator
	logger    *slog.Logger
	timeout   time.Duration
}

func NewSummarizer(generator TextGenerator, logger *slog.Logger, timeout time.Duration) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{generator: generator, logger: logger, timeout: timeout}
}

func (s *Summarizer) Summarize(ctx context.Context, in SummaryInput) string {
	if s.generator == nil {
		return FallbackSummary(in)
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.generator.Generate(callCtx, summarizerSystemPrompt, buildSummaryPrompt(in))
	if err != nil {
		s.logger.Warn("summary generation failed, using template",
			"module", "summarizer", "user_id", in.UserID, "outcome", "fallback", "error", err.Error())
		return FallbackSummary(in)
	}
	return text
}

func buildSummaryPrompt(in SummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User: %s\n", in.UserID)
	fmt.Fprintf(&b, "Total reports: %d\nOffensive reports: %d\nPolicy violation reports: %d\n",
		in.TotalReports, in.OffensiveReports, in.ViolationReports)
	fmt.Fprintf(&b, "Preliminary classification: %s\n", in.Classification)

	samples := in.Samples
	if len(samples) > maxSummarySamples {
		samples = samples[:maxSummarySamples]
	}
	if len(samples) > 0 {
		b.WriteString("Sample reports:\n")
	}
	for i, r := range samples {
		reason := string(r.Reason)
		if r.OtherReason != "" {
			reason += " (" + r.OtherReason + ")"
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, r.Domain, reason, truncateRunes(r.Description, maxSampleDescription))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FallbackSummary is the deterministic summary used when no provider answer
// is available.
func FallbackSummary(in SummaryInput) string {
	summary := fmt.Sprintf("User %s received %d active report(s): %d flagged as offensive and %d citing policy violations.",
		in.UserID, in.TotalReports, in.OffensiveReports, in.ViolationReports)
	switch in.Classification {
	case models.ClassificationBan:
		summary += " Automated screening found offensive content; a ban is suggested pending moderator review."
	default:
		summary += " Manual moderator review is required."
	}
	return summary
}
