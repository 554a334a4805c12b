package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Domain string

const (
	DomainService     Domain = "service"
	DomainProject     Domain = "project"
	DomainPublication Domain = "publication"
)

var domainPrefixes = map[Domain]string{
	DomainService:     "svc",
	DomainProject:     "prj",
	DomainPublication: "pub",
}

// Prefix returns the short tag used in composite report ids ("svc:123").
func (d Domain) Prefix() string {
	return domainPrefixes[d]
}

// DomainFromPrefix resolves a composite id prefix back to its domain.
func DomainFromPrefix(prefix string) (Domain, bool) {
	for d, p := range domainPrefixes {
		if p == prefix {
			return d, true
		}
	}
	return "", false
}

type ReportReason string

const (
	ReasonSpam             ReportReason = "spam"
	ReasonInappropriate    ReportReason = "inappropriate"
	ReasonOffensive        ReportReason = "offensive"
	ReasonHarassment       ReportReason = "harassment"
	ReasonDeceptive        ReportReason = "deceptive"
	ReasonFraudulent       ReportReason = "fraudulent"
	ReasonFalseInformation ReportReason = "false_information"
	ReasonOther            ReportReason = "other"
)

var knownReasons = map[ReportReason]bool{
	ReasonSpam:             true,
	ReasonInappropriate:    true,
	ReasonOffensive:        true,
	ReasonHarassment:       true,
	ReasonDeceptive:        true,
	ReasonFraudulent:       true,
	ReasonFalseInformation: true,
	ReasonOther:            true,
}

// NormalizeReason maps unknown reason strings to "other".
func NormalizeReason(raw string) ReportReason {
	r := ReportReason(strings.ToLower(strings.TrimSpace(raw)))
	if knownReasons[r] {
		return r
	}
	return ReasonOther
}

type Report struct {
	ID             string       `json:"id"`
	Domain         Domain       `json:"domain"`
	ReporterID     string       `json:"reporter_id"`
	ReportedUserID string       `json:"reported_user_id"`
	Reason         ReportReason `json:"reason"`
	OtherReason    string       `json:"other_reason,omitempty"`
	Description    string       `json:"description"`
	CreatedAt      time.Time    `json:"created_at"`
	IsActive       bool         `json:"is_active"`
}

// ExternalID is the domain-prefixed composite id stored on analyses.
func (r Report) ExternalID() string {
	return ExternalReportID(r.Domain, r.ID)
}

// Text is the report content fed to the classifier.
func (r Report) Text() string {
	parts := []string{string(r.Reason)}
	if r.OtherReason != "" {
		parts = append(parts, r.OtherReason)
	}
	if r.Description != "" {
		parts = append(parts, r.Description)
	}
	return strings.Join(parts, ": ")
}

func ExternalReportID(d Domain, id string) string {
	return d.Prefix() + ":" + id
}

// SplitExternalReportID splits "svc:123" into its domain and local id.
func SplitExternalReportID(externalID string) (Domain, string, error) {
	prefix, local, ok := strings.Cut(externalID, ":")
	if !ok || local == "" {
		return "", "", fmt.Errorf("%w: malformed report id %q", ErrValidation, externalID)
	}
	d, ok := DomainFromPrefix(prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: unknown report domain prefix %q", ErrValidation, prefix)
	}
	return d, local, nil
}

// ReportBundle is every active report filed against one user.
type ReportBundle struct {
	UserID  string
	Reports []Report
}

func (b ReportBundle) Size() int { return len(b.Reports) }

// ExternalIDs returns the sorted composite ids of the bundle.
func (b ReportBundle) ExternalIDs() []string {
	ids := make([]string, 0, len(b.Reports))
	for _, r := range b.Reports {
		ids = append(ids, r.ExternalID())
	}
	sort.Strings(ids)
	return ids
}
