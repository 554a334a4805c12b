package services

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

const noticeDateLayout = "January 2, 2006"

var (
	banNoticeTmpl = template.Must(template.New("ban").Parse(
		`Hello {{.Username}},

Your Salvioris account has been permanently banned.

Reason: {{.Reason}}
{{if .Commitments}}
The following active engagements are affected and will be closed by the other parties:
{{range .Commitments}}  - {{.Title}} ({{.Kind}}, {{.Domain}})
{{end}}{{end}}
If you believe this decision is a mistake you can reply to this email to appeal.

The Salvioris Trust & Safety team
`))

	suspensionNoticeTmpl = template.Must(template.New("suspension").Parse(
		`Hello {{.Username}},

Your Salvioris account has been suspended for {{.Days}} days.

Reason: {{.Reason}}
Your account will be reactivated on {{.ReactivationDate}}.

While suspended your services, projects and publications are hidden from other users.
{{if .Commitments}}
Active engagements at the time of suspension:
{{range .Commitments}}  - {{.Title}} ({{.Kind}}, {{.Domain}})
{{end}}{{end}}
The Salvioris Trust & Safety team
`))

	reactivationNoticeTmpl = template.Must(template.New("reactivation").Parse(
		`Hello {{.Username}},

Your suspension has ended and your Salvioris account is active again.
Please sign in again to continue. Your content is visible to other users once more.

The Salvioris Trust & Safety team
`))
)

type noticeData struct {
	Username string
	Reason   string
	Days     int
	// ReactivationDate is the calendar day the reactivation sweep lifts
	// the suspension, in the sweep's time zone.
	ReactivationDate string
	Commitments      []models.Commitment
}

func renderNotice(tmpl *template.Template, to, subject string, data noticeData) (models.EmailMessage, error) {
	if data.Username == "" {
		data.Username = "there"
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return models.EmailMessage{}, fmt.Errorf("render %s notice: %w", tmpl.Name(), err)
	}
	return models.EmailMessage{To: to, Subject: subject, Text: buf.String()}, nil
}

func BanNotice(account models.AccountState, reason string, snapshot models.CommitmentSnapshot) (models.EmailMessage, error) {
	return renderNotice(banNoticeTmpl, account.Email, "Your Salvioris account has been banned", noticeData{
		Username:    account.Username,
		Reason:      reason,
		Commitments: snapshot.All(),
	})
}

// SuspensionNotice tells the user when the suspension ends. The sweep lifts
// a suspension on the day it expires in loc, so that is the date shown.
func SuspensionNotice(account models.AccountState, reason string, days int, expiresAt time.Time, loc *time.Location, snapshot models.CommitmentSnapshot) (models.EmailMessage, error) {
	if loc == nil {
		loc = time.UTC
	}
	return renderNotice(suspensionNoticeTmpl, account.Email, "Your Salvioris account has been suspended", noticeData{
		Username:         account.Username,
		Reason:           reason,
		Days:             days,
		ReactivationDate: expiresAt.In(loc).Format(noticeDateLayout),
		Commitments:      snapshot.All(),
	})
}

func ReactivationNotice(account models.AccountState) (models.EmailMessage, error) {
	return renderNotice(reactivationNoticeTmpl, account.Email, "Your Salvioris account is active again", noticeData{
		Username: account.Username,
	})
}
