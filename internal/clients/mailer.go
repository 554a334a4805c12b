package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

// MailClient posts transactional emails to an HTTP mail API.
type MailClient struct {
	url    string
	apiKey string
	from   string
	http   *http.Client
}

func NewMailClient(url, apiKey, from string, hc *http.Client) *MailClient {
	return &MailClient{url: url, apiKey: apiKey, from: from, http: hc}
}

type mailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

func (c *MailClient) Send(ctx context.Context, msg models.EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("%w: email has no recipient", models.ErrValidation)
	}
	return doJSON(ctx, c.http, http.MethodPost, c.url, c.apiKey, mailRequest{
		From:    c.from,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	}, nil)
}
