package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/AnshRaj112/salvioris-moderation/internal/models"
)

// ChatMessage is one turn of a chat-completions prompt.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// CompletionClient calls an OpenAI-compatible chat completions endpoint.
type CompletionClient struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

func NewCompletionClient(url, apiKey, model string, hc *http.Client) *CompletionClient {
	return &CompletionClient{url: url, apiKey: apiKey, model: model, http: hc}
}

// Generate returns the first choice's content for a system+user prompt.
func (c *CompletionClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   300,
		Temperature: 0.2,
	}
	var resp chatResponse
	if err := doJSON(ctx, c.http, http.MethodPost, c.url, c.apiKey, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", models.ErrInvalidPayload)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: completion returned empty content", models.ErrInvalidPayload)
	}
	return text, nil
}
