// Package anthropic calls the Anthropic Messages API with a diagram attached
// as a base64 document or image block.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision"
)

const (
	DefaultBaseURL = "https://api.anthropic.com/v1"
	DefaultModel   = "claude-sonnet-4-5"
	apiVersion     = "2023-06-01"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "anthropic" }

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string  `json:"type"`
	Source *source `json:"source,omitempty"`
	Text   string  `json:"text,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Complete sends the diagram in a single user turn and returns the joined
// text blocks of the answer.
func (c *Client) Complete(ctx context.Context, req domain.VisionRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("anthropic messages: api key is not configured")
	}

	blockType := "image"
	if req.Document.MimeType == domain.MimePDF {
		blockType = "document"
	}
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: blockType,
					Source: &source{
						Type:      "base64",
						MediaType: req.Document.MimeType,
						Data:      req.Document.Base64,
					},
				},
				{Type: "text", Text: req.UserPrompt},
			},
		}},
	}

	var resp messagesResponse
	err := vision.PostJSON(ctx, c.httpClient, vision.JSONRequest{
		Provider:  "anthropic",
		Operation: "messages",
		URL:       c.baseURL + "/messages",
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": apiVersion,
		},
		Payload: payload,
	}, &resp)
	if err != nil {
		return "", vision.WrapTemporaryIfNeeded("anthropic messages", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}
