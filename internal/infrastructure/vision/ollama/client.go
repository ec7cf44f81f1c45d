// Package ollama runs extraction against a local Ollama vision model. Only
// raster diagrams are supported; Ollama does not accept PDF input.
package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "ollama" }

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

func (c *Client) Complete(ctx context.Context, req domain.VisionRequest) (string, error) {
	if !domain.IsRaster(req.Document.MimeType) {
		return "", domain.WrapError(domain.ErrUnsupportedMediaType, "ollama chat",
			errors.New("ollama accepts png or jpeg diagrams only"))
	}

	reqBody := map[string]any{
		"model":  c.model,
		"stream": false,
		"format": "json",
		"messages": []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt, Images: []string{req.Document.Base64}},
		},
	}
	if req.MaxTokens > 0 {
		reqBody["options"] = map[string]any{"num_predict": req.MaxTokens}
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	err := vision.PostJSON(ctx, c.httpClient, vision.JSONRequest{
		Provider:  "ollama",
		Operation: "chat",
		URL:       c.baseURL + "/api/chat",
		Payload:   reqBody,
	}, &response)
	if err != nil {
		return "", vision.WrapTemporaryIfNeeded("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}
