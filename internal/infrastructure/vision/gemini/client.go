// Package gemini runs extraction through the Google GenAI SDK.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/infrastructure/vision"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; used by tests and proxies.
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Complete(ctx context.Context, req domain.VisionRequest) (string, error) {
	data, err := base64.StdEncoding.DecodeString(req.Document.Base64)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "gemini generate", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, req.Document.MimeType),
			genai.NewPartFromText(req.UserPrompt),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", vision.WrapTemporaryIfNeeded("gemini generate", classifyAPIError(err))
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			out.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(out.String())
}

// classifyAPIError maps SDK status errors onto HTTPStatusError so the shared
// classifier sees provider status codes.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(*apiErrPtr, err)
	}
	return err
}

func statusError(apiErr genai.APIError, cause error) error {
	return fmt.Errorf("%w: %w", &vision.HTTPStatusError{
		Provider:   "gemini",
		Operation:  "generate",
		StatusCode: apiErr.Code,
		Status:     fmt.Sprintf("%d %s", apiErr.Code, apiErr.Status),
		Body:       apiErr.Message,
	}, cause)
}
