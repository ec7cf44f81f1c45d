// Package extraction asks a vision model for the assets on a diagram and
// turns its free-form answer into validated asset records.
package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

const defaultMaxTokens = 4000

type Adapter struct {
	model     ports.VisionModel
	policy    Policy
	maxTokens int
}

type Option func(*Adapter)

func WithPolicy(policy Policy) Option {
	return func(a *Adapter) { a.policy = policy }
}

func WithMaxTokens(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func NewAdapter(model ports.VisionModel, opts ...Option) *Adapter {
	a := &Adapter{
		model:     model,
		policy:    PolicyStrict,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Extract makes exactly one model call; retries belong to the caller.
func (a *Adapter) Extract(ctx context.Context, doc domain.DocumentPayload) (ports.ExtractionOutcome, error) {
	mimeType, err := domain.ValidateMimeType(doc.MimeType)
	if err != nil {
		return ports.ExtractionOutcome{}, err
	}
	payload := strings.TrimSpace(doc.Base64)
	if payload == "" {
		return ports.ExtractionOutcome{}, domain.WrapError(domain.ErrInvalidInput, "extract assets", errors.New("empty document payload"))
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ports.ExtractionOutcome{}, domain.WrapError(domain.ErrInvalidInput, "extract assets", errors.New("document payload is not valid base64"))
	}

	raw, err := a.model.Complete(ctx, domain.VisionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Document:     domain.DocumentPayload{Base64: payload, MimeType: mimeType},
		MaxTokens:    a.maxTokens,
	})
	if err != nil {
		return ports.ExtractionOutcome{}, classifyModelError(a.model.Name(), err)
	}
	return ParseModelOutput(raw, a.policy)
}

func classifyModelError(model string, err error) error {
	switch {
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrUnsupportedMediaType),
		domain.IsKind(err, domain.ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domain.WrapError(domain.ErrUnknown, model+" vision call", err)
	}
}
