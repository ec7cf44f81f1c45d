package extraction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
	"github.com/kirillkom/pid-asset-extractor/internal/core/ports"
)

type Policy string

const (
	// PolicyStrict rejects the whole batch on the first invalid asset.
	PolicyStrict Policy = "strict"
	// PolicyLenient drops invalid assets and keeps the rest.
	PolicyLenient Policy = "lenient"
)

func ParsePolicy(raw string) Policy {
	if strings.EqualFold(strings.TrimSpace(raw), string(PolicyLenient)) {
		return PolicyLenient
	}
	return PolicyStrict
}

var fencePattern = regexp.MustCompile("```(?:json|JSON)?")

// StripCodeFences removes markdown fence markers around the model answer.
func StripCodeFences(raw string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
}

// ParseModelOutput converts raw model text into validated assets.
func ParseModelOutput(raw string, policy Policy) (ports.ExtractionOutcome, error) {
	clean := StripCodeFences(raw)
	if clean == "" {
		return ports.ExtractionOutcome{}, &Error{Kind: domain.ErrMalformedModelOutput, Detail: "empty model response"}
	}

	var document any
	if err := json.Unmarshal([]byte(clean), &document); err != nil {
		// Some models add prose around the object.
		if retryErr := json.Unmarshal([]byte(extractJSONObject(clean)), &document); retryErr != nil {
			return ports.ExtractionOutcome{}, &Error{Kind: domain.ErrMalformedModelOutput, Detail: "response is not a JSON object", Err: err}
		}
	}

	if err := envelopeSchema.VisitJSON(document); err != nil {
		return ports.ExtractionOutcome{}, &Error{Kind: domain.ErrSchemaValidation, Detail: describeViolation(err)}
	}
	items, _ := document.(map[string]any)["assets"].([]any)

	outcome := ports.ExtractionOutcome{Assets: make([]domain.ExtractedAsset, 0, len(items))}
	for i, item := range items {
		asset, err := validateAsset(item)
		if err != nil {
			if policy == PolicyLenient {
				outcome.Dropped++
				continue
			}
			return ports.ExtractionOutcome{}, &Error{Kind: domain.ErrSchemaValidation, Detail: fmt.Sprintf("assets[%d]%s", i, err.Error())}
		}
		outcome.Assets = append(outcome.Assets, asset)
	}
	return outcome, nil
}

func validateAsset(item any) (domain.ExtractedAsset, error) {
	if err := assetSchema.VisitJSON(item); err != nil {
		return domain.ExtractedAsset{}, fmt.Errorf("%s", describeViolation(err))
	}
	fields := item.(map[string]any)
	coordinates, err := domain.ParseCoordinates(fields["coordinates"])
	if err != nil {
		return domain.ExtractedAsset{}, fmt.Errorf("/coordinates: %w", err)
	}
	return domain.ExtractedAsset{
		Tag:         strings.TrimSpace(fields["tag"].(string)),
		Type:        strings.TrimSpace(fields["type"].(string)),
		Coordinates: coordinates,
	}, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
