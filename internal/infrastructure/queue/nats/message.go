package nats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type extractRequested struct {
	DiagramID   string    `json:"diagram_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func encodeExtractRequested(diagramID string, at time.Time) ([]byte, error) {
	if strings.TrimSpace(diagramID) == "" {
		return nil, errors.New("encode extract request: empty diagram id")
	}
	return json.Marshal(extractRequested{DiagramID: diagramID, RequestedAt: at})
}

// decodeExtractRequested also accepts a bare diagram id for manual
// publishes from the nats CLI.
func decodeExtractRequested(data []byte) (extractRequested, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return extractRequested{}, errors.New("empty message")
	}
	if trimmed[0] != '{' {
		return extractRequested{DiagramID: string(trimmed)}, nil
	}
	var event extractRequested
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return extractRequested{}, fmt.Errorf("decode extract request: %w", err)
	}
	if strings.TrimSpace(event.DiagramID) == "" {
		return extractRequested{}, errors.New("decode extract request: empty diagram id")
	}
	return event, nil
}
