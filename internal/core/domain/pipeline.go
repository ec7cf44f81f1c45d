package domain

import "io"

type UploadRequest struct {
	Filename    string
	MimeType    string
	OwnerRef    string
	Body        io.Reader
	AutoExtract bool
}

// DocumentPayload is a diagram encoded for transport to the vision model.
type DocumentPayload struct {
	Base64   string
	MimeType string
}

type ExtractRequest struct {
	DiagramID string
	Document  DocumentPayload
}

type ExtractResult struct {
	DiagramID string           `json:"diagram_id"`
	Assets    []ExtractedAsset `json:"assets"`
	Inserted  int              `json:"inserted"`
	Dropped   int              `json:"dropped,omitempty"`
}

// VisionRequest is a single multimodal call: a system instruction, the
// document and a short user instruction.
type VisionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Document     DocumentPayload
	MaxTokens    int
}

// DocumentInfo carries best-effort metadata read from the uploaded bytes.
type DocumentInfo struct {
	PageCount int
	Width     int
	Height    int
}
