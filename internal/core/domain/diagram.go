package domain

import "time"

// AnonymousOwner is the owner reference used when the caller has no identity.
const AnonymousOwner = "anonymous"

type Diagram struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Filename    string        `json:"filename"`
	MimeType    string        `json:"mime_type"`
	StoragePath string        `json:"storage_path"`
	PublicURL   string        `json:"public_url,omitempty"`
	Status      DiagramStatus `json:"status"`
	Error       string        `json:"error_message,omitempty"`
	PageCount   int           `json:"page_count,omitempty"`
	Width       int           `json:"width,omitempty"`
	Height      int           `json:"height,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPDF reports whether the diagram is shown through an embedded viewer
// rather than an annotated raster surface.
func (d *Diagram) IsPDF() bool {
	return NormalizeMimeType(d.MimeType) == MimePDF
}
