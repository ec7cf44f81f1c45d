package domain

import (
	"fmt"
	"mime"
	"strings"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimePDF  = "application/pdf"
)

// NormalizeMimeType lowercases the media type, drops parameters and maps
// the common image/jpg alias onto image/jpeg.
func NormalizeMimeType(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if parsed, _, err := mime.ParseMediaType(value); err == nil {
		value = parsed
	}
	if value == "image/jpg" || value == "image/pjpeg" {
		return MimeJPEG
	}
	return value
}

// ValidateMimeType returns the normalized media type when it is one of the
// accepted diagram formats.
func ValidateMimeType(raw string) (string, error) {
	normalized := NormalizeMimeType(raw)
	switch normalized {
	case MimePNG, MimeJPEG, MimePDF:
		return normalized, nil
	default:
		return "", WrapError(ErrUnsupportedMediaType, "validate mime type", fmt.Errorf("%q is not one of png, jpeg, pdf", raw))
	}
}

func IsRaster(mimeType string) bool {
	switch NormalizeMimeType(mimeType) {
	case MimePNG, MimeJPEG:
		return true
	default:
		return false
	}
}
