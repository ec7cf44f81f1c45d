// Package inspect reads cheap metadata from uploaded diagrams: the page
// count of a PDF and the pixel size of a raster.
package inspect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

func (i *Inspector) Inspect(_ context.Context, mimeType string, data []byte) (domain.DocumentInfo, error) {
	switch domain.NormalizeMimeType(mimeType) {
	case domain.MimePDF:
		pages, err := pageCount(data)
		if err != nil {
			return domain.DocumentInfo{}, err
		}
		return domain.DocumentInfo{PageCount: pages}, nil
	case domain.MimePNG, domain.MimeJPEG:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return domain.DocumentInfo{}, fmt.Errorf("decode image header: %w", err)
		}
		return domain.DocumentInfo{PageCount: 1, Width: cfg.Width, Height: cfg.Height}, nil
	default:
		return domain.DocumentInfo{}, domain.WrapError(domain.ErrUnsupportedMediaType, "inspect document", fmt.Errorf("mime type %q", mimeType))
	}
}

// pageCount guards against panics the pdf reader raises on damaged files.
func pageCount(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
