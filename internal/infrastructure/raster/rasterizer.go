// Package raster paints overlay scenes onto decoded diagram images and
// encodes the result as PNG.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/kirillkom/pid-asset-extractor/internal/core/overlay"
)

const (
	labelFontSize = 14
	// Longest side of a zoomed output image.
	defaultMaxOutputSide = 8192
	// Decoded images are held as 4 bytes per pixel.
	defaultMaxDecodePixels = 64 << 20
)

// ErrImageTooLarge is returned by Decode when the declared dimensions exceed
// the pixel budget.
var ErrImageTooLarge = errors.New("raster exceeds pixel budget")

type Rasterizer struct {
	// font.Face is not safe for concurrent use.
	mu              sync.Mutex
	face            font.Face
	maxOutputSide   int
	maxDecodePixels int64
}

func New() (*Rasterizer, error) {
	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse label font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create label face: %w", err)
	}
	return &Rasterizer{
		face:            face,
		maxOutputSide:   defaultMaxOutputSide,
		maxDecodePixels: defaultMaxDecodePixels,
	}, nil
}

// Decode reads the image header first and refuses rasters whose declared
// size would not fit the pixel budget.
func (r *Rasterizer) Decode(src io.Reader) (image.Image, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read raster: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode raster header: %w", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); r.maxDecodePixels > 0 && pixels > r.maxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}
	return img, nil
}

func (r *Rasterizer) Measurer() overlay.TextMeasurer {
	return faceMeasurer{r: r}
}

type faceMeasurer struct {
	r *Rasterizer
}

func (m faceMeasurer) MeasureText(text string) float64 {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	return float64(font.MeasureString(m.r.face, text)) / 64
}

// Draw executes the scene at natural size and then applies the scene scale
// to the whole surface.
func (r *Rasterizer) Draw(base image.Image, scene overlay.Scene) ([]byte, error) {
	bounds := base.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, bounds.Min, draw.Src)

	if scene.Mode == overlay.ModeCanvas {
		r.mu.Lock()
		for _, cmd := range scene.Commands {
			r.execute(canvas, cmd)
		}
		r.mu.Unlock()
	}

	out := r.scale(canvas, scene.Scale)
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Rasterizer) execute(dst draw.Image, cmd overlay.Command) {
	switch cmd.Op {
	case overlay.OpStrokeCircle:
		fillMask(dst, ringMask(cmd.X, cmd.Y, cmd.Radius, cmd.LineWidth), toNRGBA(cmd.Color))
	case overlay.OpFillCircle:
		fillMask(dst, discMask(cmd.X, cmd.Y, cmd.Radius), toNRGBA(cmd.Color))
	case overlay.OpFillRect:
		fillMask(dst, rectMask(cmd.X, cmd.Y, cmd.Width, cmd.Height), toNRGBA(cmd.Color))
	case overlay.OpFillText:
		drawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(toNRGBA(cmd.Color)),
			Face: r.face,
			Dot:  fixed.Point26_6{X: toFixed(cmd.X), Y: toFixed(cmd.Y)},
		}
		drawer.DrawString(cmd.Text)
	}
}

func (r *Rasterizer) scale(src *image.NRGBA, scale float64) image.Image {
	if scale <= 0 || scale == 1 {
		return src
	}
	b := src.Bounds()
	longest := math.Max(float64(b.Dx()), float64(b.Dy()))
	if longest*scale > float64(r.maxOutputSide) {
		scale = float64(r.maxOutputSide) / longest
	}
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

func toNRGBA(c overlay.Color) color.NRGBA {
	a := math.Round(math.Max(0, math.Min(1, c.A)) * 255)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a)}
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}
