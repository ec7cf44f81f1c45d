// Package overlay maps normalized asset coordinates onto a diagram surface
// and describes the resulting markers as draw commands. It does not depend
// on any drawing API; raster and browser backends execute the commands.
package overlay

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Mode string

const (
	// ModeCanvas means the commands annotate the raster surface.
	ModeCanvas Mode = "canvas"
	// ModeEmbedded means the document is shown in an embedded viewer
	// without annotations.
	ModeEmbedded Mode = "embedded"
	// ModeEmpty means the surface is not loaded yet.
	ModeEmpty Mode = "empty"
)

type Op string

const (
	OpStrokeCircle Op = "stroke_circle"
	OpFillCircle   Op = "fill_circle"
	OpFillRect     Op = "fill_rect"
	OpFillText     Op = "fill_text"
)

// Color is a straight (non-premultiplied) RGBA color with alpha in [0,1].
type Color struct {
	R, G, B uint8
	A       float64
}

func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Hex builds an opaque color from 0xRRGGBB.
func Hex(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 1}
}

func (c Color) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Surface describes the natural (unscaled) diagram raster.
type Surface struct {
	Width    int
	Height   int
	MimeType string
}

func (s Surface) Loaded() bool {
	return s.Width > 0 && s.Height > 0
}

// Command is a single draw instruction in natural pixel space.
type Command struct {
	Op        Op      `json:"op"`
	AssetID   string  `json:"asset_id,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	LineWidth float64 `json:"line_width,omitempty"`
	Color     Color   `json:"color"`
	Text      string  `json:"text,omitempty"`
	Font      string  `json:"font,omitempty"`
}

// Scene is the full overlay for one surface. Scale is applied by the
// backend to the whole surface, markers included.
type Scene struct {
	Mode     Mode      `json:"mode"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
	Scale    float64   `json:"scale"`
	Commands []Command `json:"commands"`
}
