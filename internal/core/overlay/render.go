package overlay

import (
	"math"
	"unicode/utf8"

	"github.com/kirillkom/pid-asset-extractor/internal/core/domain"
)

const (
	MarkerRadius      = 25.0
	MarkerLineWidth   = 2.0
	SelectedRadius    = 35.0
	SelectedLineWidth = 3.0
	CenterDotRadius   = 4.0

	LabelFont       = "bold 14px sans-serif"
	LabelOffsetX    = 40.0
	LabelOffsetY    = -15.0
	LabelPadding    = 12.0
	LabelHeight     = 24.0
	LabelTextInsetX = 46.0
	LabelBaselineY  = 3.0

	MinZoom = 0.1
	MaxZoom = 5.0
)

var (
	VerifiedColor   = RGBA(34, 197, 94, 0.3)
	UnverifiedColor = RGBA(59, 130, 246, 0.3)
	SelectedOuter   = Hex(0x3b82f6)
	SelectedInner   = Hex(0x60a5fa)
	LabelPlate      = RGBA(59, 130, 246, 0.9)
	LabelText       = Hex(0xffffff)
)

// TextMeasurer returns the rendered width of text in the label font.
type TextMeasurer interface {
	MeasureText(text string) float64
}

// FixedWidthMeasurer approximates label width with a constant advance per rune.
type FixedWidthMeasurer float64

func (m FixedWidthMeasurer) MeasureText(text string) float64 {
	return float64(m) * float64(utf8.RuneCountInString(text))
}

// DefaultMeasurer is close to a bold 14px sans-serif advance.
const DefaultMeasurer = FixedWidthMeasurer(8.5)

// NormalizeZoom clamps zoom into the supported range; non-positive values
// mean no zoom.
func NormalizeZoom(zoom float64) float64 {
	switch {
	case zoom <= 0:
		return 1
	case zoom < MinZoom:
		return MinZoom
	case zoom > MaxZoom:
		return MaxZoom
	default:
		return zoom
	}
}

// Render builds the marker scene for the given surface. Every asset gets a
// faded ring colored by verification state; the selected asset is drawn on
// top with a double ring, a center dot and a tag label. A surface that is
// not loaded yields an empty scene and PDFs are left to an embedded viewer.
func Render(surface Surface, assets []domain.Asset, selectedID string, zoom float64, measurer TextMeasurer) Scene {
	scene := Scene{
		Mode:     ModeCanvas,
		Width:    surface.Width,
		Height:   surface.Height,
		Scale:    NormalizeZoom(zoom),
		Commands: []Command{},
	}
	if domain.NormalizeMimeType(surface.MimeType) == domain.MimePDF {
		scene.Mode = ModeEmbedded
		return scene
	}
	if !surface.Loaded() {
		scene.Mode = ModeEmpty
		return scene
	}
	if measurer == nil {
		measurer = DefaultMeasurer
	}

	w, h := float64(surface.Width), float64(surface.Height)
	var selected *domain.Asset
	for i := range assets {
		asset := &assets[i]
		px, py := asset.Coordinates.ToPixel(w, h)
		if !finite(px) || !finite(py) {
			continue
		}
		color := UnverifiedColor
		if asset.Verified {
			color = VerifiedColor
		}
		scene.Commands = append(scene.Commands, Command{
			Op:        OpStrokeCircle,
			AssetID:   asset.ID,
			X:         px,
			Y:         py,
			Radius:    MarkerRadius,
			LineWidth: MarkerLineWidth,
			Color:     color,
		})
		if selectedID != "" && asset.ID == selectedID && selected == nil {
			selected = asset
		}
	}
	if selected != nil {
		scene.Commands = append(scene.Commands, selectionCommands(*selected, w, h, measurer)...)
	}
	return scene
}

// finite reports whether v can be placed on the surface. Extreme model
// coordinates overflow to infinity once scaled.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func selectionCommands(asset domain.Asset, w, h float64, measurer TextMeasurer) []Command {
	px, py := asset.Coordinates.ToPixel(w, h)
	textWidth := measurer.MeasureText(asset.Tag)
	return []Command{
		{Op: OpStrokeCircle, AssetID: asset.ID, X: px, Y: py, Radius: SelectedRadius, LineWidth: SelectedLineWidth, Color: SelectedOuter},
		{Op: OpStrokeCircle, AssetID: asset.ID, X: px, Y: py, Radius: MarkerRadius, LineWidth: MarkerLineWidth, Color: SelectedInner},
		{Op: OpFillCircle, AssetID: asset.ID, X: px, Y: py, Radius: CenterDotRadius, Color: SelectedOuter},
		{
			Op:      OpFillRect,
			AssetID: asset.ID,
			X:       px + LabelOffsetX,
			Y:       py + LabelOffsetY,
			Width:   textWidth + LabelPadding,
			Height:  LabelHeight,
			Color:   LabelPlate,
		},
		{
			Op:      OpFillText,
			AssetID: asset.ID,
			X:       px + LabelTextInsetX,
			Y:       py + LabelBaselineY,
			Color:   LabelText,
			Text:    asset.Tag,
			Font:    LabelFont,
		},
	}
}
