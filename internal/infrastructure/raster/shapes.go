package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// mask is an alpha coverage mask positioned in destination coordinates.
type mask struct {
	alpha *image.Alpha
}

func fillMask(dst draw.Image, m mask, c color.NRGBA) {
	if m.alpha == nil {
		return
	}
	r := m.alpha.Bounds().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, m.alpha, r.Min, draw.Over)
}

// coverage builds a mask over the box [x0,x1)x[y0,y1) sampling fn at pixel
// centers.
func coverage(x0, y0, x1, y1 float64, fn func(px, py float64) float64) mask {
	rect := image.Rect(int(math.Floor(x0)), int(math.Floor(y0)), int(math.Ceil(x1)), int(math.Ceil(y1)))
	if rect.Empty() {
		return mask{}
	}
	alpha := image.NewAlpha(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			v := fn(float64(x)+0.5, float64(y)+0.5)
			if v <= 0 {
				continue
			}
			alpha.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(math.Min(v, 1) * 255))})
		}
	}
	return mask{alpha: alpha}
}

func ringMask(cx, cy, radius, lineWidth float64) mask {
	half := lineWidth / 2
	outer := radius + half + 1
	return coverage(cx-outer, cy-outer, cx+outer, cy+outer, func(px, py float64) float64 {
		d := math.Hypot(px-cx, py-cy)
		return half + 0.5 - math.Abs(d-radius)
	})
}

func discMask(cx, cy, radius float64) mask {
	outer := radius + 1
	return coverage(cx-outer, cy-outer, cx+outer, cy+outer, func(px, py float64) float64 {
		return radius + 0.5 - math.Hypot(px-cx, py-cy)
	})
}

func rectMask(x, y, w, h float64) mask {
	return coverage(x, y, x+w, y+h, func(float64, float64) float64 { return 1 })
}
