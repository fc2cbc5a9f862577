// Package coords converts between the canonical percentage space stored with
// every position and the pixel space of the interactive surface.
package coords

import (
	"math"

	"github.com/starford/geoplan/internal/models"
)

// Frame is the content box of a plan in surface pixels.
type Frame struct {
	Width   float64
	Height  float64
	OriginX float64
	OriginY float64
}

// FromPlan returns the frame described by p.
func FromPlan(p models.Plan) Frame {
	return Frame{Width: p.Width, Height: p.Height, OriginX: p.OriginX, OriginY: p.OriginY}
}

// Valid reports whether the frame can be used for conversions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && !math.IsInf(f.Width, 0) && !math.IsInf(f.Height, 0)
}

// ToPixels maps a percentage pair to surface pixels. It returns NaN on both
// axes when the frame has no usable size; callers must check with IsNaN.
func ToPixels(px, py float64, f Frame) (float64, float64) {
	if !f.Valid() {
		return math.NaN(), math.NaN()
	}
	return px/100*f.Width + f.OriginX, py/100*f.Height + f.OriginY
}

// ToPercent maps surface pixels to percentages clamped to [0, 100]. Points
// outside the plan land on the nearest edge. Returns NaN for an unusable frame
// or NaN input.
func ToPercent(x, y float64, f Frame) (float64, float64) {
	if !f.Valid() {
		return math.NaN(), math.NaN()
	}
	return clamp((x - f.OriginX) / f.Width * 100), clamp((y - f.OriginY) / f.Height * 100)
}

// IsNaN reports whether either coordinate is NaN.
func IsNaN(x, y float64) bool {
	return math.IsNaN(x) || math.IsNaN(y)
}

// Contains reports whether the pixel point lies inside the frame.
func (f Frame) Contains(x, y float64) bool {
	return x >= f.OriginX && x <= f.OriginX+f.Width && y >= f.OriginY && y <= f.OriginY+f.Height
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return v
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
