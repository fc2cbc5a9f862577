package scene

import (
	"math"

	"github.com/starford/geoplan/internal/snap"
)

// Kind identifies what an object on the surface represents.
type Kind string

// Object kinds. Guides are transient alignment lines drawn during a drag and
// are never part of a snapshot.
const (
	KindMarker Kind = "marker"
	KindRect   Kind = "rect"
	KindLine   Kind = "line"
	KindCircle Kind = "circle"
	KindText   Kind = "text"
	KindGuide  Kind = "guide"
)

// Shape reports whether k is a drawn shape.
func (k Kind) Shape() bool {
	switch k {
	case KindRect, KindLine, KindCircle, KindText:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindMarker || k == KindGuide || k.Shape()
}

// Point is a pixel location on the surface.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is one item on the interactive surface. X and Y are the centre of
// the object in surface pixels. Markers never carry their store identity;
// that binding lives with the marker engine.
type Object struct {
	ID     string  `json:"id"`
	Kind   Kind    `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Hidden bool    `json:"hidden,omitempty"`

	GeoCodeID int64  `json:"geo_code_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Label     string `json:"label,omitempty"`
	Category  string `json:"category,omitempty"`
	Anchor    *Point `json:"anchor,omitempty"`

	Text string `json:"text,omitempty"`

	// Highlighted is the object-snap indicator; it is view state only.
	Highlighted bool `json:"-"`
}

// Box returns the footprint used for snapping.
func (o Object) Box() snap.Box {
	return snap.Box{X: o.X, Y: o.Y, W: o.W, H: o.H}
}

// Persistent reports whether the object belongs in a history snapshot.
func (o Object) Persistent() bool {
	return o.Kind != KindGuide
}

// Contains reports whether the pixel point falls inside the footprint. Small
// markers get a minimum hit area so they stay clickable.
func (o Object) Contains(x, y float64) bool {
	w, h := math.Max(o.W, minHit), math.Max(o.H, minHit)
	return math.Abs(x-o.X) <= w/2 && math.Abs(y-o.Y) <= h/2
}

const minHit = 8

func (o Object) samePosition(p Object) bool { return o.X == p.X && o.Y == p.Y }
func (o Object) sameSize(p Object) bool     { return o.W == p.W && o.H == p.H }

func (o Object) sameAnchor(p Object) bool {
	switch {
	case o.Anchor == nil && p.Anchor == nil:
		return true
	case o.Anchor == nil || p.Anchor == nil:
		return false
	}
	return *o.Anchor == *p.Anchor
}

// sameState compares every persisted field.
func (o Object) sameState(p Object) bool {
	return o.ID == p.ID && o.Kind == p.Kind && o.samePosition(p) && o.sameSize(p) &&
		o.Hidden == p.Hidden && o.GeoCodeID == p.GeoCodeID && o.Code == p.Code &&
		o.Label == p.Label && o.Category == p.Category && o.sameAnchor(p) && o.Text == p.Text
}

// Clone returns a deep copy so callers never alias scene state.
func (o Object) Clone() Object {
	if o.Anchor != nil {
		a := *o.Anchor
		o.Anchor = &a
	}
	return o
}
