// Package snap adjusts a dragged object's candidate position to a grid or to
// the edges and centres of neighbouring objects. It runs once per drag-move
// event and is linear in the number of neighbours.
package snap

import "math"

// Box is an axis-aligned object footprint in surface pixels, centred on (X, Y).
type Box struct {
	X, Y float64
	W, H float64
}

// lines returns the left/centre/right (or top/middle/bottom) coordinates on one axis.
func lines(c, size float64) [3]float64 {
	return [3]float64{c - size/2, c, c + size/2}
}

// Config selects the snapping mode. Grid snapping wins when both are enabled.
type Config struct {
	Grid      bool
	GridSize  float64
	Objects   bool
	Threshold float64 // screen pixels; divided by the current zoom
}

// Result is the adjusted centre and which snaps fired.
type Result struct {
	X, Y     float64
	SnappedX bool
	SnappedY bool
	// Object is true when the position came from object snapping; it drives
	// the highlight indicator on the dragged marker.
	Object bool
	// RefX/RefY index the neighbour that produced each axis snap, -1 if none.
	RefX, RefY int
}

// ToGrid rounds each coordinate to the nearest multiple of size. A
// non-positive size leaves the point untouched.
func ToGrid(x, y, size float64) (float64, float64) {
	if size <= 0 || math.IsNaN(size) {
		return x, y
	}
	return math.Round(x/size) * size, math.Round(y/size) * size
}

// ToObjects aligns target with the closest corresponding line of any
// neighbour when the gap is below threshold/zoom. Each axis is resolved on
// its own, so horizontal and vertical snaps may come from different neighbours.
func ToObjects(target Box, others []Box, threshold, zoom float64) Result {
	res := Result{X: target.X, Y: target.Y, RefX: -1, RefY: -1}
	if zoom <= 0 {
		zoom = 1
	}
	limit := threshold / zoom
	if limit <= 0 {
		return res
	}

	bestX, bestY := limit, limit
	var dx, dy float64
	tx, ty := lines(target.X, target.W), lines(target.Y, target.H)

	for i, o := range others {
		ox, oy := lines(o.X, o.W), lines(o.Y, o.H)
		for k := 0; k < 3; k++ {
			if d := ox[k] - tx[k]; math.Abs(d) < bestX {
				bestX, dx, res.RefX = math.Abs(d), d, i
			}
			if d := oy[k] - ty[k]; math.Abs(d) < bestY {
				bestY, dy, res.RefY = math.Abs(d), d, i
			}
		}
	}

	if res.RefX >= 0 {
		res.X += dx
		res.SnappedX = true
	}
	if res.RefY >= 0 {
		res.Y += dy
		res.SnappedY = true
	}
	res.Object = res.SnappedX || res.SnappedY
	return res
}

// Apply runs the configured mode for one drag-move event.
func Apply(cfg Config, target Box, others []Box, zoom float64) Result {
	switch {
	case cfg.Grid && cfg.GridSize > 0:
		x, y := ToGrid(target.X, target.Y, cfg.GridSize)
		return Result{X: x, Y: y, SnappedX: x != target.X, SnappedY: y != target.Y, RefX: -1, RefY: -1}
	case cfg.Objects:
		return ToObjects(target, others, cfg.Threshold, zoom)
	}
	return Result{X: target.X, Y: target.Y, RefX: -1, RefY: -1}
}
