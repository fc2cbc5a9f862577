package coords

import (
	"math"
	"math/rand"
	"testing"
)

const eps = 1e-6

func TestToPixels(t *testing.T) {
	f := Frame{Width: 800, Height: 600}
	x, y := ToPixels(50, 50, f)
	if x != 400 || y != 300 {
		t.Fatalf("ToPixels(50,50) = (%v,%v), want (400,300)", x, y)
	}

	f.OriginX, f.OriginY = -120, 35
	x, y = ToPixels(25, 100, f)
	if math.Abs(x-80) > eps || math.Abs(y-635) > eps {
		t.Fatalf("with origin = (%v,%v), want (80,635)", x, y)
	}
}

func TestToPixels_InvalidFrame(t *testing.T) {
	for _, f := range []Frame{{}, {Width: 800}, {Height: 600}, {Width: -1, Height: 10}} {
		x, y := ToPixels(10, 10, f)
		if !IsNaN(x, y) {
			t.Errorf("frame %+v: got (%v,%v), want NaN", f, x, y)
		}
	}
}

func TestToPercent_Exact(t *testing.T) {
	f := Frame{Width: 800, Height: 600}
	px, py := ToPercent(400, 300, f)
	if px != 50 || py != 50 {
		t.Fatalf("ToPercent(400,300) = (%v,%v), want (50,50)", px, py)
	}
	px, py = ToPercent(200, 150, f)
	if px != 25 || py != 25 {
		t.Fatalf("ToPercent(200,150) = (%v,%v), want (25,25)", px, py)
	}
}

func TestToPercent_Clamped(t *testing.T) {
	f := Frame{Width: 800, Height: 600, OriginX: 10, OriginY: 10}
	tests := []struct {
		x, y   float64
		wx, wy float64
	}{
		{-500, -1, 0, 0},
		{5000, 9000, 100, 100},
		{0, 310, 0, 50},
		{410, 1e9, 50, 100},
	}
	for _, tt := range tests {
		px, py := ToPercent(tt.x, tt.y, f)
		if px != tt.wx || py != tt.wy {
			t.Errorf("ToPercent(%v,%v) = (%v,%v), want (%v,%v)", tt.x, tt.y, px, py, tt.wx, tt.wy)
		}
	}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		px, py := ToPercent((r.Float64()-0.5)*1e6, (r.Float64()-0.5)*1e6, f)
		if px < 0 || px > 100 || py < 0 || py > 100 {
			t.Fatalf("out of range: (%v,%v)", px, py)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		f := Frame{
			Width:   1 + r.Float64()*5000,
			Height:  1 + r.Float64()*5000,
			OriginX: (r.Float64() - 0.5) * 1000,
			OriginY: (r.Float64() - 0.5) * 1000,
		}
		x := f.OriginX + r.Float64()*f.Width
		y := f.OriginY + r.Float64()*f.Height

		px, py := ToPercent(x, y, f)
		gx, gy := ToPixels(px, py, f)
		if math.Abs(gx-x) > eps || math.Abs(gy-y) > eps {
			t.Fatalf("frame %+v: (%v,%v) -> (%v,%v) -> (%v,%v)", f, x, y, px, py, gx, gy)
		}

		bx, by := ToPercent(gx, gy, f)
		if math.Abs(bx-px) > eps || math.Abs(by-py) > eps {
			t.Fatalf("percent round trip drifted: (%v,%v) -> (%v,%v)", px, py, bx, by)
		}
	}
}

func TestToPercent_InvalidFrame(t *testing.T) {
	px, py := ToPercent(1, 1, Frame{Width: 0, Height: 600})
	if !IsNaN(px, py) {
		t.Fatalf("got (%v,%v), want NaN", px, py)
	}
}
