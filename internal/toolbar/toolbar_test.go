package toolbar

import (
	"errors"
	"testing"

	"github.com/starford/geoplan/internal/models"
)

type fakeSelection struct{ id string }

func (f *fakeSelection) Selected() string { return f.id }
func (f *fakeSelection) ClearSelection()  { f.id = "" }

func TestPlacingMarkerClearsSelectionAndCompletes(t *testing.T) {
	sel := &fakeSelection{id: "obj-1"}
	m := New(sel)

	if err := m.Pick(Pick{Tool: ToolMarker, GeoCode: &models.GeoCode{ID: 3, Code: "A1"}}); err != nil {
		t.Fatal(err)
	}
	if m.State() != PlacingMarker || m.GeoCode().Code != "A1" {
		t.Fatalf("state = %s code = %q", m.State(), m.GeoCode().Code)
	}
	if sel.id != "" {
		t.Error("entering placing-marker must clear the selection")
	}
	m.Complete()
	if m.State() != Idle {
		t.Errorf("after placing, state = %s", m.State())
	}
}

func TestArrowCapturesTarget(t *testing.T) {
	sel := &fakeSelection{}
	m := New(sel)
	if err := m.Pick(Pick{Tool: ToolArrow}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("err = %v, want ErrNoTarget", err)
	}
	if m.State() != Idle {
		t.Fatal("failed pick changed state")
	}

	sel.id = "marker-9"
	if err := m.Pick(Pick{Tool: ToolArrow}); err != nil {
		t.Fatal(err)
	}
	if m.State() != PlacingArrow || m.ArrowTarget() != "marker-9" || sel.id != "" {
		t.Errorf("state=%s target=%q sel=%q", m.State(), m.ArrowTarget(), sel.id)
	}
}

func TestShapeStickiness(t *testing.T) {
	tests := []struct {
		sticky bool
		want   State
	}{
		{false, Idle},
		{true, DrawingShape},
	}
	for _, tt := range tests {
		m := New(&fakeSelection{id: "keep"})
		if err := m.Pick(Pick{Tool: ToolRect, Sticky: tt.sticky}); err != nil {
			t.Fatal(err)
		}
		m.Complete()
		if m.State() != tt.want {
			t.Errorf("sticky=%v: state = %s, want %s", tt.sticky, m.State(), tt.want)
		}
	}
}

func TestEscapeReturnsToIdle(t *testing.T) {
	for _, p := range []Pick{
		{Tool: ToolMarker, GeoCode: &models.GeoCode{ID: 1}},
		{Tool: ToolCircle, Sticky: true},
	} {
		m := New(&fakeSelection{})
		if err := m.Pick(p); err != nil {
			t.Fatal(err)
		}
		m.Escape()
		if m.State() != Idle || m.Tool() != ToolSelect || m.GeoCode().ID != 0 {
			t.Errorf("%s: escape left state %s tool %s", p.Tool, m.State(), m.Tool())
		}
	}
}

func TestPickValidation(t *testing.T) {
	m := New(&fakeSelection{})
	if err := m.Pick(Pick{Tool: ToolMarker}); !errors.Is(err, ErrNoGeoCode) {
		t.Errorf("marker without code: %v", err)
	}
	if err := m.Pick(Pick{Tool: "lasso"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("unknown tool: %v", err)
	}
}
