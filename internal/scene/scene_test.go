package scene

import (
	"bytes"
	"errors"
	"testing"

	"github.com/starford/geoplan/internal/apperr"
)

type recorder struct{ events []Event }

func (r *recorder) handle(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) types() []EventType {
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func newScene(t *testing.T) (*Scene, *recorder) {
	t.Helper()
	s := New()
	r := &recorder{}
	s.Subscribe(r.handle)
	return s, r
}

func marker(code string, x, y float64) Object {
	return Object{Kind: KindMarker, GeoCodeID: 1, Code: code, X: x, Y: y, W: 20, H: 20}
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAddMoveRemoveEvents(t *testing.T) {
	s, r := newScene(t)

	m, err := s.Add(marker("A1", 10, 10), OriginUser)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, err := s.Move(m.ID, 30, 40, OriginUser); err != nil {
		t.Fatalf("move: %v", err)
	}
	// Same coordinates: no event.
	if _, err := s.Move(m.ID, 30, 40, OriginUser); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := s.Resize(m.ID, 40, 40, OriginUser); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if _, err := s.SetAnchor(m.ID, &Point{X: 1, Y: 2}, OriginUser); err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if _, err := s.Remove(m.ID, OriginUser); err != nil {
		t.Fatalf("remove: %v", err)
	}

	want := []EventType{MarkerAdded, MarkerMoved, MarkerResized, MarkerAnchored, MarkerRemoved}
	if got := r.types(); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	moved := r.events[1]
	if moved.Previous == nil || moved.Previous.X != 10 || moved.Object.X != 30 {
		t.Errorf("moved event = %+v", moved)
	}
	if _, err := s.Remove(m.ID, OriginUser); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestNudgeThenCommit(t *testing.T) {
	s, r := newScene(t)
	m, _ := s.Add(marker("A1", 0, 0), OriginUser)
	before, _ := s.Get(m.ID)

	for _, x := range []float64{5, 10, 15} {
		if err := s.Nudge(m.ID, x, x); err != nil {
			t.Fatal(err)
		}
	}
	if len(r.events) != 1 {
		t.Fatalf("nudges emitted events: %v", r.types())
	}
	after, changed, err := s.CommitFrom(before, OriginUser)
	if err != nil || !changed {
		t.Fatalf("commit: changed=%v err=%v", changed, err)
	}
	if after.X != 15 || len(r.events) != 2 || r.events[1].Type != MarkerMoved {
		t.Errorf("commit events = %v, after = %+v", r.types(), after)
	}
}

func TestBatchDeliversAfterCompletion(t *testing.T) {
	s := New()
	a, _ := s.Add(marker("A1", 0, 0), OriginUser)
	b, _ := s.Add(marker("A1", 50, 50), OriginUser)

	var remaining []int
	s.Subscribe(func(ev Event) { remaining = append(remaining, s.Len()) })

	s.Batch(func() {
		_, _ = s.Remove(a.ID, OriginUser)
		_, _ = s.Remove(b.ID, OriginUser)
	})
	if len(remaining) != 2 || remaining[0] != 0 || remaining[1] != 0 {
		t.Errorf("subscribers saw intermediate state: %v", remaining)
	}
}

func TestSnapshotExcludesGuidesAndHighlight(t *testing.T) {
	s := New()
	m, _ := s.Add(marker("A1", 10, 10), OriginUser)
	before, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	_, _ = s.Add(Object{Kind: KindGuide, X: 10, Y: 0, W: 0, H: 600}, OriginUser)
	s.SetHighlight(m.ID, true)
	after, _ := s.Snapshot()
	if !bytes.Equal(before, after) {
		t.Errorf("guides or highlight leaked into snapshot:\n%s\n%s", before, after)
	}
}

func TestRestoreDiffs(t *testing.T) {
	s, r := newScene(t)
	keep, _ := s.Add(marker("A1", 10, 10), OriginUser)
	gone, _ := s.Add(marker("B2", 20, 20), OriginUser)
	snap, _ := s.Snapshot()

	_, _ = s.Move(keep.ID, 99, 99, OriginUser)
	_, _ = s.Remove(gone.ID, OriginUser)
	added, _ := s.Add(Object{Kind: KindRect, X: 1, Y: 1, W: 5, H: 5}, OriginUser)
	r.events = nil

	if err := s.Restore(snap, OriginReplay); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ := s.Snapshot()
	if !bytes.Equal(got, snap) {
		t.Fatalf("restore mismatch:\n%s\n%s", got, snap)
	}
	if _, ok := s.Get(added.ID); ok {
		t.Error("shape added after snapshot survived restore")
	}

	seen := map[EventType]int{}
	for _, ev := range r.events {
		if ev.Origin != OriginReplay {
			t.Errorf("event %s has origin %s", ev.Type, ev.Origin)
		}
		seen[ev.Type]++
	}
	if seen[ShapeRemoved] != 1 || seen[MarkerMoved] != 1 || seen[MarkerAdded] != 1 {
		t.Errorf("restore events = %v", r.types())
	}
}

func TestHitTestTopmost(t *testing.T) {
	s := New()
	_, _ = s.Add(Object{Kind: KindRect, X: 50, Y: 50, W: 100, H: 100}, OriginUser)
	top, _ := s.Add(marker("A1", 50, 50), OriginUser)

	o, ok := s.HitTest(52, 48)
	if !ok || o.ID != top.ID {
		t.Errorf("hit = %+v, want marker", o)
	}
	if _, ok := s.HitTest(500, 500); ok {
		t.Error("hit outside every object")
	}
}

func TestNeighboursSkipsSelfHiddenAndGuides(t *testing.T) {
	s := New()
	self, _ := s.Add(marker("A1", 0, 0), OriginUser)
	_, _ = s.Add(marker("B2", 10, 10), OriginUser)
	_, _ = s.Add(Object{Kind: KindRect, X: 5, Y: 5, W: 1, H: 1, Hidden: true}, OriginUser)
	_, _ = s.Add(Object{Kind: KindGuide, X: 5}, OriginUser)

	if n := s.Neighbours(self.ID); len(n) != 1 || n[0].X != 10 {
		t.Errorf("neighbours = %+v", n)
	}
}

func TestAddValidation(t *testing.T) {
	s := New()
	if _, err := s.Add(Object{Kind: "blob"}, OriginUser); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown kind err = %v", err)
	}
	m, _ := s.Add(marker("A1", 0, 0), OriginUser)
	if _, err := s.Add(Object{ID: m.ID, Kind: KindMarker}, OriginUser); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate id err = %v", err)
	}
	if _, err := s.SetAnchor(m.ID, &Point{X: 1, Y: 1}, OriginUser); err != nil {
		t.Fatal(err)
	}
	rect, _ := s.Add(Object{Kind: KindRect, W: 1, H: 1}, OriginUser)
	if _, err := s.SetAnchor(rect.ID, &Point{}, OriginUser); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("anchor on shape err = %v", err)
	}
}
