package editor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

func TestRegistryOpenLoadsPositions(t *testing.T) {
	fc := newFakeClient()
	fc.list = []models.Position{{ID: 9, GeoCodeID: 1, PlanID: 7, PosX: 50, PosY: 50, Code: "A1"}}
	r := NewRegistry(fc)
	t.Cleanup(r.CloseAll)
	ctx := testCtx(t)

	s, err := r.Open(ctx, plan7)
	if err != nil {
		t.Fatal(err)
	}
	got, err := r.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("get = %v, %v", got, err)
	}
	v, err := s.View(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Markers) != 1 || v.Markers[0].X != 400 || v.Markers[0].Y != 300 {
		t.Errorf("markers = %+v", v.Markers)
	}
	if v.CanUndo {
		t.Error("loading must not be undoable")
	}
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	r := NewRegistry(newFakeClient())
	t.Cleanup(r.CloseAll)
	ctx := testCtx(t)

	a, _ := r.Open(ctx, plan7)
	b, _ := r.Open(ctx, plan7)
	if a.ID() == b.ID() {
		t.Fatal("session ids collide")
	}
	if _, err := a.PlaceMarker(ctx, codeA1, 10, 10); err != nil {
		t.Fatal(err)
	}
	vb, _ := b.View(ctx)
	if len(vb.Markers) != 0 {
		t.Errorf("session b sees %d markers", len(vb.Markers))
	}
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(newFakeClient())
	ctx := testCtx(t)
	s, _ := r.Open(ctx, plan7)

	if err := r.Close(s.ID()); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 {
		t.Errorf("len = %d", r.Len())
	}
	if _, err := r.Get(s.ID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after close = %v", err)
	}
	if err := r.Close(s.ID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second close = %v", err)
	}
	if _, err := s.View(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("view on closed session = %v", err)
	}
}

func TestRegistryRejectsSizelessPlan(t *testing.T) {
	r := NewRegistry(newFakeClient())
	if _, err := r.Open(testCtx(t), models.Plan{ID: 3}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestRegistrySweepClosesIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	r := NewRegistry(newFakeClient())
	r.now = clock.now
	t.Cleanup(r.CloseAll)
	ctx := testCtx(t)

	idle, err := r.Open(ctx, plan7)
	if err != nil {
		t.Fatal(err)
	}
	busy, err := r.Open(ctx, plan7)
	if err != nil {
		t.Fatal(err)
	}

	clock.advance(20 * time.Minute)
	if _, err := r.Get(busy.ID()); err != nil {
		t.Fatal(err)
	}
	clock.advance(15 * time.Minute)

	if n := r.Sweep(30 * time.Minute); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := r.Get(idle.ID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("idle session still open: %v", err)
	}
	if _, err := idle.View(ctx); err == nil {
		t.Error("swept session still answers")
	}
	if _, err := r.Get(busy.ID()); err != nil {
		t.Errorf("recently used session swept: %v", err)
	}
}
