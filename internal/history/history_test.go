package history

import (
	"bytes"
	"errors"
	"testing"

	"github.com/starford/geoplan/internal/scene"
)

type sceneSource struct{ *scene.Scene }

func (s sceneSource) Restore(data []byte) error { return s.Scene.Restore(data, scene.OriginReplay) }

// tracked wires a manager to a scene the way an editor session does.
func tracked(t *testing.T, limit int) (*scene.Scene, *Manager) {
	t.Helper()
	sc := scene.New()
	m, err := New(sceneSource{sc}, limit)
	if err != nil {
		t.Fatal(err)
	}
	sc.Subscribe(func(ev scene.Event) {
		var err error
		if ev.Origin == scene.OriginReconcile {
			err = m.Rebase()
		} else {
			_, err = m.RecordIfChanged()
		}
		if err != nil {
			t.Errorf("history: %v", err)
		}
	})
	return sc, m
}

func snapshot(t *testing.T, sc *scene.Scene) []byte {
	t.Helper()
	data, err := sc.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestUndoAllReturnsToInitial(t *testing.T) {
	sc, m := tracked(t, 0)
	initial := snapshot(t, sc)

	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1, X: 10, Y: 10}, scene.OriginUser)
	_, _ = sc.Move(a.ID, 20, 20, scene.OriginUser)
	_, _ = sc.Resize(a.ID, 30, 30, scene.OriginUser)
	_, _ = sc.Add(scene.Object{Kind: scene.KindRect, X: 1, Y: 1, W: 2, H: 2}, scene.OriginUser)
	_, _ = sc.Remove(a.ID, scene.OriginUser)

	const n = 5
	if u, _ := m.Depth(); u != n {
		t.Fatalf("undo depth = %d, want %d", u, n)
	}
	for i := 0; i < n; i++ {
		ok, err := m.Undo()
		if err != nil || !ok {
			t.Fatalf("undo %d: ok=%v err=%v", i, ok, err)
		}
	}
	if got := snapshot(t, sc); !bytes.Equal(got, initial) {
		t.Errorf("scene after %d undos = %s, want %s", n, got, initial)
	}
	if ok, _ := m.Undo(); ok {
		t.Error("undo on empty stack should be a no-op")
	}

	for i := 0; i < n; i++ {
		if ok, err := m.Redo(); err != nil || !ok {
			t.Fatalf("redo %d: ok=%v err=%v", i, ok, err)
		}
	}
	if sc.Len() != 1 {
		t.Errorf("after redo all, objects = %d, want 1 rect", sc.Len())
	}
}

func TestNewMutationClearsRedo(t *testing.T) {
	sc, m := tracked(t, 0)
	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	_, _ = sc.Move(a.ID, 5, 5, scene.OriginUser)

	if ok, _ := m.Undo(); !ok {
		t.Fatal("undo failed")
	}
	if !m.CanRedo() {
		t.Fatal("redo should be available")
	}
	_, _ = sc.Move(a.ID, 7, 7, scene.OriginUser)
	if m.CanRedo() {
		t.Fatal("new mutation must discard redo")
	}
	if ok, _ := m.Redo(); ok {
		t.Error("redo after new mutation should be a no-op")
	}
	o, _ := sc.Get(a.ID)
	if o.X != 7 {
		t.Errorf("x = %v, want 7", o.X)
	}
}

func TestReplayDoesNotRecord(t *testing.T) {
	sc, m := tracked(t, 0)
	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	_, _ = sc.Move(a.ID, 5, 5, scene.OriginUser)
	_, _ = m.Undo()

	u, r := m.Depth()
	if u != 1 || r != 1 {
		t.Errorf("depth after undo = (%d,%d), want (1,1)", u, r)
	}
}

func TestRecordIfChangedNoop(t *testing.T) {
	sc, m := tracked(t, 0)
	_, _ = sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	ok, err := m.RecordIfChanged()
	if err != nil || ok {
		t.Errorf("identical snapshot recorded: ok=%v err=%v", ok, err)
	}
}

func TestLimitDropsOldest(t *testing.T) {
	sc, m := tracked(t, 3)
	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	for i := 1; i <= 5; i++ {
		_, _ = sc.Move(a.ID, float64(i), 0, scene.OriginUser)
	}
	if u, _ := m.Depth(); u != 3 {
		t.Fatalf("undo depth = %d, want 3", u)
	}
	for m.CanUndo() {
		_, _ = m.Undo()
	}
	o, ok := sc.Get(a.ID)
	if !ok || o.X != 2 {
		t.Errorf("oldest reachable state x = %v (present=%v), want 2", o.X, ok)
	}
}

func TestReconcileRebases(t *testing.T) {
	sc, m := tracked(t, 0)
	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	_, _ = sc.Move(a.ID, 9, 9, scene.OriginReconcile)

	if u, _ := m.Depth(); u != 1 {
		t.Errorf("reconcile created an undo step: depth %d", u)
	}
	_, _ = m.Undo()
	if sc.Len() != 0 {
		t.Error("undo should remove the marker")
	}
}

type failingSource struct{ sceneSource }

func (failingSource) Restore([]byte) error { return errors.New("boom") }

func TestSuspendReleasedOnFailure(t *testing.T) {
	sc := scene.New()
	m, _ := New(failingSource{sceneSource{sc}}, 0)
	_, _ = sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	_, _ = m.RecordIfChanged()

	if _, err := m.Undo(); err == nil {
		t.Fatal("expected replay error")
	}
	if m.Suspended() {
		t.Error("guard still held after failed replay")
	}
	if !m.CanUndo() {
		t.Error("failed undo must not consume the step")
	}
}

func TestRebaseDropsNoopUndo(t *testing.T) {
	sc, m := tracked(t, 0)
	a, _ := sc.Add(scene.Object{Kind: scene.KindMarker, GeoCodeID: 1}, scene.OriginUser)
	if !m.CanUndo() {
		t.Fatal("placement should be undoable")
	}
	_, _ = sc.Remove(a.ID, scene.OriginReconcile)
	if m.CanUndo() {
		t.Error("undo step that matches the rebased state should be dropped")
	}
}
