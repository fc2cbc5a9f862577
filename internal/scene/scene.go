// Package scene is the in-memory model of the interactive surface: the
// markers and shapes drawn over a plan, the current selection, and a
// synchronous bus that announces every committed mutation.
//
// A Scene is not safe for concurrent use. It is owned by a single editor
// session loop.
package scene

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/snap"
)

// Scene holds the objects of one open plan.
type Scene struct {
	objects  map[string]*Object
	order    []string
	handlers []Handler
	selected string

	batchDepth int
	queued     []Event
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{objects: make(map[string]*Object)}
}

// Subscribe registers h for every subsequent event.
func (s *Scene) Subscribe(h Handler) {
	s.handlers = append(s.handlers, h)
}

func (s *Scene) emit(ev Event) {
	if s.batchDepth > 0 {
		s.queued = append(s.queued, ev)
		return
	}
	for _, h := range s.handlers {
		h(ev)
	}
}

// Batch runs fn and delivers the events it produced only after fn returns,
// so subscribers observe the scene in its final state.
func (s *Scene) Batch(fn func()) {
	s.batchDepth++
	func() {
		defer func() { s.batchDepth-- }()
		fn()
	}()
	if s.batchDepth > 0 {
		return
	}
	queued := s.queued
	s.queued = nil
	for _, ev := range queued {
		s.emit(ev)
	}
}

func (s *Scene) lookup(id string) (*Object, error) {
	o, ok := s.objects[id]
	if !ok {
		return nil, fmt.Errorf("scene: object %q: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Add inserts o, assigning an id when it has none, and returns the stored copy.
func (s *Scene) Add(o Object, origin Origin) (Object, error) {
	if !o.Kind.Valid() {
		return Object{}, fmt.Errorf("scene: kind %q: %w", o.Kind, apperr.ErrValidation)
	}
	if !finite(o.X, o.Y, o.W, o.H) || o.W < 0 || o.H < 0 {
		return Object{}, fmt.Errorf("scene: geometry: %w", apperr.ErrValidation)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, ok := s.objects[o.ID]; ok {
		return Object{}, fmt.Errorf("scene: object %q: %w", o.ID, apperr.ErrAlreadyExists)
	}
	stored := o.Clone()
	s.objects[o.ID] = &stored
	s.order = append(s.order, o.ID)

	if o.Persistent() {
		s.emit(Event{Type: addedType(o.Kind), Object: stored.Clone(), Origin: origin})
	}
	return stored.Clone(), nil
}

// Get returns a copy of the object.
func (s *Scene) Get(id string) (Object, bool) {
	o, ok := s.objects[id]
	if !ok {
		return Object{}, false
	}
	return o.Clone(), true
}

// Len returns the number of persistent objects.
func (s *Scene) Len() int {
	n := 0
	for _, o := range s.objects {
		if o.Persistent() {
			n++
		}
	}
	return n
}

// Objects returns copies of all objects in paint order.
func (s *Scene) Objects() []Object {
	out := make([]Object, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.objects[id].Clone())
	}
	return out
}

// Markers returns all markers in paint order.
func (s *Scene) Markers() []Object {
	var out []Object
	for _, id := range s.order {
		if o := s.objects[id]; o.Kind == KindMarker {
			out = append(out, o.Clone())
		}
	}
	return out
}

// MarkersFor returns every instance of a geo code.
func (s *Scene) MarkersFor(geoCodeID int64) []Object {
	var out []Object
	for _, id := range s.order {
		if o := s.objects[id]; o.Kind == KindMarker && o.GeoCodeID == geoCodeID {
			out = append(out, o.Clone())
		}
	}
	return out
}

// modify applies fn to a copy of the object and emits the matching change
// event when a persisted field differs.
func (s *Scene) modify(id string, origin Origin, fn func(o *Object) error) (Object, error) {
	cur, err := s.lookup(id)
	if err != nil {
		return Object{}, err
	}
	before := cur.Clone()
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return before, err
	}
	*cur = next

	if cur.Persistent() {
		if typ, changed := changeType(before, next); changed {
			prev := before
			s.emit(Event{Type: typ, Object: next.Clone(), Previous: &prev, Origin: origin})
		}
	}
	return next.Clone(), nil
}

// Move commits a new centre for the object.
func (s *Scene) Move(id string, x, y float64, origin Origin) (Object, error) {
	return s.modify(id, origin, func(o *Object) error {
		if !finite(x, y) {
			return fmt.Errorf("scene: move: %w", apperr.ErrValidation)
		}
		o.X, o.Y = x, y
		return nil
	})
}

// Nudge moves the object without emitting an event. It is used for the
// uncommitted positions of an active drag.
func (s *Scene) Nudge(id string, x, y float64) error {
	o, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !finite(x, y) {
		return fmt.Errorf("scene: nudge: %w", apperr.ErrValidation)
	}
	o.X, o.Y = x, y
	return nil
}

// CommitFrom announces the difference between before and the current state
// of the object as one event. It ends a drag that was previewed with Nudge.
func (s *Scene) CommitFrom(before Object, origin Origin) (Object, bool, error) {
	cur, err := s.lookup(before.ID)
	if err != nil {
		return Object{}, false, err
	}
	after := cur.Clone()
	typ, changed := changeType(before, after)
	if changed && after.Persistent() {
		prev := before.Clone()
		s.emit(Event{Type: typ, Object: after, Previous: &prev, Origin: origin})
	}
	return after, changed, nil
}

// Resize sets the rendered size of the object.
func (s *Scene) Resize(id string, w, h float64, origin Origin) (Object, error) {
	return s.modify(id, origin, func(o *Object) error {
		if !finite(w, h) || w < 0 || h < 0 {
			return fmt.Errorf("scene: resize: %w", apperr.ErrValidation)
		}
		o.W, o.H = w, h
		return nil
	})
}

// SetAnchor points a marker at p, or removes its arrow when p is nil.
func (s *Scene) SetAnchor(id string, p *Point, origin Origin) (Object, error) {
	return s.modify(id, origin, func(o *Object) error {
		if o.Kind != KindMarker {
			return fmt.Errorf("scene: anchor on %s: %w", o.Kind, apperr.ErrValidation)
		}
		if p == nil {
			o.Anchor = nil
			return nil
		}
		if !finite(p.X, p.Y) {
			return fmt.Errorf("scene: anchor: %w", apperr.ErrValidation)
		}
		a := *p
		o.Anchor = &a
		return nil
	})
}

// Replace overwrites the full state of an existing object. The engine uses
// it to roll a marker back to its last saved state.
func (s *Scene) Replace(o Object, origin Origin) (Object, error) {
	return s.modify(o.ID, origin, func(cur *Object) error {
		if cur.Kind != o.Kind {
			return fmt.Errorf("scene: replace kind %s with %s: %w", cur.Kind, o.Kind, apperr.ErrValidation)
		}
		hl := cur.Highlighted
		*cur = o.Clone()
		cur.Highlighted = hl
		return nil
	})
}

// Remove deletes the object and returns its last state.
func (s *Scene) Remove(id string, origin Origin) (Object, error) {
	o, err := s.lookup(id)
	if err != nil {
		return Object{}, err
	}
	removed := o.Clone()
	delete(s.objects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
	if removed.Persistent() {
		s.emit(Event{Type: removedType(removed.Kind), Object: removed.Clone(), Previous: &removed, Origin: origin})
	}
	return removed, nil
}

// SetHighlight toggles the snap indicator. It is not a scene mutation.
func (s *Scene) SetHighlight(id string, on bool) {
	if o, ok := s.objects[id]; ok {
		o.Highlighted = on
	}
}

// Select marks id as the current selection.
func (s *Scene) Select(id string) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.selected = id
	return nil
}

// Selected returns the selected object id, or "".
func (s *Scene) Selected() string { return s.selected }

// ClearSelection drops the selection.
func (s *Scene) ClearSelection() { s.selected = "" }

// HitTest returns the topmost visible persistent object at the point.
func (s *Scene) HitTest(x, y float64) (Object, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		o := s.objects[s.order[i]]
		if o.Persistent() && !o.Hidden && o.Contains(x, y) {
			return o.Clone(), true
		}
	}
	return Object{}, false
}

// Neighbours returns the snap footprints of every visible persistent object
// other than id.
func (s *Scene) Neighbours(id string) []snap.Box {
	out := make([]snap.Box, 0, len(s.order))
	for _, oid := range s.order {
		o := s.objects[oid]
		if oid == id || !o.Persistent() || o.Hidden {
			continue
		}
		out = append(out, o.Box())
	}
	return out
}

// ClearGuides removes every transient guide.
func (s *Scene) ClearGuides() {
	kept := s.order[:0]
	for _, id := range s.order {
		if s.objects[id].Kind == KindGuide {
			delete(s.objects, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
