package editor

import (
	"context"
	"fmt"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/scene"
	"github.com/starford/geoplan/internal/snap"
	"github.com/starford/geoplan/internal/toolbar"
)

type dragState struct {
	before scene.Object
}

// DragUpdate is the snapped preview position of an active drag.
type DragUpdate struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	SnappedX    bool    `json:"snapped_x"`
	SnappedY    bool    `json:"snapped_y"`
	Highlighted bool    `json:"highlighted"`
}

// BeginDrag starts moving an object. Only the select tool drags.
func (s *Session) BeginDrag(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if s.tools.State() != toolbar.Idle {
			return fmt.Errorf("editor: drag in state %s: %w", s.tools.State(), apperr.ErrConflict)
		}
		if s.drag != nil {
			return fmt.Errorf("editor: drag already active: %w", apperr.ErrConflict)
		}
		o, ok := s.scene.Get(id)
		if !ok {
			return fmt.Errorf("editor: drag %q: %w", id, apperr.ErrNotFound)
		}
		_ = s.scene.Select(id)
		s.drag = &dragState{before: o}
		return nil
	})
}

// DragTo moves the dragged object to the snapped candidate position. Nothing
// is committed or saved until EndDrag.
func (s *Session) DragTo(ctx context.Context, x, y float64) (DragUpdate, error) {
	var up DragUpdate
	err := s.call(ctx, func() error {
		if s.drag == nil {
			return fmt.Errorf("editor: no active drag: %w", apperr.ErrConflict)
		}
		id := s.drag.before.ID
		o, ok := s.scene.Get(id)
		if !ok {
			s.drag = nil
			return fmt.Errorf("editor: drag %q: %w", id, apperr.ErrNotFound)
		}
		box := o.Box()
		box.X, box.Y = x, y
		res := snap.Apply(s.snapCfg, box, s.scene.Neighbours(id), s.zoom)

		if err := s.scene.Nudge(id, res.X, res.Y); err != nil {
			return err
		}
		s.scene.SetHighlight(id, res.Object)
		s.scene.ClearGuides()
		if res.Object {
			s.addGuides(res)
		}
		up = DragUpdate{X: res.X, Y: res.Y, SnappedX: res.SnappedX, SnappedY: res.SnappedY, Highlighted: res.Object}
		return nil
	})
	return up, err
}

func (s *Session) addGuides(res snap.Result) {
	if res.SnappedX {
		_, _ = s.scene.Add(scene.Object{Kind: scene.KindGuide, X: res.X, Y: s.frame.OriginY + s.frame.Height/2, H: s.frame.Height}, scene.OriginUser)
	}
	if res.SnappedY {
		_, _ = s.scene.Add(scene.Object{Kind: scene.KindGuide, X: s.frame.OriginX + s.frame.Width/2, Y: res.Y, W: s.frame.Width}, scene.OriginUser)
	}
}

// EndDrag commits the dragged position as one move. It reports whether the
// object actually moved.
func (s *Session) EndDrag(ctx context.Context) (bool, error) {
	var moved bool
	err := s.call(ctx, func() error {
		if s.drag == nil {
			return fmt.Errorf("editor: no active drag: %w", apperr.ErrConflict)
		}
		before := s.drag.before
		s.drag = nil
		s.scene.ClearGuides()
		s.scene.SetHighlight(before.ID, false)

		var err error
		_, moved, err = s.scene.CommitFrom(before, scene.OriginUser)
		return err
	})
	return moved, err
}

// cancelDrag puts a dragged object back without committing.
func (s *Session) cancelDrag() {
	if s.drag == nil {
		return
	}
	before := s.drag.before
	s.drag = nil
	s.scene.ClearGuides()
	s.scene.SetHighlight(before.ID, false)
	_ = s.scene.Nudge(before.ID, before.X, before.Y)
}

// cancelDragOf drops an active drag of id so a direct edit starts from the
// committed state.
func (s *Session) cancelDragOf(id string) {
	if s.drag != nil && s.drag.before.ID == id {
		s.cancelDrag()
	}
}
