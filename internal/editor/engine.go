package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/coords"
	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/scene"
)

// SaveState is the persistence state of one marker.
type SaveState int

// Marker save states.
//
//	unsaved -> saving -> saved
//	saving  -> failed -> unsaved (retried on the next mutation)
const (
	Unsaved SaveState = iota
	Saving
	Saved
	Failed
)

func (s SaveState) String() string {
	switch s {
	case Unsaved:
		return "unsaved"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var transitions = map[SaveState][]SaveState{
	Unsaved: {Saving},
	Saving:  {Saved, Failed},
	Saved:   {Unsaved},
	Failed:  {Unsaved},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to SaveState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// binding ties a scene marker to its store row.
type binding struct {
	objectID   string
	geoCodeID  int64
	positionID int64 // 0 until the store issued one
	state      SaveState

	inflight bool
	pending  bool // a newer mutation waits for the in-flight call
	parked   bool // waits for a remove of the same geo code
	removed  bool // marker left the scene; completions must not touch it
	forget   bool // removed by a reload; no store side effects
	bulk     bool // covered by a remove-all of its geo code

	latest scene.Object  // last committed state; drag previews never land here
	saved  *scene.Object // last state the store confirmed
	err    error
}

// Notice kinds surfaced to the user.
const (
	NoticePlacementFailed = "placement_failed"
	NoticeSaveFailed      = "save_failed"
	NoticeRolledBack      = "rolled_back"
	NoticeRemoveFailed    = "remove_failed"
	NoticeOrphanRemoved   = "orphan_removed"
)

// Notice is a non-blocking notification about a store outcome.
type Notice struct {
	Kind       string `json:"kind"`
	ObjectID   string `json:"object_id,omitempty"`
	GeoCodeID  int64  `json:"geo_code_id,omitempty"`
	PositionID int64  `json:"position_id,omitempty"`
	Message    string `json:"message"`
}

// spawnFunc runs work off the loop and applies the closure it returns back
// on the loop.
type spawnFunc func(work func(ctx context.Context) func())

// engine binds scene markers to store positions. Every method runs on the
// session loop.
type engine struct {
	plan   models.Plan
	frame  coords.Frame
	scene  *scene.Scene
	client PositionClient
	spawn  spawnFunc
	notify func(Notice)
	logger *slog.Logger

	markerW, markerH float64

	bindings map[string]*binding
	busy     int

	// Removes in flight per geo code. Saves for that code wait for them so
	// an insert never races the delete of the row it would upsert into.
	removing map[int64]int
	parked   map[int64][]*binding

	// Bindings removed from the scene while a save was in flight, by object
	// id. Each one holds saves of its geo code until the save completes.
	departed map[string]*binding
}

func (e *engine) advance(b *binding, to SaveState) {
	if !CanTransition(b.state, to) {
		e.logger.Warn("editor: unexpected save transition",
			slog.String("object", b.objectID),
			slog.String("from", b.state.String()),
			slog.String("to", to.String()))
	}
	b.state = to
}

func (e *engine) idle() bool { return e.busy == 0 }

// handle is the engine's scene subscriber.
func (e *engine) handle(ev scene.Event) {
	if !ev.Type.IsMarker() {
		return
	}
	id := ev.Object.ID

	if ev.Origin == scene.OriginReconcile {
		b := e.bindings[id]
		switch {
		case b == nil:
		case ev.Type == scene.MarkerRemoved:
			delete(e.bindings, id)
			b.removed, b.forget = true, true
		default:
			b.latest = ev.Object.Clone()
		}
		return
	}

	switch ev.Type {
	case scene.MarkerAdded:
		if e.revive(id, ev.Object) {
			return
		}
		b := &binding{objectID: id, geoCodeID: ev.Object.GeoCodeID, state: Unsaved, latest: ev.Object.Clone()}
		e.bindings[id] = b
		e.save(b)
	case scene.MarkerRemoved:
		e.untrack(id)
	default:
		if b := e.bindings[id]; b != nil {
			b.latest = ev.Object.Clone()
			e.save(b)
		}
	}
}

// revive rebinds a marker that comes back (redo, undo of a remove) while the
// save of its previous life is still in flight. The in-flight call owns the
// row; the restored state follows it as a queued save. A marker covered by a
// remove-all starts over once the bulk delete is done.
func (e *engine) revive(id string, obj scene.Object) bool {
	b := e.departed[id]
	if b == nil || b.bulk || !b.inflight {
		return false
	}
	delete(e.departed, id)
	b.removed = false
	b.pending = true
	b.latest = obj.Clone()
	e.bindings[id] = b
	e.release(b.geoCodeID)
	return true
}

// depart records a binding removed while its save is in flight.
func (e *engine) depart(b *binding) {
	e.departed[b.objectID] = b
	e.removing[b.geoCodeID]++
}

// request builds the full upsert payload from the marker's committed pixels.
func (e *engine) request(b *binding, obj scene.Object) (models.SaveRequest, error) {
	px, py := coords.ToPercent(obj.X, obj.Y, e.frame)
	if coords.IsNaN(px, py) {
		return models.SaveRequest{}, fmt.Errorf("editor: marker %s has no valid position: %w", obj.ID, apperr.ErrValidation)
	}
	req := models.SaveRequest{GeoCodeID: b.geoCodeID, PlanID: e.plan.ID, PosX: px, PosY: py}
	if obj.W > 0 && obj.H > 0 {
		w, h := int(math.Round(obj.W)), int(math.Round(obj.H))
		req.Width, req.Height = &w, &h
	}
	if obj.Anchor != nil {
		ax, ay := coords.ToPercent(obj.Anchor.X, obj.Anchor.Y, e.frame)
		if coords.IsNaN(ax, ay) {
			return models.SaveRequest{}, fmt.Errorf("editor: marker %s anchor: %w", obj.ID, apperr.ErrValidation)
		}
		req.AnchorX, req.AnchorY = &ax, &ay
	}
	if b.positionID != 0 {
		id := b.positionID
		req.PositionID = &id
	}
	return req, nil
}

// save persists the marker's current state. While a call for the same
// marker is in flight the mutation is parked and replayed on completion, so
// a marker never has two concurrent writes.
func (e *engine) save(b *binding) {
	if b.inflight {
		b.pending = true
		return
	}
	if e.removing[b.geoCodeID] > 0 {
		if !b.parked {
			b.parked = true
			e.parked[b.geoCodeID] = append(e.parked[b.geoCodeID], b)
		}
		return
	}
	if b.removed {
		return
	}
	obj := b.latest.Clone()
	req, err := e.request(b, obj)
	if err != nil {
		e.logger.Warn("editor: save skipped", slog.String("object", b.objectID), slog.String("error", err.Error()))
		return
	}

	if b.state == Saved || b.state == Failed {
		e.advance(b, Unsaved)
	}
	e.advance(b, Saving)
	b.inflight = true
	e.busy++
	first := b.positionID == 0

	e.spawn(func(ctx context.Context) func() {
		pos, err := e.client.SavePosition(ctx, req)
		return func() { e.saved(b, obj, first, pos, err) }
	})
}

func (e *engine) saved(b *binding, sent scene.Object, first bool, pos *models.Position, err error) {
	e.busy--
	b.inflight = false

	if b.removed {
		if err == nil && pos != nil {
			b.positionID = pos.ID
		}
		b.pending = false
		switch {
		case b.forget:
		case b.positionID == 0:
		default:
			if first {
				e.emit(Notice{Kind: NoticeOrphanRemoved, ObjectID: b.objectID, GeoCodeID: b.geoCodeID,
					PositionID: b.positionID, Message: "marker removed before its first save completed"})
			}
			e.removeRemote(b.positionID, b)
		}
		// The remove above holds the geo code from here on.
		if e.departed[b.objectID] == b {
			delete(e.departed, b.objectID)
			e.release(b.geoCodeID)
		}
		return
	}

	if err != nil {
		e.saveFailed(b, first, err)
		return
	}

	b.positionID = pos.ID
	b.err = nil
	e.advance(b, Saved)
	confirmed := sent.Clone()
	b.saved = &confirmed

	if b.pending {
		b.pending = false
		e.save(b)
	}
}

func (e *engine) saveFailed(b *binding, first bool, err error) {
	b.err = err
	pending := b.pending
	b.pending = false
	e.advance(b, Failed)

	switch {
	case first:
		// A placement that never reached the store leaves the scene.
		delete(e.bindings, b.objectID)
		b.removed = true
		if _, rerr := e.scene.Remove(b.objectID, scene.OriginReconcile); rerr != nil {
			e.logger.Warn("editor: drop failed placement", slog.String("object", b.objectID), slog.String("error", rerr.Error()))
		}
		e.emit(Notice{Kind: NoticePlacementFailed, ObjectID: b.objectID, GeoCodeID: b.geoCodeID, Message: err.Error()})

	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrValidation):
		e.advance(b, Unsaved)
		if errors.Is(err, apperr.ErrNotFound) {
			// The row is gone; the next mutation places the marker again.
			b.positionID = 0
		}
		if b.saved != nil {
			if _, rerr := e.scene.Replace(*b.saved, scene.OriginReconcile); rerr != nil {
				e.logger.Warn("editor: rollback", slog.String("object", b.objectID), slog.String("error", rerr.Error()))
			}
		}
		e.emit(Notice{Kind: NoticeRolledBack, ObjectID: b.objectID, GeoCodeID: b.geoCodeID, Message: err.Error()})

	default:
		e.emit(Notice{Kind: NoticeSaveFailed, ObjectID: b.objectID, GeoCodeID: b.geoCodeID,
			PositionID: b.positionID, Message: err.Error()})
		if pending {
			e.save(b)
		}
	}
}

// untrack handles a marker removed by the user or by replay.
func (e *engine) untrack(id string) {
	b := e.bindings[id]
	if b == nil {
		return
	}
	delete(e.bindings, id)
	b.removed = true
	if b.inflight {
		// The completion finishes the removal.
		e.depart(b)
		return
	}
	if b.positionID == 0 {
		return
	}
	e.removeRemote(b.positionID, b)
}

func (e *engine) removeRemote(positionID int64, b *binding) {
	e.beginRemove(b.geoCodeID)
	e.spawn(func(ctx context.Context) func() {
		ok, err := e.client.RemovePosition(ctx, positionID)
		return func() {
			e.endRemove(b.geoCodeID)
			if err != nil {
				e.emit(Notice{Kind: NoticeRemoveFailed, ObjectID: b.objectID, GeoCodeID: b.geoCodeID,
					PositionID: positionID, Message: err.Error()})
				return
			}
			if !ok {
				e.logger.Debug("editor: position already removed", slog.Int64("position_id", positionID))
			}
		}
	})
}

func (e *engine) beginRemove(geoCodeID int64) {
	e.busy++
	e.removing[geoCodeID]++
}

func (e *engine) endRemove(geoCodeID int64) {
	e.busy--
	e.release(geoCodeID)
}

// release drops one hold on a geo code and resumes the saves parked behind
// the last one.
func (e *engine) release(geoCodeID int64) {
	e.removing[geoCodeID]--
	if e.removing[geoCodeID] > 0 {
		return
	}
	delete(e.removing, geoCodeID)
	waiting := e.parked[geoCodeID]
	delete(e.parked, geoCodeID)
	for _, b := range waiting {
		b.parked = false
		if !b.removed {
			e.save(b)
		}
	}
}

// removeAll removes every instance of a geo code with one bulk store call.
func (e *engine) removeAll(geoCodeID int64) int {
	markers := e.scene.MarkersFor(geoCodeID)
	for _, m := range markers {
		if b := e.bindings[m.ID]; b != nil {
			delete(e.bindings, m.ID)
			b.removed, b.bulk = true, true
			if b.inflight {
				e.depart(b)
			}
		}
	}
	e.scene.Batch(func() {
		for _, m := range markers {
			_, _ = e.scene.Remove(m.ID, scene.OriginUser)
		}
	})

	e.beginRemove(geoCodeID)
	e.spawn(func(ctx context.Context) func() {
		_, err := e.client.RemoveAllPositions(ctx, geoCodeID, e.plan.ID)
		return func() {
			e.endRemove(geoCodeID)
			if err != nil {
				e.emit(Notice{Kind: NoticeRemoveFailed, GeoCodeID: geoCodeID, Message: err.Error()})
			}
		}
	})
	return len(markers)
}

// load replaces every marker with the store's positions. Pixels are always
// derived from the stored percentages.
func (e *engine) load(ps []models.Position) {
	e.scene.Batch(func() {
		for _, m := range e.scene.Markers() {
			_, _ = e.scene.Remove(m.ID, scene.OriginReconcile)
		}
		for _, p := range ps {
			x, y := coords.ToPixels(p.PosX, p.PosY, e.frame)
			if coords.IsNaN(x, y) {
				e.logger.Warn("editor: skip position without pixels", slog.Int64("position_id", p.ID))
				continue
			}
			obj := scene.Object{
				Kind: scene.KindMarker, X: x, Y: y, W: e.markerW, H: e.markerH,
				GeoCodeID: p.GeoCodeID, Code: p.Code, Label: p.Label, Category: p.Category,
			}
			if p.Width != nil && p.Height != nil {
				obj.W, obj.H = float64(*p.Width), float64(*p.Height)
			}
			if p.HasAnchor() {
				ax, ay := coords.ToPixels(*p.AnchorX, *p.AnchorY, e.frame)
				obj.Anchor = &scene.Point{X: ax, Y: ay}
			}
			added, err := e.scene.Add(obj, scene.OriginReconcile)
			if err != nil {
				e.logger.Warn("editor: load marker", slog.Int64("position_id", p.ID), slog.String("error", err.Error()))
				continue
			}
			e.bindings[added.ID] = &binding{
				objectID: added.ID, geoCodeID: p.GeoCodeID, positionID: p.ID,
				state: Saved, latest: added.Clone(), saved: &added,
			}
		}
	})
}

func (e *engine) emit(n Notice) {
	e.logger.Warn("editor: "+n.Kind,
		slog.String("object", n.ObjectID),
		slog.Int64("geo_code_id", n.GeoCodeID),
		slog.String("message", n.Message))
	if e.notify != nil {
		e.notify(n)
	}
}
