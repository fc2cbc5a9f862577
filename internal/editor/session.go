// Package editor hosts interactive editing sessions over one plan. A session
// owns the scene, its undo history, the toolbar state and the marker engine
// that keeps markers in sync with the position store.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/coords"
	"github.com/starford/geoplan/internal/history"
	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/scene"
	"github.com/starford/geoplan/internal/snap"
	"github.com/starford/geoplan/internal/toolbar"
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("editor: session closed")

const maxNotices = 50

// Session is one open plan.
//
// Concurrency model: a single internal event loop (goroutine) owns the scene,
// history, toolbar and marker bindings. Public methods post closures to the
// loop and wait for them; store calls run on their own goroutines and post
// their outcome back to the loop.
type Session struct {
	id     string
	plan   models.Plan
	frame  coords.Frame
	client PositionClient
	logger *slog.Logger

	saveTimeout  time.Duration
	historyLimit int
	multi        bool
	markerW      float64
	markerH      float64
	onNotice     func(Notice)

	// Loop-owned state.
	scene   *scene.Scene
	history *history.Manager
	tools   *toolbar.Machine
	engine  *engine
	snapCfg snap.Config
	zoom    float64
	drag    *dragState
	notices []Notice
	waiters []chan struct{}

	ops     chan func()
	baseCtx context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// historySource feeds history the committed scene; an active drag counts
// as still standing where it started.
type historySource struct{ s *Session }

func (h historySource) Snapshot() ([]byte, error) {
	if h.s.drag != nil {
		return h.s.scene.SnapshotWith(h.s.drag.before)
	}
	return h.s.scene.Snapshot()
}

func (h historySource) Restore(data []byte) error { return h.s.scene.Restore(data, scene.OriginReplay) }

// NewSession opens an editing session on plan. The plan must have a usable
// size; every conversion depends on it.
func NewSession(plan models.Plan, client PositionClient, opts ...Option) (*Session, error) {
	frame := coords.FromPlan(plan)
	if !frame.Valid() {
		return nil, fmt.Errorf("editor: plan %d has no usable size: %w", plan.ID, apperr.ErrValidation)
	}

	s := &Session{
		id:          uuid.NewString(),
		plan:        plan,
		frame:       frame,
		client:      client,
		logger:      slog.Default(),
		saveTimeout: 10 * time.Second,
		markerW:     24,
		markerH:     24,
		zoom:        1,
		scene:       scene.New(),
		ops:         make(chan func()),
		stopCh:      make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("session", s.id), slog.Int64("plan_id", plan.ID))

	h, err := history.New(historySource{s}, s.historyLimit)
	if err != nil {
		return nil, err
	}
	s.history = h
	s.tools = toolbar.New(s.scene)
	s.engine = &engine{
		plan:     plan,
		frame:    frame,
		scene:    s.scene,
		client:   client,
		spawn:    s.spawn,
		notify:   s.notice,
		logger:   s.logger,
		markerW:  s.markerW,
		markerH:  s.markerH,
		bindings: make(map[string]*binding),
		removing: make(map[int64]int),
		parked:   make(map[int64][]*binding),
		departed: make(map[string]*binding),
	}

	s.scene.Subscribe(s.engine.handle)
	s.scene.Subscribe(s.record)

	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	go s.run()
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Plan returns the plan being edited.
func (s *Session) Plan() models.Plan { return s.plan }

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stopCh:
			return
		case fn := <-s.ops:
			fn()
			if len(s.waiters) > 0 && s.engine.idle() {
				for _, w := range s.waiters {
					close(w)
				}
				s.waiters = nil
			}
		}
	}
}

// call runs fn on the loop and returns its error.
func (s *Session) call(ctx context.Context, fn func() error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan error, 1)
	select {
	case s.ops <- func() { done <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-s.stopped:
		return ErrClosed
	}
}

// post queues fn on the loop without waiting. It is used by store
// completions; after Close the outcome is dropped.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.stopped:
	}
}

func (s *Session) spawn(work func(ctx context.Context) func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.baseCtx, s.saveTimeout)
		apply := work(ctx)
		cancel()
		s.post(apply)
	}()
}

// record keeps history in step with committed mutations. Reconciliation
// with the store is not an undoable step.
func (s *Session) record(ev scene.Event) {
	if ev.Origin == scene.OriginReconcile && s.drag != nil && s.drag.before.ID == ev.Object.ID {
		// A rollback moved the dragged object; the drag now starts from the
		// restored state.
		if ev.Type == scene.MarkerRemoved {
			s.drag = nil
			s.scene.ClearGuides()
		} else {
			s.drag.before = ev.Object.Clone()
		}
	}

	var err error
	if ev.Origin == scene.OriginReconcile {
		err = s.history.Rebase()
	} else {
		_, err = s.history.RecordIfChanged()
	}
	if err != nil {
		s.logger.Warn("editor: history", slog.String("error", err.Error()))
	}
}

func (s *Session) notice(n Notice) {
	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	if s.onNotice != nil {
		s.onNotice(n)
	}
}

// Close stops the loop and waits for outstanding store calls to return.
// Their outcomes are discarded.
func (s *Session) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
		close(s.stopCh)
	}
	<-s.stopped
	s.wg.Wait()
}

// Settle blocks until no store call is in flight or queued.
func (s *Session) Settle(ctx context.Context) error {
	var wait chan struct{}
	err := s.call(ctx, func() error {
		if !s.engine.idle() {
			wait = make(chan struct{})
			s.waiters = append(s.waiters, wait)
		}
		return nil
	})
	if err != nil || wait == nil {
		return err
	}
	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrClosed
	}
}

// Load replaces the markers with the plan's stored positions and starts a
// fresh history.
func (s *Session) Load(ctx context.Context) error {
	ps, err := s.client.ListPositions(ctx, s.plan.ID, true)
	if err != nil {
		return fmt.Errorf("editor: load plan %d: %w", s.plan.ID, err)
	}
	return s.call(ctx, func() error {
		s.cancelDrag()
		s.engine.load(ps)
		return s.history.Reset()
	})
}

// PickTool switches the toolbar.
func (s *Session) PickTool(ctx context.Context, p toolbar.Pick) error {
	return s.call(ctx, func() error {
		s.cancelDrag()
		return s.tools.Pick(p)
	})
}

// Escape cancels a placing or drawing mode, or an active drag.
func (s *Session) Escape(ctx context.Context) error {
	return s.call(ctx, func() error {
		s.cancelDrag()
		s.tools.Escape()
		return nil
	})
}

// Select makes id the current selection.
func (s *Session) Select(ctx context.Context, id string) error {
	return s.call(ctx, func() error { return s.scene.Select(id) })
}

// ClickResult says what a surface click did.
type ClickResult struct {
	Action   string `json:"action"`
	ObjectID string `json:"object_id,omitempty"`
}

// Click actions.
const (
	ClickSelected   = "selected"
	ClickDeselected = "deselected"
	ClickPlaced     = "placed"
	ClickAnchored   = "anchored"
	ClickDrawn      = "drawn"
)

const defaultShapeSize = 40

// Click routes a surface click according to the toolbar state.
func (s *Session) Click(ctx context.Context, x, y float64) (ClickResult, error) {
	var res ClickResult
	err := s.call(ctx, func() error {
		switch s.tools.State() {
		case toolbar.PlacingMarker:
			id, err := s.placeMarker(s.tools.GeoCode(), x, y)
			if err != nil {
				return err
			}
			s.tools.Complete()
			res = ClickResult{Action: ClickPlaced, ObjectID: id}

		case toolbar.PlacingArrow:
			target := s.tools.ArrowTarget()
			if _, err := s.scene.SetAnchor(target, &scene.Point{X: x, Y: y}, scene.OriginUser); err != nil {
				return err
			}
			s.tools.Complete()
			res = ClickResult{Action: ClickAnchored, ObjectID: target}

		case toolbar.DrawingShape:
			half := defaultShapeSize / 2.0
			id, err := s.drawShape(x-half, y-half, x+half, y+half, "")
			if err != nil {
				return err
			}
			s.tools.Complete()
			res = ClickResult{Action: ClickDrawn, ObjectID: id}

		default:
			if o, ok := s.scene.HitTest(x, y); ok {
				_ = s.scene.Select(o.ID)
				res = ClickResult{Action: ClickSelected, ObjectID: o.ID}
				return nil
			}
			s.scene.ClearSelection()
			res = ClickResult{Action: ClickDeselected}
		}
		return nil
	})
	return res, err
}

// Draw completes a shape drag from (x1,y1) to (x2,y2) with the active shape tool.
func (s *Session) Draw(ctx context.Context, x1, y1, x2, y2 float64, text string) (string, error) {
	var id string
	err := s.call(ctx, func() error {
		if s.tools.State() != toolbar.DrawingShape {
			return fmt.Errorf("editor: draw in state %s: %w", s.tools.State(), apperr.ErrConflict)
		}
		var err error
		if id, err = s.drawShape(x1, y1, x2, y2, text); err != nil {
			return err
		}
		s.tools.Complete()
		return nil
	})
	return id, err
}

func (s *Session) drawShape(x1, y1, x2, y2 float64, text string) (string, error) {
	kind := scene.Kind(s.tools.Tool())
	if !kind.Shape() {
		return "", fmt.Errorf("editor: tool %s draws no shape: %w", s.tools.Tool(), apperr.ErrValidation)
	}
	o, err := s.scene.Add(scene.Object{
		Kind: kind,
		X:    (x1 + x2) / 2, Y: (y1 + y2) / 2,
		W: abs(x2 - x1), H: abs(y2 - y1),
		Text: text,
	}, scene.OriginUser)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// PlaceMarker drops a new marker for gc at the pixel point and starts its
// first save. Validation failures are returned before anything is sent.
func (s *Session) PlaceMarker(ctx context.Context, gc models.GeoCode, x, y float64) (string, error) {
	var id string
	err := s.call(ctx, func() error {
		var err error
		id, err = s.placeMarker(gc, x, y)
		return err
	})
	return id, err
}

func (s *Session) placeMarker(gc models.GeoCode, x, y float64) (string, error) {
	if gc.ID == 0 {
		return "", fmt.Errorf("editor: place marker without geo code: %w", apperr.ErrValidation)
	}
	if px, py := coords.ToPercent(x, y, s.frame); coords.IsNaN(px, py) {
		return "", fmt.Errorf("editor: place %s at (%v,%v): %w", gc.Code, x, y, apperr.ErrValidation)
	}
	if !s.multi && len(s.scene.MarkersFor(gc.ID)) > 0 {
		return "", fmt.Errorf("editor: %s is already placed on plan %d: %w", gc.Code, s.plan.ID, apperr.ErrAlreadyExists)
	}
	o, err := s.scene.Add(scene.Object{
		Kind: scene.KindMarker, X: x, Y: y, W: s.markerW, H: s.markerH,
		GeoCodeID: gc.ID, Code: gc.Code, Label: gc.Label, Category: gc.Category,
	}, scene.OriginUser)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

// Move commits a new centre for an object without snapping.
func (s *Session) Move(ctx context.Context, id string, x, y float64) error {
	return s.call(ctx, func() error {
		s.cancelDragOf(id)
		_, err := s.scene.Move(id, x, y, scene.OriginUser)
		return err
	})
}

// Resize sets an object's rendered size.
func (s *Session) Resize(ctx context.Context, id string, w, h float64) error {
	return s.call(ctx, func() error {
		s.cancelDragOf(id)
		_, err := s.scene.Resize(id, w, h, scene.OriginUser)
		return err
	})
}

// SetAnchor points a marker at a pixel location. The marker's own position
// is saved unchanged alongside the new anchor.
func (s *Session) SetAnchor(ctx context.Context, id string, x, y float64) error {
	return s.call(ctx, func() error {
		s.cancelDragOf(id)
		_, err := s.scene.SetAnchor(id, &scene.Point{X: x, Y: y}, scene.OriginUser)
		return err
	})
}

// ClearAnchor removes a marker's arrow.
func (s *Session) ClearAnchor(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		s.cancelDragOf(id)
		_, err := s.scene.SetAnchor(id, nil, scene.OriginUser)
		return err
	})
}

// Remove takes one object off the surface. For markers the store row is
// deleted once any save for it has settled.
func (s *Session) Remove(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		s.cancelDragOf(id)
		_, err := s.scene.Remove(id, scene.OriginUser)
		return err
	})
}

// RemoveAllInstances removes every marker of a geo code and returns how many
// were on the surface.
func (s *Session) RemoveAllInstances(ctx context.Context, geoCodeID int64) (int, error) {
	var n int
	err := s.call(ctx, func() error {
		if geoCodeID == 0 {
			return fmt.Errorf("editor: remove all without geo code: %w", apperr.ErrValidation)
		}
		s.cancelDrag()
		n = s.engine.removeAll(geoCodeID)
		return nil
	})
	return n, err
}

// Undo restores the previous snapshot. Restored markers are saved like any
// other mutation.
func (s *Session) Undo(ctx context.Context) (bool, error) {
	var ok bool
	err := s.call(ctx, func() error {
		s.cancelDrag()
		var err error
		ok, err = s.history.Undo()
		return err
	})
	return ok, err
}

// Redo re-applies the last undone snapshot.
func (s *Session) Redo(ctx context.Context) (bool, error) {
	var ok bool
	err := s.call(ctx, func() error {
		s.cancelDrag()
		var err error
		ok, err = s.history.Redo()
		return err
	})
	return ok, err
}

// SetZoom records the surface zoom. It only affects the object-snap threshold.
func (s *Session) SetZoom(ctx context.Context, zoom float64) error {
	return s.call(ctx, func() error {
		if zoom <= 0 {
			return fmt.Errorf("editor: zoom %v: %w", zoom, apperr.ErrValidation)
		}
		s.zoom = zoom
		return nil
	})
}

// SetSnap changes the snapping mode.
func (s *Session) SetSnap(ctx context.Context, cfg snap.Config) error {
	return s.call(ctx, func() error {
		if cfg.Grid && cfg.GridSize <= 0 {
			return fmt.Errorf("editor: grid size %v: %w", cfg.GridSize, apperr.ErrValidation)
		}
		s.snapCfg = cfg
		return nil
	})
}
