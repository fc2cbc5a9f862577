package replay

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/models"
)

// Remote is the server surface a replay needs.
type Remote interface {
	editor.PositionClient
	GetPlan(ctx context.Context, planID int64) (*models.Plan, error)
	ListGeoCodes(ctx context.Context, category string) ([]models.GeoCode, error)
}

// Result is the state of the plan after a replay.
type Result struct {
	Plan      models.Plan       `json:"plan"`
	Positions []models.Position `json:"positions"`
	Notices   []editor.Notice   `json:"notices"`
}

// Run applies script to the plan through a headless session whose store is
// remote. It waits for every save before reading back the positions.
func Run(ctx context.Context, remote Remote, script *Script, logger *slog.Logger, opts ...editor.Option) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		plan  *models.Plan
		codes map[string]models.GeoCode
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = remote.GetPlan(gCtx, script.PlanID)
		if err != nil {
			return fmt.Errorf("replay: get plan %d: %w", script.PlanID, err)
		}
		return nil
	})
	g.Go(func() error {
		gcs, err := remote.ListGeoCodes(gCtx, "")
		if err != nil {
			return fmt.Errorf("replay: list geo codes: %w", err)
		}
		codes = make(map[string]models.GeoCode, len(gcs))
		for _, gc := range gcs {
			codes[gc.Code] = gc
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opts = append([]editor.Option{editor.WithLogger(logger)}, opts...)
	s, err := editor.NewSession(*plan, remote, opts...)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Load(ctx); err != nil {
		return nil, err
	}

	refs := make(map[string]string)
	for i, st := range script.Steps {
		if err := apply(ctx, s, st, codes, refs); err != nil {
			return nil, fmt.Errorf("replay: step %d (%s): %w", i+1, st.Op, err)
		}
		logger.Debug("replay: step applied", slog.Int("step", i+1), slog.String("op", st.Op))
	}
	if err := s.Settle(ctx); err != nil {
		return nil, err
	}

	view, err := s.View(ctx)
	if err != nil {
		return nil, err
	}
	ps, err := remote.ListPositions(ctx, plan.ID, true)
	if err != nil {
		return nil, fmt.Errorf("replay: list positions: %w", err)
	}
	return &Result{Plan: *plan, Positions: ps, Notices: view.Notices}, nil
}

func apply(ctx context.Context, s *editor.Session, st Step, codes map[string]models.GeoCode, refs map[string]string) error {
	id := refs[st.Ref]
	switch st.Op {
	case OpPlace:
		gc, ok := codes[st.Code]
		if !ok {
			return fmt.Errorf("unknown geo code %q", st.Code)
		}
		placed, err := s.PlaceMarker(ctx, gc, st.X, st.Y)
		if err != nil {
			return err
		}
		if st.As != "" {
			refs[st.As] = placed
		}
		return nil
	case OpMove:
		return s.Move(ctx, id, st.X, st.Y)
	case OpResize:
		return s.Resize(ctx, id, st.W, st.H)
	case OpAnchor:
		if st.Clear {
			return s.ClearAnchor(ctx, id)
		}
		return s.SetAnchor(ctx, id, st.X, st.Y)
	case OpRemove:
		return s.Remove(ctx, id)
	case OpRemoveAll:
		gc, ok := codes[st.Code]
		if !ok {
			return fmt.Errorf("unknown geo code %q", st.Code)
		}
		_, err := s.RemoveAllInstances(ctx, gc.ID)
		return err
	case OpUndo:
		_, err := s.Undo(ctx)
		return err
	case OpRedo:
		_, err := s.Redo(ctx)
		return err
	}
	return fmt.Errorf("unknown op %q", st.Op)
}
