// Package placement is the application service over the position store. The
// HTTP API, the MCP server and in-process editor sessions all go through it,
// so every write is announced to live subscribers the same way.
package placement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/sse"
	"github.com/starford/geoplan/internal/store"
)

// Publisher receives change notifications. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishPlanEvent(kind string, planID int64, file string)
}

// Service coordinates the position store, the catalog and the publisher.
type Service struct {
	positions store.PositionStore
	catalog   store.Catalog
	pub       Publisher
	logger    *slog.Logger
}

// NewService creates a new placement service. pub may be nil.
func NewService(positions store.PositionStore, catalog store.Catalog, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{positions: positions, catalog: catalog, pub: pub, logger: logger}
}

func (s *Service) publish(ev sse.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

// SavePosition upserts a position and announces the stored row.
func (s *Service) SavePosition(ctx context.Context, req models.SaveRequest) (*models.Position, error) {
	pos, err := s.positions.UpsertPosition(ctx, req)
	if err != nil {
		return nil, err
	}
	s.publish(sse.Event{Type: sse.PositionSaved, PlanID: pos.PlanID, Data: pos})
	return pos, nil
}

// RemovePosition deletes one position. Removing a missing position reports
// false without error.
func (s *Service) RemovePosition(ctx context.Context, positionID int64) (bool, error) {
	existing, err := s.positions.GetPosition(ctx, positionID)
	if err != nil && !isNotFound(err) {
		return false, err
	}
	ok, err := s.positions.RemovePosition(ctx, positionID)
	if err != nil {
		return false, err
	}
	if ok {
		var planID int64
		if existing != nil {
			planID = existing.PlanID
		}
		s.publish(sse.Event{Type: sse.PositionRemoved, PlanID: planID, Data: map[string]int64{
			"position_id": positionID,
			"plan_id":     planID,
		}})
	}
	return ok, nil
}

// RemoveAllPositions removes every instance of a geo code from a plan.
func (s *Service) RemoveAllPositions(ctx context.Context, geoCodeID, planID int64) (bool, error) {
	ok, err := s.positions.RemoveAllPositionsForCode(ctx, geoCodeID, planID)
	if err != nil {
		return false, err
	}
	if ok {
		s.publish(sse.Event{Type: sse.PositionsCleared, PlanID: planID, Data: map[string]int64{
			"geo_code_id": geoCodeID,
			"plan_id":     planID,
		}})
	}
	return ok, nil
}

// ListPositions returns the positions of an existing plan.
func (s *Service) ListPositions(ctx context.Context, planID int64, withDetails bool) ([]models.Position, error) {
	if _, err := s.catalog.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	ps, err := s.positions.ListPositionsForPlan(ctx, planID, withDetails)
	if err != nil {
		return nil, err
	}
	return nonNil(ps), nil
}

// GetPosition returns one position.
func (s *Service) GetPosition(ctx context.Context, positionID int64) (*models.Position, error) {
	return s.positions.GetPosition(ctx, positionID)
}

// History returns audit rows for a plan, newest first. geoCodeID zero means all codes.
func (s *Service) History(ctx context.Context, planID, geoCodeID int64, limit int) ([]models.HistoryEntry, error) {
	if _, err := s.catalog.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	h, err := s.positions.PositionHistory(ctx, planID, geoCodeID, limit)
	if err != nil {
		return nil, err
	}
	return nonNil(h), nil
}

// ListPlans returns every registered plan.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	ps, err := s.catalog.ListPlans(ctx)
	return nonNil(ps), err
}

// GetPlan returns one plan.
func (s *Service) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	return s.catalog.GetPlan(ctx, id)
}

// CreatePlan registers a freshly drawn plan.
func (s *Service) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	p.File = ""
	p.Kind = models.PlanDrawn
	created, err := s.catalog.CreatePlan(ctx, p)
	if err != nil {
		return nil, err
	}
	if s.pub != nil {
		s.pub.PublishPlanEvent(store.PlanCreated, created.ID, "")
	}
	return created, nil
}

// ListGeoCodes returns geo codes, optionally filtered by category.
func (s *Service) ListGeoCodes(ctx context.Context, category string) ([]models.GeoCode, error) {
	gcs, err := s.catalog.ListGeoCodes(ctx, category)
	return nonNil(gcs), err
}

// SearchGeoCodes matches codes and labels.
func (s *Service) SearchGeoCodes(ctx context.Context, query string, limit int) ([]models.GeoCode, error) {
	gcs, err := s.catalog.SearchGeoCodes(ctx, query, limit)
	return nonNil(gcs), err
}

// ListUnplaced returns geo codes without a position on the plan.
func (s *Service) ListUnplaced(ctx context.Context, planID int64) ([]models.GeoCode, error) {
	if _, err := s.catalog.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	gcs, err := s.catalog.ListUnplaced(ctx, planID)
	return nonNil(gcs), err
}

// GetGeoCode returns one geo code.
func (s *Service) GetGeoCode(ctx context.Context, id int64) (*models.GeoCode, error) {
	return s.catalog.GetGeoCode(ctx, id)
}

// CreateGeoCode adds a geo code.
func (s *Service) CreateGeoCode(ctx context.Context, gc models.GeoCode) (*models.GeoCode, error) {
	return s.catalog.CreateGeoCode(ctx, gc)
}

// DeleteGeoCode removes a geo code and its positions; its history stays.
func (s *Service) DeleteGeoCode(ctx context.Context, id int64) error {
	if err := s.catalog.DeleteGeoCode(ctx, id); err != nil {
		return err
	}
	s.logger.Info("placement: geo code deleted", slog.Int64("geo_code_id", id))
	return nil
}

func isNotFound(err error) bool { return errors.Is(err, apperr.ErrNotFound) }

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
