package store

import (
	"context"

	"github.com/starford/geoplan/internal/models"
)

// PositionStore is the durable side of the placement protocol. Consumers
// should depend on this interface rather than the concrete *DB type.
type PositionStore interface {
	UpsertPosition(ctx context.Context, req models.SaveRequest) (*models.Position, error)
	RemovePosition(ctx context.Context, positionID int64) (bool, error)
	RemoveAllPositionsForCode(ctx context.Context, geoCodeID, planID int64) (bool, error)
	ListPositionsForPlan(ctx context.Context, planID int64, details bool) ([]models.Position, error)
	GetPosition(ctx context.Context, positionID int64) (*models.Position, error)
	PositionHistory(ctx context.Context, planID, geoCodeID int64, limit int) ([]models.HistoryEntry, error)
}

// Catalog is the read/write surface for plans and geo codes.
type Catalog interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	GetGeoCode(ctx context.Context, id int64) (*models.GeoCode, error)
	ListGeoCodes(ctx context.Context, category string) ([]models.GeoCode, error)
	SearchGeoCodes(ctx context.Context, query string, limit int) ([]models.GeoCode, error)
	ListUnplaced(ctx context.Context, planID int64) ([]models.GeoCode, error)
	CreateGeoCode(ctx context.Context, gc models.GeoCode) (*models.GeoCode, error)
	DeleteGeoCode(ctx context.Context, id int64) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ PositionStore = (*DB)(nil)
	_ Catalog       = (*DB)(nil)
)
