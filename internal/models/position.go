package models

import "time"

// History actions.
const (
	ActionPlaced  = "placed"
	ActionMoved   = "moved"
	ActionRemoved = "removed"
)

// Position is the placement of one GeoCode on one Plan. PosX/PosY and the
// anchor are percentages (0-100) of the plan content box; Width/Height are
// pixels and independent of zoom.
type Position struct {
	ID        int64     `json:"position_id"`
	GeoCodeID int64     `json:"geo_code_id"`
	PlanID    int64     `json:"plan_id"`
	PosX      float64   `json:"pos_x"`
	PosY      float64   `json:"pos_y"`
	Width     *int      `json:"width,omitempty"`
	Height    *int      `json:"height,omitempty"`
	AnchorX   *float64  `json:"anchor_x,omitempty"`
	AnchorY   *float64  `json:"anchor_y,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Populated only when listing with details.
	Code     string `json:"code,omitempty"`
	Label    string `json:"label,omitempty"`
	Category string `json:"category,omitempty"`
}

// HasAnchor reports whether the position points at a secondary location.
func (p *Position) HasAnchor() bool {
	return p.AnchorX != nil && p.AnchorY != nil
}

// SaveRequest is the payload of an upsert. A nil PositionID asks for an insert.
type SaveRequest struct {
	GeoCodeID  int64    `json:"geo_code_id"`
	PlanID     int64    `json:"plan_id"`
	PosX       float64  `json:"pos_x"`
	PosY       float64  `json:"pos_y"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	AnchorX    *float64 `json:"anchor_x,omitempty"`
	AnchorY    *float64 `json:"anchor_y,omitempty"`
	PositionID *int64   `json:"position_id,omitempty"`
}

// HistoryEntry is one append-only audit row.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	GeoCodeID int64     `json:"geo_code_id"`
	PlanID    int64     `json:"plan_id"`
	PosX      float64   `json:"pos_x"`
	PosY      float64   `json:"pos_y"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
