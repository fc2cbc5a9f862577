package api

import (
	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/models"
)

// CreatePlanRequest is the request body for registering a drawn plan.
type CreatePlanRequest struct {
	Name    string  `json:"name" example:"Ground floor" validate:"required"`
	Width   float64 `json:"width" example:"800" validate:"required"`
	Height  float64 `json:"height" example:"600" validate:"required"`
	OriginX float64 `json:"origin_x" example:"0"`
	OriginY float64 `json:"origin_y" example:"0"`
}

// CreateGeoCodeRequest is the request body for creating a geo code.
type CreateGeoCodeRequest struct {
	Code     string `json:"code" example:"A1" validate:"required"`
	Label    string `json:"label" example:"Aisle 1"`
	Category string `json:"category,omitempty" example:"aisles"`
	Metadata string `json:"metadata,omitempty"`
}

// PlanListResponse wraps plan listings.
type PlanListResponse struct {
	Plans []models.Plan `json:"plans" validate:"required"`
}

// PositionListResponse wraps position listings.
type PositionListResponse struct {
	Positions []models.Position `json:"positions" validate:"required"`
}

// GeoCodeListResponse wraps geo code listings.
type GeoCodeListResponse struct {
	GeoCodes []models.GeoCode `json:"geo_codes" validate:"required"`
}

// HistoryResponse wraps audit rows.
type HistoryResponse struct {
	History []models.HistoryEntry `json:"history" validate:"required"`
}

// SuccessResponse reports whether a removal deleted anything.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// OpenSessionRequest opens an editor session on a plan.
type OpenSessionRequest struct {
	PlanID int64 `json:"plan_id" example:"7" validate:"required"`
}

// ToolRequest switches the session toolbar.
type ToolRequest struct {
	Tool      string `json:"tool" example:"marker" validate:"required"`
	GeoCodeID int64  `json:"geo_code_id,omitempty" example:"1"`
	Sticky    bool   `json:"sticky,omitempty"`
}

// PointRequest is a pixel location on the surface.
type PointRequest struct {
	X float64 `json:"x" example:"400"`
	Y float64 `json:"y" example:"300"`
}

// ObjectPointRequest targets an object with a pixel location.
type ObjectPointRequest struct {
	ObjectID string  `json:"object_id" validate:"required"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// DrawRequest completes a shape drag.
type DrawRequest struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	Text string  `json:"text,omitempty"`
}

// DragRequest replays a drag gesture: the object follows each point in
// order and the last one is committed.
type DragRequest struct {
	ObjectID string         `json:"object_id" validate:"required"`
	Path     []PointRequest `json:"path" validate:"required"`
	Cancel   bool           `json:"cancel,omitempty"`
}

// DragResponse reports the last snapped preview and whether the drag moved the object.
type DragResponse struct {
	Last  editor.DragUpdate `json:"last"`
	Moved bool              `json:"moved"`
}

// ResizeRequest changes a marker or shape size.
type ResizeRequest struct {
	ObjectID string  `json:"object_id" validate:"required"`
	W        float64 `json:"w" example:"32"`
	H        float64 `json:"h" example:"32"`
}

// AnchorRequest sets or clears (clear=true) a marker anchor.
type AnchorRequest struct {
	ObjectID string  `json:"object_id" validate:"required"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Clear    bool    `json:"clear,omitempty"`
}

// ObjectRequest targets one object.
type ObjectRequest struct {
	ObjectID string `json:"object_id" validate:"required"`
}

// RemoveAllRequest removes every marker of a geo code.
type RemoveAllRequest struct {
	GeoCodeID int64 `json:"geo_code_id" validate:"required"`
}

// RemoveAllResponse reports how many markers left the scene.
type RemoveAllResponse struct {
	Removed int `json:"removed"`
}

// ZoomRequest sets the view zoom factor.
type ZoomRequest struct {
	Zoom float64 `json:"zoom" example:"1.5" validate:"required"`
}

// SnapRequest sets the snapping mode.
type SnapRequest struct {
	Grid      bool    `json:"grid"`
	GridSize  float64 `json:"grid_size"`
	Objects   bool    `json:"objects"`
	Threshold float64 `json:"threshold"`
}

// ChangedResponse reports whether undo or redo changed the scene.
type ChangedResponse struct {
	Changed bool `json:"changed"`
}
