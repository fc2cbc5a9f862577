// Package models defines the domain types shared by the store, the API and the editor.
package models

import "time"

// Plan kinds.
const (
	PlanRaster = "raster"
	PlanVector = "vector"
	PlanDrawn  = "drawn"
)

// Plan is a floor-plan background. Width, Height and the origin offset are
// required for every coordinate conversion.
type Plan struct {
	ID        int64     `json:"id"`
	File      string    `json:"file,omitempty"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	OriginX   float64   `json:"origin_x"`
	OriginY   float64   `json:"origin_y"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanMetadata describes a plan file on disk.
type PlanMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
