package models

import "time"

// GeoCode is a logical marker definition that may or may not be placed on any plan.
type GeoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Label     string    `json:"label"`
	Category  string    `json:"category,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
