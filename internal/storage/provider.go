// Package storage defines the plan-library file-system abstraction.
package storage

import "github.com/starford/geoplan/internal/models"

// Provider is the interface for plan file operations.
type Provider interface {
	// List returns metadata for every plan file under dir (relative to the library root).
	List(dir string) ([]models.PlanMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the library root).
	Read(path string) ([]byte, error)
}
