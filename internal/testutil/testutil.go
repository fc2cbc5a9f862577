// Package testutil provides shared test helpers for setting up plan
// libraries and databases.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/storage"
	"github.com/starford/geoplan/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "geoplan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLibrary creates a temporary plan library directory with a storage.Provider.
func TestLibrary(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	lib, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, lib
}

// Seed registers an 800x600 drawn plan and the geo codes A1 and B2.
func Seed(t *testing.T, db *store.DB) (*models.Plan, *models.GeoCode, *models.GeoCode) {
	t.Helper()
	ctx := context.Background()
	plan, err := db.CreatePlan(ctx, models.Plan{Name: "Ground floor", Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	a1, err := db.CreateGeoCode(ctx, models.GeoCode{Code: "A1", Label: "Aisle 1", Category: "aisles"})
	if err != nil {
		t.Fatalf("CreateGeoCode A1: %v", err)
	}
	b2, err := db.CreateGeoCode(ctx, models.GeoCode{Code: "B2", Label: "Bay 2", Category: "bays"})
	if err != nil {
		t.Fatalf("CreateGeoCode B2: %v", err)
	}
	return plan, a1, b2
}
