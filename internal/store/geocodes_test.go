package store

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

func TestCreateGeoCodeDuplicate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	if _, err := db.CreateGeoCode(ctx, models.GeoCode{Code: "R-01"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.CreateGeoCode(ctx, models.GeoCode{Code: " R-01 "}); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
	if _, err := db.CreateGeoCode(ctx, models.GeoCode{Code: "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank err = %v, want ErrValidation", err)
	}
}

func TestListUnplacedAndSearch(t *testing.T) {
	db := testDB(t)
	plan, a1 := seed(t, db)
	ctx := context.Background()
	if _, err := db.CreateGeoCode(ctx, models.GeoCode{Code: "B7", Label: "Cold storage", Category: "storage"}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertPosition(ctx, models.SaveRequest{GeoCodeID: a1.ID, PlanID: plan.ID, PosX: 1, PosY: 1}); err != nil {
		t.Fatal(err)
	}

	unplaced, err := db.ListUnplaced(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unplaced) != 1 || unplaced[0].Code != "B7" {
		t.Errorf("unplaced = %+v, want [B7]", unplaced)
	}

	byCat, err := db.ListGeoCodes(ctx, "storage")
	if err != nil {
		t.Fatal(err)
	}
	if len(byCat) != 1 {
		t.Errorf("category filter = %+v", byCat)
	}

	hits, err := db.SearchGeoCodes(ctx, "Cold", 10)
	if err != nil {
		t.Fatalf("SearchGeoCodes: %v", err)
	}
	if len(hits) != 1 || hits[0].Code != "B7" {
		t.Errorf("search = %+v", hits)
	}
}
