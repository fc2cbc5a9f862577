package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/geoplan/internal/apperr"
	"github.com/starford/geoplan/internal/models"
)

func TestSavePositionSendsPayload(t *testing.T) {
	var got models.SaveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/positions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Position{ID: 12, GeoCodeID: got.GeoCodeID, PlanID: got.PlanID, PosX: got.PosX, PosY: got.PosY})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("secret"))
	pos, err := c.SavePosition(context.Background(), models.SaveRequest{GeoCodeID: 1, PlanID: 7, PosX: 50, PosY: 50})
	if err != nil {
		t.Fatal(err)
	}
	if pos.ID != 12 || pos.PosX != 50 {
		t.Errorf("pos = %+v", pos)
	}
	if got.GeoCodeID != 1 || got.PlanID != 7 || got.PositionID != nil {
		t.Errorf("sent = %+v", got)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, apperr.ErrValidation},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusConflict, apperr.ErrConflict},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusInternalServerError, apperr.ErrTransient},
		{http.StatusBadGateway, apperr.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := New(srv.URL).RemovePosition(context.Background(), 3)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).ListPositions(context.Background(), 7, true)
	if !errors.Is(err, apperr.ErrTransient) {
		t.Errorf("err = %v, want ErrTransient", err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-block }))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.SavePosition(context.Background(), models.SaveRequest{GeoCodeID: 1, PlanID: 7})
	if !errors.Is(err, apperr.ErrTransient) {
		t.Errorf("err = %v, want ErrTransient", err)
	}
}

func TestRemoveAllAndList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/plans/7/geocodes/1/positions", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("GET /api/plans/7/positions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("details") != "true" {
			t.Errorf("details = %q", r.URL.Query().Get("details"))
		}
		_, _ = w.Write([]byte(`{"positions":[{"position_id":4,"geo_code_id":1,"plan_id":7,"pos_x":25,"pos_y":25,"code":"A1"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	ok, err := c.RemoveAllPositions(ctx, 1, 7)
	if err != nil || !ok {
		t.Fatalf("remove all = %v, %v", ok, err)
	}
	ps, err := c.ListPositions(ctx, 7, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].ID != 4 || ps[0].Code != "A1" {
		t.Errorf("positions = %+v", ps)
	}
}
