package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/placement"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *placement.Service, sessions *editor.Registry, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	sh := NewSessionHandler(svc, sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Plans.
	r.Get("/plans", h.ListPlans)
	r.Post("/plans", h.CreatePlan)
	r.Get("/plans/{planID}", h.GetPlan)
	r.Get("/plans/{planID}/positions", h.ListPositions)
	r.Get("/plans/{planID}/history", h.History)
	r.Get("/plans/{planID}/unplaced", h.ListUnplaced)
	r.Delete("/plans/{planID}/geocodes/{geoCodeID}/positions", h.RemoveAllPositions)

	// Positions.
	r.Post("/positions", h.SavePosition)
	r.Get("/positions/{positionID}", h.GetPosition)
	r.Delete("/positions/{positionID}", h.RemovePosition)

	// Geo codes.
	r.Get("/geocodes", h.ListGeoCodes)
	r.Post("/geocodes", h.CreateGeoCode)
	r.Get("/geocodes/{geoCodeID}", h.GetGeoCode)
	r.Delete("/geocodes/{geoCodeID}", h.DeleteGeoCode)

	// Editor sessions.
	r.Post("/sessions", sh.Open)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", sh.Get)
		r.Delete("/", sh.Close)
		r.Post("/tool", sh.Tool)
		r.Post("/click", sh.Click)
		r.Post("/draw", sh.Draw)
		r.Post("/drag", sh.Drag)
		r.Post("/move", sh.Move)
		r.Post("/resize", sh.Resize)
		r.Post("/anchor", sh.Anchor)
		r.Post("/remove", sh.Remove)
		r.Post("/remove-all", sh.RemoveAll)
		r.Post("/undo", sh.Undo)
		r.Post("/redo", sh.Redo)
		r.Post("/escape", sh.Escape)
		r.Post("/zoom", sh.Zoom)
		r.Post("/snap", sh.Snap)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
