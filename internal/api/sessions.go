package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/geoplan/internal/editor"
	"github.com/starford/geoplan/internal/placement"
	"github.com/starford/geoplan/internal/snap"
	"github.com/starford/geoplan/internal/toolbar"
)

// SessionHandler serves server-hosted editor sessions.
type SessionHandler struct {
	svc      *placement.Service
	sessions *editor.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc *placement.Service, sessions *editor.Registry) *SessionHandler {
	return &SessionHandler{svc: svc, sessions: sessions}
}

// session resolves {sessionID}, writing 404 when it is not open.
func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, "get session", err)
		return nil, false
	}
	return s, true
}

// respond writes the session view after a successful operation.
func (h *SessionHandler) respond(ctx context.Context, w http.ResponseWriter, s *editor.Session, status int) {
	v, err := s.View(ctx)
	if err != nil {
		writeError(w, "session view", err)
		return
	}
	writeJSON(w, status, v)
}

// Open handles POST /api/sessions.
//
//	@Summary	Open an editor session on a plan
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		body	body		OpenSessionRequest	true	"Plan"
//	@Success	201		{object}	editor.View
//	@Failure	404		{object}	errResponse
//	@Router		/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decode(w, r, &req) {
		return
	}
	plan, err := h.svc.GetPlan(r.Context(), req.PlanID)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	s, err := h.sessions.Open(r.Context(), *plan)
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusCreated)
}

// Get handles GET /api/sessions/{sessionID}. With settle=true it waits for
// outstanding saves first.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if settle, _ := strconv.ParseBool(r.URL.Query().Get("settle")); settle {
		if err := s.Settle(r.Context()); err != nil {
			writeError(w, "settle session", err)
			return
		}
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Close handles DELETE /api/sessions/{sessionID}.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tool handles POST /api/sessions/{sessionID}/tool.
func (h *SessionHandler) Tool(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ToolRequest
	if !decode(w, r, &req) {
		return
	}
	pick := toolbar.Pick{Tool: toolbar.Tool(req.Tool), Sticky: req.Sticky}
	if req.GeoCodeID != 0 {
		gc, err := h.svc.GetGeoCode(r.Context(), req.GeoCodeID)
		if err != nil {
			writeError(w, "pick tool", err)
			return
		}
		pick.GeoCode = gc
	}
	if err := s.PickTool(r.Context(), pick); err != nil {
		writeError(w, "pick tool", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Click handles POST /api/sessions/{sessionID}/click.
func (h *SessionHandler) Click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PointRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.Click(r.Context(), req.X, req.Y)
	if err != nil {
		writeError(w, "click", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Draw handles POST /api/sessions/{sessionID}/draw.
func (h *SessionHandler) Draw(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req DrawRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := s.Draw(r.Context(), req.X1, req.Y1, req.X2, req.Y2, req.Text)
	if err != nil {
		writeError(w, "draw", err)
		return
	}
	writeJSON(w, http.StatusCreated, ObjectRequest{ObjectID: id})
}

// Drag handles POST /api/sessions/{sessionID}/drag.
//
//	@Summary	Drag an object along a path with snapping
//	@Tags		sessions
//	@Accept		json
//	@Produce	json
//	@Param		body	body		DragRequest	true	"Gesture"
//	@Success	200		{object}	DragResponse
//	@Failure	409		{object}	errResponse
//	@Router		/sessions/{sessionID}/drag [post]
func (h *SessionHandler) Drag(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req DragRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Path) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	ctx := r.Context()
	if err := s.BeginDrag(ctx, req.ObjectID); err != nil {
		writeError(w, "drag", err)
		return
	}
	var resp DragResponse
	for _, p := range req.Path {
		up, err := s.DragTo(ctx, p.X, p.Y)
		if err != nil {
			_ = s.Escape(ctx)
			writeError(w, "drag", err)
			return
		}
		resp.Last = up
	}
	if req.Cancel {
		if err := s.Escape(ctx); err != nil {
			writeError(w, "drag", err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	moved, err := s.EndDrag(ctx)
	if err != nil {
		writeError(w, "drag", err)
		return
	}
	resp.Moved = moved
	writeJSON(w, http.StatusOK, resp)
}

// Move handles POST /api/sessions/{sessionID}/move. The position is not snapped.
func (h *SessionHandler) Move(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ObjectPointRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Move(r.Context(), req.ObjectID, req.X, req.Y); err != nil {
		writeError(w, "move", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Resize handles POST /api/sessions/{sessionID}/resize.
func (h *SessionHandler) Resize(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ResizeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Resize(r.Context(), req.ObjectID, req.W, req.H); err != nil {
		writeError(w, "resize", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Anchor handles POST /api/sessions/{sessionID}/anchor.
func (h *SessionHandler) Anchor(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req AnchorRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	if req.Clear {
		err = s.ClearAnchor(r.Context(), req.ObjectID)
	} else {
		err = s.SetAnchor(r.Context(), req.ObjectID, req.X, req.Y)
	}
	if err != nil {
		writeError(w, "anchor", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Remove handles POST /api/sessions/{sessionID}/remove.
func (h *SessionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ObjectRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Remove(r.Context(), req.ObjectID); err != nil {
		writeError(w, "remove", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// RemoveAll handles POST /api/sessions/{sessionID}/remove-all.
func (h *SessionHandler) RemoveAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RemoveAllRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := s.RemoveAllInstances(r.Context(), req.GeoCodeID)
	if err != nil {
		writeError(w, "remove all", err)
		return
	}
	writeJSON(w, http.StatusOK, RemoveAllResponse{Removed: n})
}

// Undo handles POST /api/sessions/{sessionID}/undo.
func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Session).Undo)
}

// Redo handles POST /api/sessions/{sessionID}/redo.
func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*editor.Session).Redo)
}

func (h *SessionHandler) step(w http.ResponseWriter, r *http.Request, fn func(*editor.Session, context.Context) (bool, error)) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	changed, err := fn(s, r.Context())
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// Escape handles POST /api/sessions/{sessionID}/escape.
func (h *SessionHandler) Escape(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Escape(r.Context()); err != nil {
		writeError(w, "escape", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Zoom handles POST /api/sessions/{sessionID}/zoom.
func (h *SessionHandler) Zoom(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ZoomRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetZoom(r.Context(), req.Zoom); err != nil {
		writeError(w, "zoom", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}

// Snap handles POST /api/sessions/{sessionID}/snap.
func (h *SessionHandler) Snap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SnapRequest
	if !decode(w, r, &req) {
		return
	}
	cfg := snap.Config{Grid: req.Grid, GridSize: req.GridSize, Objects: req.Objects, Threshold: req.Threshold}
	if err := s.SetSnap(r.Context(), cfg); err != nil {
		writeError(w, "snap", err)
		return
	}
	h.respond(r.Context(), w, s, http.StatusOK)
}
