package api

import (
	"net/http"
	"strconv"

	"github.com/starford/geoplan/internal/models"
	"github.com/starford/geoplan/internal/placement"
)

// Handler holds the plan, position and geo code route handlers.
type Handler struct {
	svc *placement.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *placement.Service) *Handler {
	return &Handler{svc: svc}
}

// ListPlans handles GET /api/plans.
//
//	@Summary	List registered plans
//	@Tags		plans
//	@Produce	json
//	@Success	200	{object}	PlanListResponse
//	@Router		/plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListPlans(r.Context())
	if err != nil {
		writeError(w, "list plans", err)
		return
	}
	writeJSON(w, http.StatusOK, PlanListResponse{Plans: plans})
}

// CreatePlan handles POST /api/plans. The plan is registered as a drawn plan.
//
//	@Summary	Register a drawn plan
//	@Tags		plans
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CreatePlanRequest	true	"Plan"
//	@Success	201		{object}	models.Plan
//	@Failure	400		{object}	errResponse
//	@Router		/plans [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	plan, err := h.svc.CreatePlan(r.Context(), models.Plan{
		Name: req.Name, Width: req.Width, Height: req.Height, OriginX: req.OriginX, OriginY: req.OriginY,
	})
	if err != nil {
		writeError(w, "create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// GetPlan handles GET /api/plans/{planID}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "planID")
	if !ok {
		return
	}
	plan, err := h.svc.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, "get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// ListPositions handles GET /api/plans/{planID}/positions.
//
//	@Summary	List the positions of a plan
//	@Tags		positions
//	@Produce	json
//	@Param		planID	path		int		true	"Plan id"
//	@Param		details	query		bool	false	"Join geo code code, label and category"
//	@Success	200		{object}	PositionListResponse
//	@Failure	404		{object}	errResponse
//	@Router		/plans/{planID}/positions [get]
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "planID")
	if !ok {
		return
	}
	details, _ := strconv.ParseBool(r.URL.Query().Get("details"))
	ps, err := h.svc.ListPositions(r.Context(), id, details)
	if err != nil {
		writeError(w, "list positions", err)
		return
	}
	writeJSON(w, http.StatusOK, PositionListResponse{Positions: ps})
}

// History handles GET /api/plans/{planID}/history.
//
//	@Summary	Audit log of position changes, newest first
//	@Tags		positions
//	@Produce	json
//	@Param		planID		path		int	true	"Plan id"
//	@Param		geo_code_id	query		int	false	"Restrict to one geo code"
//	@Param		limit		query		int	false	"Max rows"
//	@Success	200			{object}	HistoryResponse
//	@Router		/plans/{planID}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "planID")
	if !ok {
		return
	}
	q := r.URL.Query()
	geoCodeID, _ := strconv.ParseInt(q.Get("geo_code_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	entries, err := h.svc.History(r.Context(), id, geoCodeID, limit)
	if err != nil {
		writeError(w, "position history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{History: entries})
}

// ListUnplaced handles GET /api/plans/{planID}/unplaced.
func (h *Handler) ListUnplaced(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "planID")
	if !ok {
		return
	}
	gcs, err := h.svc.ListUnplaced(r.Context(), id)
	if err != nil {
		writeError(w, "list unplaced", err)
		return
	}
	writeJSON(w, http.StatusOK, GeoCodeListResponse{GeoCodes: gcs})
}

// SavePosition handles POST /api/positions. Without position_id the call
// inserts; with it the call updates that row.
//
//	@Summary	Upsert a position
//	@Tags		positions
//	@Accept		json
//	@Produce	json
//	@Param		body	body		models.SaveRequest	true	"Position"
//	@Success	200		{object}	models.Position
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Router		/positions [post]
func (h *Handler) SavePosition(w http.ResponseWriter, r *http.Request) {
	var req models.SaveRequest
	if !decode(w, r, &req) {
		return
	}
	pos, err := h.svc.SavePosition(r.Context(), req)
	if err != nil {
		writeError(w, "save position", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// GetPosition handles GET /api/positions/{positionID}.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "positionID")
	if !ok {
		return
	}
	pos, err := h.svc.GetPosition(r.Context(), id)
	if err != nil {
		writeError(w, "get position", err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// RemovePosition handles DELETE /api/positions/{positionID}. Removing a
// missing position succeeds with success=false.
//
//	@Summary	Remove one position
//	@Tags		positions
//	@Produce	json
//	@Param		positionID	path		int	true	"Position id"
//	@Success	200			{object}	SuccessResponse
//	@Router		/positions/{positionID} [delete]
func (h *Handler) RemovePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "positionID")
	if !ok {
		return
	}
	removed, err := h.svc.RemovePosition(r.Context(), id)
	if err != nil {
		writeError(w, "remove position", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: removed})
}

// RemoveAllPositions handles DELETE /api/plans/{planID}/geocodes/{geoCodeID}/positions.
func (h *Handler) RemoveAllPositions(w http.ResponseWriter, r *http.Request) {
	planID, ok := idParam(w, r, "planID")
	if !ok {
		return
	}
	geoCodeID, ok := idParam(w, r, "geoCodeID")
	if !ok {
		return
	}
	removed, err := h.svc.RemoveAllPositions(r.Context(), geoCodeID, planID)
	if err != nil {
		writeError(w, "remove all positions", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: removed})
}

// ListGeoCodes handles GET /api/geocodes. With q it searches codes and labels.
func (h *Handler) ListGeoCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		gcs []models.GeoCode
		err error
	)
	if term := q.Get("q"); term != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		gcs, err = h.svc.SearchGeoCodes(r.Context(), term, limit)
	} else {
		gcs, err = h.svc.ListGeoCodes(r.Context(), q.Get("category"))
	}
	if err != nil {
		writeError(w, "list geo codes", err)
		return
	}
	writeJSON(w, http.StatusOK, GeoCodeListResponse{GeoCodes: gcs})
}

// CreateGeoCode handles POST /api/geocodes.
func (h *Handler) CreateGeoCode(w http.ResponseWriter, r *http.Request) {
	var req CreateGeoCodeRequest
	if !decode(w, r, &req) {
		return
	}
	gc, err := h.svc.CreateGeoCode(r.Context(), models.GeoCode{
		Code: req.Code, Label: req.Label, Category: req.Category, Metadata: req.Metadata,
	})
	if err != nil {
		writeError(w, "create geo code", err)
		return
	}
	writeJSON(w, http.StatusCreated, gc)
}

// GetGeoCode handles GET /api/geocodes/{geoCodeID}.
func (h *Handler) GetGeoCode(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "geoCodeID")
	if !ok {
		return
	}
	gc, err := h.svc.GetGeoCode(r.Context(), id)
	if err != nil {
		writeError(w, "get geo code", err)
		return
	}
	writeJSON(w, http.StatusOK, gc)
}

// DeleteGeoCode handles DELETE /api/geocodes/{geoCodeID}.
func (h *Handler) DeleteGeoCode(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "geoCodeID")
	if !ok {
		return
	}
	if err := h.svc.DeleteGeoCode(r.Context(), id); err != nil {
		writeError(w, "delete geo code", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
