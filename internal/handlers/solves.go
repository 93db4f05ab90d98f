package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"road-orienteer/internal/mip"
	"road-orienteer/internal/models"
	"road-orienteer/internal/planning"
)

// SolveRequest is the body of POST /api/v1/solves. One of Start,
// StartAddress or StartNode selects the start, in that order.
type SolveRequest struct {
	GraphID          string              `json:"graph_id"`
	Mode             models.TravelMode   `json:"mode"`
	Start            *models.Coordinates `json:"start"`
	StartAddress     string              `json:"start_address"`
	StartNode        *int                `json:"start_node"`
	MaxDistance      float64             `json:"max_distance_meters"`
	TimeLimitSeconds float64             `json:"time_limit_seconds"`
	NodeLimit        int                 `json:"node_limit"`
}

// SolveListResponse is the response for listing solves
type SolveListResponse struct {
	Solves []models.SolveRecord `json:"solves"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (h *Handler) solveInput(req *SolveRequest) *planning.Input {
	in := &planning.Input{
		GraphID:      req.GraphID,
		Mode:         req.Mode,
		StartCoords:  req.Start,
		StartAddress: strings.TrimSpace(req.StartAddress),
		StartNode:    -1,
		MaxDistance:  req.MaxDistance,
		Options: mip.Options{
			TimeLimit: h.Defaults.TimeLimit,
			NodeLimit: h.Defaults.NodeLimit,
		},
	}
	if in.Mode == "" {
		in.Mode = h.Defaults.Mode
	}
	if req.StartNode != nil {
		in.StartNode = *req.StartNode
	}
	if req.TimeLimitSeconds > 0 {
		in.Options.TimeLimit = time.Duration(req.TimeLimitSeconds * float64(time.Second))
	}
	if req.NodeLimit > 0 {
		in.Options.NodeLimit = req.NodeLimit
	}
	return in
}

// HandleCreateSolve handles POST /api/v1/solves. Infeasible and interrupted
// searches are stored and returned with their status.
func (h *Handler) HandleCreateSolve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/solves: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.TimeLimitSeconds < 0 || req.NodeLimit < 0 {
		h.handleValidationError(w, "time_limit_seconds and node_limit must not be negative")
		return
	}
	if req.StartNode != nil && *req.StartNode < 0 {
		h.handleValidationError(w, "start_node must not be negative")
		return
	}

	log.Printf("[HTTP] POST /api/v1/solves: graph_id=%s mode=%s max_distance=%.1f", req.GraphID, req.Mode, req.MaxDistance)
	rec, err := h.Planner.Solve(r.Context(), h.solveInput(&req))
	if err != nil {
		log.Printf("[ERROR] Failed to solve: graph_id=%s err=%v", req.GraphID, err)
		h.handleError(w, err, "Graph not found")
		return
	}

	log.Printf("[HTTP] POST /api/v1/solves: id=%s status=%s score=%.3f distance=%.1f",
		rec.ID, rec.Result.Status, rec.Result.Score, rec.Result.TotalDistance)
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleListSolves handles GET /api/v1/solves
func (h *Handler) HandleListSolves(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	log.Printf("[HTTP] GET /api/v1/solves: limit=%d offset=%d", limit, offset)
	solves, total, err := h.DB.Solves().List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list solves: limit=%d offset=%d err=%v", limit, offset, err)
		h.handleInternalError(w, err)
		return
	}
	if solves == nil {
		solves = []models.SolveRecord{}
	}

	h.writeJSON(w, http.StatusOK, SolveListResponse{
		Solves: solves,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func solveID(r *http.Request) string {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/solves/")
	return strings.TrimSuffix(id, "/geojson")
}

func (h *Handler) getSolve(w http.ResponseWriter, r *http.Request) (*models.SolveRecord, bool) {
	id := solveID(r)
	rec, err := h.DB.Solves().GetByID(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			log.Printf("[HTTP] Solve not found: id=%s", id)
			h.handleNotFound(w, "Solve not found")
			return nil, false
		}
		log.Printf("[ERROR] Failed to get solve: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return nil, false
	}
	return rec, true
}

// HandleGetSolve handles GET /api/v1/solves/{id}
func (h *Handler) HandleGetSolve(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] GET /api/v1/solves/{id}: id=%s", solveID(r))
	rec, ok := h.getSolve(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// HandleSolveGeoJSON handles GET /api/v1/solves/{id}/geojson
func (h *Handler) HandleSolveGeoJSON(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] GET /api/v1/solves/{id}/geojson: id=%s", solveID(r))
	rec, ok := h.getSolve(w, r)
	if !ok {
		return
	}

	fc, err := h.Planner.GeoJSON(r.Context(), rec)
	if err != nil {
		log.Printf("[ERROR] Failed to render solve: id=%s err=%v", rec.ID, err)
		h.handleError(w, err, "Graph not found")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(fc)
}

// HandleDeleteSolve handles DELETE /api/v1/solves/{id}
func (h *Handler) HandleDeleteSolve(w http.ResponseWriter, r *http.Request) {
	id := solveID(r)

	log.Printf("[HTTP] DELETE /api/v1/solves/{id}: id=%s", id)
	if err := h.DB.Solves().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Solve not found")
			return
		}
		log.Printf("[ERROR] Failed to delete solve: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
