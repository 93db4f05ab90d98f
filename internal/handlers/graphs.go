package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"road-orienteer/internal/models"
)

// GraphListResponse is the response for listing graphs
type GraphListResponse struct {
	Graphs []models.GraphInfo `json:"graphs"`
}

// HandleListGraphs handles GET /api/v1/graphs
func (h *Handler) HandleListGraphs(w http.ResponseWriter, r *http.Request) {
	log.Printf("[HTTP] GET /api/v1/graphs")
	graphs, err := h.DB.Graphs().List(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to list graphs: err=%v", err)
		h.handleInternalError(w, err)
		return
	}
	if graphs == nil {
		graphs = []models.GraphInfo{}
	}
	h.writeJSON(w, http.StatusOK, GraphListResponse{Graphs: graphs})
}

// HandleImportGraph handles POST /api/v1/graphs
func (h *Handler) HandleImportGraph(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourcePath string `json:"source_path"`
		Reimport   bool   `json:"reimport"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[HTTP] POST /api/v1/graphs: invalid_body err=%v", err)
		h.handleValidationError(w, "Invalid request body")
		return
	}
	if req.SourcePath == "" {
		h.handleValidationError(w, "source_path is required")
		return
	}

	log.Printf("[HTTP] POST /api/v1/graphs: source_path=%s reimport=%v", req.SourcePath, req.Reimport)
	info, _, err := h.Graphs.LoadOrImport(r.Context(), req.SourcePath, req.Reimport)
	if err != nil {
		log.Printf("[ERROR] Failed to import graph: source_path=%s err=%v", req.SourcePath, err)
		h.handleError(w, err, "Graph not found")
		return
	}
	if req.Reimport {
		h.Planner.Forget(info.ID)
	}
	h.writeJSON(w, http.StatusCreated, info)
}

// HandleGetGraph handles GET /api/v1/graphs/{id}
func (h *Handler) HandleGetGraph(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/graphs/")

	log.Printf("[HTTP] GET /api/v1/graphs/{id}: id=%s", id)
	info, err := h.DB.Graphs().GetByID(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Graph not found")
			return
		}
		log.Printf("[ERROR] Failed to get graph: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandleDeleteGraph handles DELETE /api/v1/graphs/{id}. Solves on the graph
// are deleted with it.
func (h *Handler) HandleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/graphs/")

	log.Printf("[HTTP] DELETE /api/v1/graphs/{id}: id=%s", id)
	if err := h.DB.Graphs().Delete(r.Context(), id); err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Graph not found")
			return
		}
		log.Printf("[ERROR] Failed to delete graph: id=%s err=%v", id, err)
		h.handleInternalError(w, err)
		return
	}
	h.Planner.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}
