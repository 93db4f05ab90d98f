package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"road-orienteer/internal/database"
	"road-orienteer/internal/geocoding"
	"road-orienteer/internal/models"
	"road-orienteer/internal/osmimport"
	"road-orienteer/internal/planning"
)

// Version is reported by the health check
const Version = "1.0.0"

// SolveDefaults fill in solver settings a request leaves out
type SolveDefaults struct {
	Mode      models.TravelMode
	TimeLimit time.Duration
	NodeLimit int
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	DB       database.DataStore
	Graphs   *database.GraphCache
	Planner  *planning.Service
	Defaults SolveDefaults
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleGeocodingError handles 422 errors for geocoding failures
func (h *Handler) handleGeocodingError(w http.ResponseWriter, err error) {
	h.writeError(w, http.StatusUnprocessableEntity, "GEOCODING_FAILED", err.Error(), nil)
}

// handleImportError handles 422 errors for map extracts that cannot be read
func (h *Handler) handleImportError(w http.ResponseWriter, err *osmimport.ErrImportFailed) {
	h.writeError(w, http.StatusUnprocessableEntity, "IMPORT_FAILED", err.Reason, map[string]string{
		"source": err.Source,
	})
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	log.Printf("[ERROR] Internal error: %v", err)
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// handleError maps service errors onto responses
func (h *Handler) handleError(w http.ResponseWriter, err error, notFound string) {
	var geoErr *geocoding.ErrGeocodingFailed
	var importErr *osmimport.ErrImportFailed
	switch {
	case planning.IsInputError(err):
		h.handleValidationError(w, err.Error())
	case h.checkNotFound(err):
		h.handleNotFound(w, notFound)
	case errors.As(err, &geoErr):
		h.handleGeocodingError(w, err)
	case errors.As(err, &importErr):
		h.handleImportError(w, importErr)
	default:
		h.handleInternalError(w, err)
	}
}

// pagination reads limit and offset query parameters
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, 100)
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if err := h.DB.HealthCheck(r.Context()); err != nil {
		log.Printf("[ERROR] Health check failed: %v", err)
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
	})
}
