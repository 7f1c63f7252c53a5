package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorDetails(w, r, message, code, status, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, message, code string, status int, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Details:   details,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type insufficientStockDetails struct {
	ProductID   int `json:"product_id"`
	WarehouseID int `json:"warehouse_id"`
	Available   int `json:"available"`
	Requested   int `json:"requested"`
}

// writeServiceError maps an application error onto its HTTP status and error code.
// Unclassified errors are logged and reported as 500 without their text.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		insufficient *core.InsufficientStockError
		invalid      *core.ValidationError
		missing      *core.NotFoundError
	)
	switch {
	case errors.As(err, &insufficient):
		writeErrorDetails(w, r, insufficient.Error(), "INSUFFICIENT_STOCK", http.StatusBadRequest, insufficientStockDetails{
			ProductID:   insufficient.ProductID,
			WarehouseID: insufficient.WarehouseID,
			Available:   insufficient.Available,
			Requested:   insufficient.Requested,
		})
	case errors.As(err, &invalid):
		var details any
		if invalid.Field != "" {
			details = map[string]string{"field": invalid.Field}
		}
		writeErrorDetails(w, r, invalid.Error(), "VALIDATION_ERROR", http.StatusBadRequest, details)
	case errors.As(err, &missing):
		writeError(w, r, missing.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, app.ErrForbidden):
		writeError(w, r, err.Error(), "FORBIDDEN", http.StatusForbidden)
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, r, "invalid email or password", "UNAUTHORIZED", http.StatusUnauthorized)
	case errors.Is(err, core.ErrConcurrencyConflict):
		writeError(w, r, err.Error(), "CONCURRENCY_CONFLICT", http.StatusServiceUnavailable)
	default:
		h.log.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
