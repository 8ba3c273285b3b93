package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeDomainError maps the error taxonomy to HTTP statuses. Every kind
// reaches the caller as-is; nothing is folded into a generic success.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidMoment):
		http.Error(w, "preferred time is missing its UTC offset or unparseable", http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrServiceNotFound):
		http.Error(w, "unknown service", http.StatusUnprocessableEntity)
	case errors.Is(err, lifecycle.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		http.Error(w, "illegal status transition", http.StatusUnprocessableEntity)
	case errors.Is(err, lifecycle.ErrNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, lifecycle.ErrConflict):
		http.Error(w, "appointment was modified concurrently", http.StatusConflict)
	case errors.Is(err, lifecycle.ErrStoreTimeout):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
