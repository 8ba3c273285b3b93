package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
)

// Manager is the slice of the lifecycle manager the handler needs.
type Manager interface {
	Create(ctx context.Context, p lifecycle.Principal, in lifecycle.CreateInput) (lifecycle.Appointment, error)
	Transition(ctx context.Context, p lifecycle.Principal, id string, target lifecycle.Status) (lifecycle.Appointment, error)
	AttachResult(ctx context.Context, p lifecycle.Principal, id string, documentRef string) (lifecycle.Appointment, error)
}

// Lister is the read side used for appointment listings.
type Lister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]lifecycle.Appointment, error)
	ListAll(ctx context.Context, status lifecycle.Status, limit int) ([]lifecycle.Appointment, error)
}

type AppointmentHandler struct {
	manager      Manager
	lister       Lister
	policy       schedule.Policy
	logger       *slog.Logger
	retryBackoff time.Duration
}

func NewAppointmentHandler(manager Manager, lister Lister, policy schedule.Policy, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		manager:      manager,
		lister:       lister,
		policy:       policy,
		logger:       logger,
		retryBackoff: 250 * time.Millisecond,
	}
}

type createAppointmentRequest struct {
	ServiceID       string `json:"service_id"`
	Subject         string `json:"subject"`
	Message         string `json:"message"`
	PreferredDT     string `json:"preferred_dt"`
	PreferredLocal  string `json:"preferred_dt_local"`
	TZOffsetMinutes *int   `json:"tz_offset_minutes"`
	TZName          string `json:"tz_name"`
}

type appointmentResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	StatusLabel    string `json:"status_label"`
	ServiceID      string `json:"service_id,omitempty"`
	Subject        string `json:"subject"`
	PreferredAt    string `json:"preferred_at"`
	PreferredLocal string `json:"preferred_local,omitempty"`
	WasAdjusted    bool   `json:"was_adjusted,omitempty"`
	ResultRef      string `json:"result_ref,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func toResponse(a lifecycle.Appointment, wasAdjusted bool) appointmentResponse {
	resp := appointmentResponse{
		ID:             a.ID,
		Status:         string(a.Status),
		StatusLabel:    a.Status.Label(),
		ServiceID:      a.ServiceID,
		Subject:        a.Subject,
		PreferredAt:    a.PreferredAt,
		PreferredLocal: a.PreferredLocal,
		WasAdjusted:    wasAdjusted,
	}
	if !a.CreatedAt.IsZero() {
		resp.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	// The result document link is an affordance of the completed state
	// only; other states never expose it, even if a ref exists.
	if a.Status == lifecycle.StatusCompleted {
		resp.ResultRef = a.ResultRef
	}
	return resp
}

// Create books an appointment. The submitted moment is normalized to the
// clinic's business hours before the lifecycle manager sees it.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	moment, err := resolveMoment(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	normalized, wasAdjusted := schedule.Normalize(moment, h.policy)

	// The store claims the key and books the appointment in one
	// transaction, so a replayed key returns the original booking.
	in := lifecycle.CreateInput{
		ServiceRef:     strings.TrimSpace(req.ServiceID),
		Subject:        req.Subject,
		Message:        req.Message,
		PreferredAt:    normalized.OffsetInstant(),
		PreferredLocal: normalized.LocalString(),
		ZoneName:       strings.TrimSpace(req.TZName),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}

	appt, err := h.withRetry(func() (lifecycle.Appointment, error) {
		return h.manager.Create(r.Context(), p, in)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(appt, wasAdjusted))
}

// List returns the caller's own appointments.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	appts, err := h.lister.ListByUser(r.Context(), p.ID, 100)
	if err != nil {
		h.logger.Error("list appointments failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

// AdminList returns appointments across all patients, optionally
// filtered by ?status=. Admin only.
func (h *AppointmentHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil || !p.IsAdmin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var status lifecycle.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := lifecycle.ParseStatus(raw)
		if !ok {
			http.Error(w, "unknown status filter", http.StatusBadRequest)
			return
		}
		status = parsed
	}

	appts, err := h.lister.ListAll(r.Context(), status, 200)
	if err != nil {
		h.logger.Error("admin list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus moves an appointment through the lifecycle state machine.
func (h *AppointmentHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := appointmentID(r)
	if !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	target, ok := lifecycle.ParseStatus(req.Status)
	if !ok {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}

	appt, err := h.withRetry(func() (lifecycle.Appointment, error) {
		return h.manager.Transition(r.Context(), p, id, target)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt, false))
}

type attachResultRequest struct {
	DocumentRef string `json:"document_ref"`
}

// AttachResult stores a result document reference and completes the
// appointment. Admin only.
func (h *AppointmentHandler) AttachResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, ok := appointmentID(r)
	if !ok {
		http.Error(w, "appointment not found", http.StatusNotFound)
		return
	}

	var req attachResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	appt, err := h.withRetry(func() (lifecycle.Appointment, error) {
		return h.manager.AttachResult(r.Context(), p, id, req.DocumentRef)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt, false))
}

// withRetry retries a store-timeout exactly once after a short backoff.
func (h *AppointmentHandler) withRetry(fn func() (lifecycle.Appointment, error)) (lifecycle.Appointment, error) {
	appt, err := fn()
	if errors.Is(err, lifecycle.ErrStoreTimeout) {
		time.Sleep(h.retryBackoff)
		return fn()
	}
	return appt, err
}

func appointmentID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func resolveMoment(req createAppointmentRequest) (schedule.Moment, error) {
	if strings.TrimSpace(req.PreferredDT) != "" {
		m, err := schedule.ParseMoment(strings.TrimSpace(req.PreferredDT))
		if err != nil {
			return schedule.Moment{}, err
		}
		m.ZoneName = strings.TrimSpace(req.TZName)
		return m, nil
	}
	if req.TZOffsetMinutes == nil {
		return schedule.Moment{}, schedule.ErrInvalidMoment
	}
	return schedule.MomentFromLocal(strings.TrimSpace(req.PreferredLocal), *req.TZOffsetMinutes, strings.TrimSpace(req.TZName))
}
