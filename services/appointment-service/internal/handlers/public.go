package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/storage"
)

type ServiceCatalog interface {
	ListServices(ctx context.Context) ([]storage.Service, error)
}

type ContactSink interface {
	Create(ctx context.Context, name, email, message string) (string, error)
	ListRecent(ctx context.Context, limit int) ([]storage.ContactMessage, error)
}

// BusyLookup reports the clock times already booked on a date so the
// slot picker only offers free ones.
type BusyLookup interface {
	ListBookedTimes(ctx context.Context, date string) ([]string, error)
}

// PublicHandler serves the unauthenticated endpoints backing the site's
// public pages.
type PublicHandler struct {
	catalog ServiceCatalog
	contact ContactSink
	busy    BusyLookup
	policy  schedule.Policy
	logger  *slog.Logger
}

func NewPublicHandler(catalog ServiceCatalog, contact ContactSink, busy BusyLookup, policy schedule.Policy, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{catalog: catalog, contact: contact, busy: busy, policy: policy, logger: logger}
}

type serviceItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (h *PublicHandler) Services(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	services, err := h.catalog.ListServices(r.Context())
	if err != nil {
		h.logger.Error("list services failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, serviceItem{ID: s.ID, Title: s.Title, Description: s.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

// Slots lists the bookable times for a date so the booking form can
// offer a picker. ?date=YYYY-MM-DD.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	var busy []string
	if h.busy != nil {
		busy, err = h.busy.ListBookedTimes(r.Context(), raw)
		if err != nil {
			h.logger.Error("booked time lookup failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	slots := schedule.AvailableSlots(date, h.policy, busy)
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  raw,
		"slots": slots,
	})
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *PublicHandler) Contact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		http.Error(w, "name, email and message are required", http.StatusBadRequest)
		return
	}

	id, err := h.contact.Create(r.Context(), req.Name, req.Email, req.Message)
	if err != nil {
		h.logger.Error("contact message create failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type contactMessageItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminMessages lists recent contact-form submissions for the admin
// inbox. The gateway gates /api/v1/admin to admins; the role header is
// re-checked here so the service is safe when addressed directly.
func (h *PublicHandler) AdminMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, err := principalFromRequest(r)
	if err != nil {
		http.Error(w, "missing principal", http.StatusUnauthorized)
		return
	}
	if !p.IsAdmin() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := h.contact.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("contact message list failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	items := make([]contactMessageItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, contactMessageItem{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Message:   m.Message,
			CreatedAt: m.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}
