package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/merodias-lab/clinic/services/appointment-service/internal/lifecycle"
	"github.com/merodias-lab/clinic/services/appointment-service/internal/schedule"
)

type fakeManager struct {
	createCalls     int
	transitionCalls int
	err             error
	errOnce         bool
	lastCreate      lifecycle.CreateInput
	lastTarget      lifecycle.Status
	lastRef         string
}

func (m *fakeManager) Create(_ context.Context, p lifecycle.Principal, in lifecycle.CreateInput) (lifecycle.Appointment, error) {
	m.createCalls++
	if err := m.takeErr(); err != nil {
		return lifecycle.Appointment{}, err
	}
	m.lastCreate = in
	return lifecycle.Appointment{
		ID:             "11111111-1111-1111-1111-111111111111",
		UserID:         p.ID,
		ServiceID:      in.ServiceRef,
		Subject:        in.Subject,
		PreferredAt:    in.PreferredAt,
		PreferredLocal: in.PreferredLocal,
		Status:         lifecycle.StatusPending,
		Version:        1,
	}, nil
}

func (m *fakeManager) Transition(_ context.Context, p lifecycle.Principal, id string, target lifecycle.Status) (lifecycle.Appointment, error) {
	m.transitionCalls++
	if err := m.takeErr(); err != nil {
		return lifecycle.Appointment{}, err
	}
	m.lastTarget = target
	return lifecycle.Appointment{ID: id, UserID: p.ID, Status: target, Version: 2, PreferredAt: "2024-03-11T09:30:00-06:00", Subject: "x"}, nil
}

func (m *fakeManager) AttachResult(_ context.Context, _ lifecycle.Principal, id string, ref string) (lifecycle.Appointment, error) {
	if err := m.takeErr(); err != nil {
		return lifecycle.Appointment{}, err
	}
	m.lastRef = ref
	return lifecycle.Appointment{ID: id, Status: lifecycle.StatusCompleted, ResultRef: ref, Version: 2, PreferredAt: "2024-03-11T09:30:00-06:00", Subject: "x"}, nil
}

func (m *fakeManager) takeErr() error {
	if m.err == nil {
		return nil
	}
	err := m.err
	if m.errOnce {
		m.err = nil
	}
	return err
}

type fakeLister struct {
	appts []lifecycle.Appointment
}

func (l *fakeLister) ListByUser(_ context.Context, userID string, _ int) ([]lifecycle.Appointment, error) {
	var out []lifecycle.Appointment
	for _, a := range l.appts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *fakeLister) ListAll(_ context.Context, status lifecycle.Status, _ int) ([]lifecycle.Appointment, error) {
	if status == "" {
		return l.appts, nil
	}
	var out []lifecycle.Appointment
	for _, a := range l.appts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func newTestHandler(m *fakeManager, l *fakeLister) *AppointmentHandler {
	h := NewAppointmentHandler(m, l, schedule.DefaultPolicy(), slog.New(slog.NewTextHandler(&strings.Builder{}, nil)))
	h.retryBackoff = 0
	return h
}

func testMux(h *AppointmentHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Create(w, r)
			return
		}
		h.List(w, r)
	})
	mux.HandleFunc("/api/v1/appointments/{id}/status", h.SetStatus)
	mux.HandleFunc("/api/v1/admin/appointments", h.AdminList)
	mux.HandleFunc("/api/v1/admin/appointments/{id}/result", h.AttachResult)
	return mux
}

func asPatient(req *http.Request) *http.Request {
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderRole, "patient")
	return req
}

func asAdmin(req *http.Request) *http.Request {
	req.Header.Set(HeaderUserID, "root-1")
	req.Header.Set(HeaderRole, "admin")
	return req
}

func TestCreateAppointment(t *testing.T) {
	m := &fakeManager{}
	mux := testMux(newTestHandler(m, &fakeLister{}))

	body := `{"service_id":"","subject":"Chequeo","message":"hola","preferred_dt_local":"2024-03-11T09:30","tz_offset_minutes":-360,"tz_name":"America/Mexico_City"}`
	req := asPatient(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp appointmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if resp.Status != "pending" || resp.StatusLabel != "Pendiente" {
		t.Fatalf("unexpected status fields: %+v", resp)
	}
	if resp.PreferredAt != "2024-03-11T09:30:00-06:00" {
		t.Fatalf("unexpected instant %q", resp.PreferredAt)
	}
	if resp.WasAdjusted {
		t.Fatal("in-hours moment should not be adjusted")
	}
}

func TestCreateForwardsIdempotencyKey(t *testing.T) {
	m := &fakeManager{}
	mux := testMux(newTestHandler(m, &fakeLister{}))

	body := `{"subject":"Chequeo","preferred_dt":"2024-03-11T09:30:00-06:00"}`
	req := asPatient(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))
	req.Header.Set("Idempotency-Key", " retry-42 ")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.lastCreate.IdempotencyKey != "retry-42" {
		t.Fatalf("key not forwarded to the manager: %q", m.lastCreate.IdempotencyKey)
	}
}

func TestCreateAppointmentAdjustsSunday(t *testing.T) {
	m := &fakeManager{}
	mux := testMux(newTestHandler(m, &fakeLister{}))

	// 2024-03-17 is a Sunday; the clinic is closed.
	body := `{"subject":"Chequeo","preferred_dt":"2024-03-17T10:00:00-06:00"}`
	req := asPatient(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp appointmentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.WasAdjusted {
		t.Fatal("sunday moment should be adjusted")
	}
	if resp.PreferredAt != "2024-03-18T07:00:00-06:00" {
		t.Fatalf("expected monday open, got %q", resp.PreferredAt)
	}
}

func TestCreateAppointmentRejectsOffsetlessMoment(t *testing.T) {
	mux := testMux(newTestHandler(&fakeManager{}, &fakeLister{}))

	cases := []string{
		`{"subject":"x","preferred_dt":"2024-03-11T09:30:00"}`,
		`{"subject":"x","preferred_dt_local":"2024-03-11T09:30"}`,
		`{"subject":"x"}`,
	}
	for _, body := range cases {
		req := asPatient(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestCreateAppointmentRequiresAuth(t *testing.T) {
	mux := testMux(newTestHandler(&fakeManager{}, &fakeLister{}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSetStatusAcceptsSpanishAlias(t *testing.T) {
	m := &fakeManager{}
	mux := testMux(newTestHandler(m, &fakeLister{}))

	req := asPatient(httptest.NewRequest(http.MethodPatch,
		"/api/v1/appointments/11111111-1111-1111-1111-111111111111/status",
		strings.NewReader(`{"status":"cancelada"}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.lastTarget != lifecycle.StatusCancelled {
		t.Fatalf("alias not canonicalized: %s", m.lastTarget)
	}
}

func TestSetStatusErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{lifecycle.ErrForbidden, http.StatusForbidden},
		{lifecycle.ErrIllegalTransition, http.StatusUnprocessableEntity},
		{lifecycle.ErrNotFound, http.StatusNotFound},
		{lifecycle.ErrConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		m := &fakeManager{err: tc.err}
		mux := testMux(newTestHandler(m, &fakeLister{}))
		req := asPatient(httptest.NewRequest(http.MethodPatch,
			"/api/v1/appointments/11111111-1111-1111-1111-111111111111/status",
			strings.NewReader(`{"status":"confirmed"}`)))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestSetStatusUnknownToken(t *testing.T) {
	mux := testMux(newTestHandler(&fakeManager{}, &fakeLister{}))
	req := asPatient(httptest.NewRequest(http.MethodPatch,
		"/api/v1/appointments/11111111-1111-1111-1111-111111111111/status",
		strings.NewReader(`{"status":"archived"}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStoreTimeoutRetriesOnce(t *testing.T) {
	// First call times out, the retry succeeds.
	m := &fakeManager{err: lifecycle.ErrStoreTimeout, errOnce: true}
	mux := testMux(newTestHandler(m, &fakeLister{}))
	req := asAdmin(httptest.NewRequest(http.MethodPatch,
		"/api/v1/appointments/11111111-1111-1111-1111-111111111111/status",
		strings.NewReader(`{"status":"confirmed"}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", rec.Code)
	}
	if m.transitionCalls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", m.transitionCalls)
	}

	// Persistent timeout surfaces as 503 after a single retry.
	m = &fakeManager{err: lifecycle.ErrStoreTimeout}
	mux = testMux(newTestHandler(m, &fakeLister{}))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodPatch,
		"/api/v1/appointments/11111111-1111-1111-1111-111111111111/status",
		strings.NewReader(`{"status":"confirmed"}`))))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if m.transitionCalls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", m.transitionCalls)
	}
}

func TestAttachResult(t *testing.T) {
	m := &fakeManager{}
	mux := testMux(newTestHandler(m, &fakeLister{}))

	req := asAdmin(httptest.NewRequest(http.MethodPost,
		"/api/v1/admin/appointments/11111111-1111-1111-1111-111111111111/result",
		strings.NewReader(`{"document_ref":"results/appt.pdf"}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp appointmentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "completed" || resp.ResultRef != "results/appt.pdf" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestResultRefHiddenOutsideCompleted(t *testing.T) {
	a := lifecycle.Appointment{
		ID:        "11111111-1111-1111-1111-111111111111",
		UserID:    "user-1",
		Status:    lifecycle.StatusPending,
		ResultRef: "results/early.pdf",
	}
	resp := toResponse(a, false)
	if resp.ResultRef != "" {
		t.Fatalf("result ref must only surface for completed appointments, got %q", resp.ResultRef)
	}
	a.Status = lifecycle.StatusCompleted
	if got := toResponse(a, false).ResultRef; got != "results/early.pdf" {
		t.Fatalf("completed appointment should expose ref, got %q", got)
	}
}

func TestList(t *testing.T) {
	l := &fakeLister{appts: []lifecycle.Appointment{
		{ID: "a1", UserID: "user-1", Status: lifecycle.StatusPending},
		{ID: "a2", UserID: "user-2", Status: lifecycle.StatusConfirmed},
	}}
	mux := testMux(newTestHandler(&fakeManager{}, l))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asPatient(httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Appointments []appointmentResponse `json:"appointments"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Appointments) != 1 || resp.Appointments[0].ID != "a1" {
		t.Fatalf("expected only the caller's appointments, got %+v", resp.Appointments)
	}
}

func TestAdminList(t *testing.T) {
	l := &fakeLister{appts: []lifecycle.Appointment{
		{ID: "a1", UserID: "user-1", Status: lifecycle.StatusPending},
		{ID: "a2", UserID: "user-2", Status: lifecycle.StatusConfirmed},
	}}
	mux := testMux(newTestHandler(&fakeManager{}, l))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, asPatient(httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments", nil)))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments?status=confirmada", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Appointments []appointmentResponse `json:"appointments"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Appointments) != 1 || resp.Appointments[0].ID != "a2" {
		t.Fatalf("status filter not applied: %+v", resp.Appointments)
	}
}
