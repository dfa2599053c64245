package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeevancare/appointment-platform/internal/identity"
)

func newTestRouter(svc *Service) *chi.Mux {
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Post("/api/appointments", h.BookSlot)
	r.Get("/api/appointments", h.ListMine)
	r.Post("/api/appointments/{appointmentID}/cancel", h.Cancel)
	r.Get("/api/doctors/{doctorID}/slots", h.AvailableSlots)
	return r
}

func authedRequest(method, target string, body []byte, patientID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := identity.WithPrincipal(req.Context(), identity.Principal{UserID: patientID.String(), Role: "patient"})
	return req.WithContext(ctx)
}

func TestBookSlotEndpoint(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)
	patientID := uuid.New()

	body, _ := json.Marshal(map[string]string{
		"doctorId": doctorID.String(),
		"date":     "2026-09-10",
		"timeSlot": "9:00 am",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/appointments", body, patientID))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AppointmentID string `json:"appointmentId"`
		SlotOrdinal   int    `json:"slotOrdinal"`
		Remaining     int    `json:"remaining"`
		FeeCents      int64  `json:"feeCents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.SlotOrdinal != 1 || resp.Remaining != 9 || resp.FeeCents != 50000 {
		t.Fatalf("unexpected booking response: %+v", resp)
	}
	if _, err := uuid.Parse(resp.AppointmentID); err != nil {
		t.Fatalf("appointmentId is not a uuid: %q", resp.AppointmentID)
	}
}

func TestBookSlotRequiresIdentity(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]string{
		"doctorId": doctorID.String(),
		"date":     "2026-09-10",
		"timeSlot": "9:00 am",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/appointments", bytes.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestBookSlotRejectsMismatchedPatient(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)

	body, _ := json.Marshal(map[string]string{
		"doctorId":  doctorID.String(),
		"patientId": uuid.NewString(),
		"date":      "2026-09-10",
		"timeSlot":  "9:00 am",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/appointments", body, uuid.New()))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestBookSlotCapacityConflict(t *testing.T) {
	svc, _, _, doctorID := newTestService(1)
	router := newTestRouter(svc)

	book := func(patientID uuid.UUID) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{
			"doctorId": doctorID.String(),
			"date":     "2026-09-10",
			"timeSlot": "9:00 am",
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/appointments", body, patientID))
		return rec
	}

	if rec := book(uuid.New()); rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", rec.Code)
	}
	rec := book(uuid.New())
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp struct {
		BookedCount int `json:"bookedCount"`
		Remaining   int `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.BookedCount != 1 || resp.Remaining != 0 {
		t.Fatalf("unexpected conflict body: %+v", resp)
	}
}

func TestBookSlotDuplicateConflict(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)
	patientID := uuid.New()

	body, _ := json.Marshal(map[string]string{
		"doctorId": doctorID.String(),
		"date":     "2026-09-10",
		"timeSlot": "9:00 am",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/appointments", body, patientID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/appointments", body, patientID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp struct {
		ExistingAppointmentID string `json:"existingAppointmentId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if _, err := uuid.Parse(resp.ExistingAppointmentID); err != nil {
		t.Fatalf("existingAppointmentId is not a uuid: %q", resp.ExistingAppointmentID)
	}
}

func TestAvailableSlotsEndpoint(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	target := fmt.Sprintf("/api/doctors/%s/slots?date=2026-09-10", doctorID)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		DoctorName string             `json:"doctorName"`
		Slots      []string           `json:"slots"`
		Capacity   []SlotAvailability `json:"capacity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.DoctorName != "Dr. Mehta" || len(resp.Slots) != 25 || len(resp.Capacity) != 25 {
		t.Fatalf("unexpected availability response: %+v", resp)
	}
}

func TestAvailableSlotsRequiresDate(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	target := fmt.Sprintf("/api/doctors/%s/slots", doctorID)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCancelEndpoint(t *testing.T) {
	svc, _, _, doctorID := newTestService(10)
	router := newTestRouter(svc)
	patientID := uuid.New()

	result, err := svc.Book(context.Background(), doctorID, patientID, "2026-09-10", "9:00 am")
	if err != nil {
		t.Fatalf("Book returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	target := fmt.Sprintf("/api/appointments/%s/cancel", result.Appointment.ID)
	router.ServeHTTP(rec, authedRequest(http.MethodPost, target, nil, patientID))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
