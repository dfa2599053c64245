package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeevancare/appointment-platform/internal/identity"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// Handler exposes the booking and availability endpoints.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type bookRequest struct {
	DoctorID  string `json:"doctorId"`
	PatientID string `json:"patientId,omitempty"`
	Date      string `json:"date"`
	TimeSlot  string `json:"timeSlot"`
}

type bookResponse struct {
	AppointmentID string `json:"appointmentId"`
	SlotOrdinal   int    `json:"slotOrdinal"`
	Remaining     int    `json:"remaining"`
	FeeCents      int64  `json:"feeCents"`
	Date          string `json:"date"`
	TimeSlot      string `json:"timeSlot"`
}

// BookSlot handles POST /api/appointments.
func (h *Handler) BookSlot(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctorId")
		return
	}
	patientID, err := uuid.Parse(principal.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid caller identity")
		return
	}
	// The body may echo the patient id; it must match the token.
	if req.PatientID != "" && req.PatientID != principal.UserID {
		writeError(w, http.StatusForbidden, "patientId does not match caller")
		return
	}

	result, err := h.svc.Book(r.Context(), doctorID, patientID, req.Date, req.TimeSlot)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}

	appt := result.Appointment
	writeJSON(w, http.StatusCreated, bookResponse{
		AppointmentID: appt.ID.String(),
		SlotOrdinal:   appt.SlotOrdinal,
		Remaining:     result.Remaining,
		FeeCents:      appt.FeeCents,
		Date:          appt.Date,
		TimeSlot:      appt.TimeSlot,
	})
}

type availabilityResponse struct {
	DoctorName string             `json:"doctorName"`
	FeeCents   int64              `json:"feeCents"`
	Slots      []string           `json:"slots"`
	Capacity   []SlotAvailability `json:"capacity"`
}

// AvailableSlots handles GET /api/doctors/{doctorID}/slots?date=YYYY-MM-DD.
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	avail, err := h.svc.AvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		DoctorName: avail.DoctorName,
		FeeCents:   avail.FeeCents,
		Slots:      avail.OpenSlots,
		Capacity:   avail.Slots,
	})
}

type listItem struct {
	AppointmentID string `json:"appointmentId"`
	DoctorID      string `json:"doctorId"`
	Date          string `json:"date"`
	TimeSlot      string `json:"timeSlot"`
	SlotOrdinal   int    `json:"slotOrdinal"`
	FeeCents      int64  `json:"feeCents"`
	PaymentStatus string `json:"paymentStatus"`
	Status        string `json:"status"`
}

// ListMine handles GET /api/appointments.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	patientID, err := uuid.Parse(principal.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid caller identity")
		return
	}

	appts, err := h.svc.ListForPatient(r.Context(), patientID)
	if err != nil {
		h.logger.Error("listing bookings failed", "error", err, "patient_id", patientID)
		writeError(w, http.StatusInternalServerError, "could not load bookings")
		return
	}

	items := make([]listItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, listItem{
			AppointmentID: a.ID.String(),
			DoctorID:      a.DoctorID.String(),
			Date:          a.Date,
			TimeSlot:      a.TimeSlot,
			SlotOrdinal:   a.SlotOrdinal,
			FeeCents:      a.FeeCents,
			PaymentStatus: string(a.PaymentStatus),
			Status:        string(a.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

// Cancel handles POST /api/appointments/{appointmentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return
	}
	apptID, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	patientID, err := uuid.Parse(principal.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid caller identity")
		return
	}

	if err := h.svc.Cancel(r.Context(), apptID, patientID); err != nil {
		h.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Cancelled"})
}

func (h *Handler) writeBookingError(w http.ResponseWriter, err error) {
	var capErr *CapacityExceededError
	if errors.As(err, &capErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       "slot capacity exceeded, please pick another time slot",
			"bookedCount": capErr.Booked,
			"remaining":   0,
		})
		return
	}
	var dupErr *DuplicateBookingError
	if errors.As(err, &dupErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                 "you already have an appointment in this time slot",
			"existingAppointmentId": dupErr.ExistingID.String(),
		})
		return
	}

	switch {
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDoctorUnavailable), errors.Is(err, ErrAlreadyFinal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "you are not authorized for this appointment")
	default:
		h.logger.Error("booking request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
