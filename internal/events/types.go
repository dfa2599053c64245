package events

import "time"

// Event type names as stored in the outbox and carried on the queue.
const (
	TypeAppointmentBooked    = "appointment_booked.v1"
	TypeAppointmentPaid      = "appointment_paid.v1"
	TypeAppointmentCancelled = "appointment_cancelled.v1"
)

type AppointmentBookedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	DoctorID      string    `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name,omitempty"`
	PatientID     string    `json:"patient_id"`
	Date          string    `json:"date"`
	TimeSlot      string    `json:"time_slot"`
	SlotOrdinal   int       `json:"slot_ordinal"`
	FeeCents      int64     `json:"fee_cents"`
	BookedAt      time.Time `json:"booked_at"`
}

type AppointmentPaidV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	FeeCents      int64     `json:"fee_cents"`
	PaidAt        time.Time `json:"paid_at"`
}

type AppointmentCancelledV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
}
