package appointments

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks whether the appointment fee has been captured.
// Pending -> Paid is the only permitted transition.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// Status is the appointment lifecycle state. Scheduled moves to exactly one
// of Completed or Cancelled; both are terminal.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Appointment is the durable ledger record for one booked slot position.
// FeeCents is a snapshot of the doctor's fee at booking time and is never
// recomputed. SlotOrdinal is the 1-based position assigned at creation and is
// stable: cancellations free capacity but ordinals are not re-packed.
type Appointment struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Date          string
	TimeSlot      string
	SlotOrdinal   int
	FeeCents      int64
	PaymentStatus PaymentStatus
	Status        Status
	CreatedAt     time.Time
}

// BookingResult is what the allocator returns on a successful reservation.
type BookingResult struct {
	Appointment Appointment
	Remaining   int
}

// SlotAvailability describes one grid slot for a doctor/date.
type SlotAvailability struct {
	TimeSlot  string `json:"timeSlot"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
}

// Availability is the availability-query result for a doctor/date.
type Availability struct {
	DoctorName string
	FeeCents   int64
	// OpenSlots lists slots with zero non-cancelled bookings, the shape the
	// original UI consumes.
	OpenSlots []string
	// Slots carries per-slot remaining capacity for every grid entry.
	Slots []SlotAvailability
}
