package appointments

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidDate marks a malformed calendar date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidSlot marks a time-slot label outside the configured grid.
	ErrInvalidSlot = errors.New("invalid time slot")
	// ErrDoctorNotFound is returned when the doctor directory has no record.
	ErrDoctorNotFound = errors.New("doctor not found")
	// ErrDoctorUnavailable is returned when the doctor is not accepting bookings.
	ErrDoctorUnavailable = errors.New("doctor not available")
	// ErrNotFound is returned for unknown appointment ids.
	ErrNotFound = errors.New("appointment not found")
	// ErrCapacityExceeded is returned when a slot already holds its full capacity.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")
	// ErrDuplicateBooking is returned when the patient already holds the slot.
	ErrDuplicateBooking = errors.New("patient already booked this slot")
	// ErrAlreadyFinal is returned for transitions out of Completed or Cancelled.
	ErrAlreadyFinal = errors.New("appointment already in a terminal state")
)

// CapacityExceededError reports how full the slot was when the booking was
// rejected. It matches ErrCapacityExceeded under errors.Is.
type CapacityExceededError struct {
	Booked   int
	Capacity int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("appointments: slot capacity exceeded (%d of %d booked)", e.Booked, e.Capacity)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// DuplicateBookingError carries the id of the appointment the patient already
// holds for the slot. It matches ErrDuplicateBooking under errors.Is.
type DuplicateBookingError struct {
	ExistingID uuid.UUID
}

func (e *DuplicateBookingError) Error() string {
	return fmt.Sprintf("appointments: patient already booked this slot (existing appointment %s)", e.ExistingID)
}

func (e *DuplicateBookingError) Is(target error) bool {
	return target == ErrDuplicateBooking
}
