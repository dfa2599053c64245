package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeevancare/appointment-platform/internal/doctors"
	"github.com/jeevancare/appointment-platform/internal/observability/metrics"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("jeevancare.internal.appointments")

// ErrForbidden is returned when the caller does not own the appointment.
var ErrForbidden = errors.New("appointments: caller does not own this appointment")

type ledgerStore interface {
	Reserve(ctx context.Context, doctorID, patientID uuid.UUID, doctorName, date, timeSlot string, feeCents int64) (*Appointment, int, error)
	SlotCounts(ctx context.Context, doctorID uuid.UUID, date string) (map[string]int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) error
	Capacity() int
}

// Service is the slot allocator and availability query over the ledger.
type Service struct {
	ledger    ledgerStore
	directory doctors.Directory
	grid      *Grid
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// NewService constructs the booking service.
func NewService(ledger *Ledger, directory doctors.Directory, grid *Grid, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if ledger == nil {
		panic("appointments: ledger required")
	}
	return newServiceWithStore(ledger, directory, grid, m, logger)
}

func newServiceWithStore(ledger ledgerStore, directory doctors.Directory, grid *Grid, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if directory == nil {
		panic("appointments: doctor directory required")
	}
	if grid == nil || grid.Len() == 0 {
		panic("appointments: slot grid required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		grid:      grid,
		metrics:   m,
		logger:    logger,
	}
}

// Grid returns the configured slot grid.
func (s *Service) Grid() *Grid {
	return s.grid
}

// Book admits one booking for (doctor, date, slot) if the doctor is
// available and the slot has spare capacity. The fee is snapshotted from the
// directory at this moment and never recomputed.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, date, timeSlot string) (*BookingResult, error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("jeevancare.doctor_id", doctorID.String()),
		attribute.String("jeevancare.time_slot", timeSlot),
	)
	start := time.Now()

	normalized, err := ParseDate(date)
	if err != nil {
		s.metrics.ObserveBooking("invalid_input", time.Since(start).Seconds())
		return nil, err
	}
	if !s.grid.Contains(timeSlot) {
		s.metrics.ObserveBooking("invalid_input", time.Since(start).Seconds())
		return nil, fmt.Errorf("appointments: %w: %q", ErrInvalidSlot, timeSlot)
	}

	doctor, err := s.directory.GetByID(ctx, doctorID)
	if errors.Is(err, doctors.ErrNotFound) {
		s.metrics.ObserveBooking("doctor_not_found", time.Since(start).Seconds())
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !doctor.Available {
		s.metrics.ObserveBooking("doctor_unavailable", time.Since(start).Seconds())
		return nil, ErrDoctorUnavailable
	}

	appt, booked, err := s.ledger.Reserve(ctx, doctorID, patientID, doctor.Name, normalized, timeSlot, doctor.FeeCents)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking(bookingOutcome(err), time.Since(start).Seconds())
		return nil, err
	}

	s.metrics.ObserveBooking("success", time.Since(start).Seconds())
	s.logger.Info("slot booked",
		"appointment_id", appt.ID,
		"doctor_id", doctorID,
		"date", appt.Date,
		"time_slot", appt.TimeSlot,
		"slot_ordinal", appt.SlotOrdinal,
	)

	// Remaining comes from the live booked count, not the ordinal: ordinals
	// stay monotonic across cancellations and can exceed capacity.
	return &BookingResult{
		Appointment: *appt,
		Remaining:   s.ledger.Capacity() - booked,
	}, nil
}

// AvailableSlots reports, for every grid slot, how many bookings it holds and
// how many remain. OpenSlots keeps the original binary view: a slot is listed
// only while it has zero non-cancelled bookings.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*Availability, error) {
	ctx, span := bookingTracer.Start(ctx, "appointments.available_slots")
	defer span.End()

	normalized, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	doctor, err := s.directory.GetByID(ctx, doctorID)
	if errors.Is(err, doctors.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	counts, err := s.ledger.SlotCounts(ctx, doctorID, normalized)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	capacity := s.ledger.Capacity()
	avail := &Availability{
		DoctorName: doctor.Name,
		FeeCents:   doctor.FeeCents,
		OpenSlots:  make([]string, 0, s.grid.Len()),
		Slots:      make([]SlotAvailability, 0, s.grid.Len()),
	}
	for _, slot := range s.grid.Slots() {
		booked := counts[slot]
		remaining := capacity - booked
		if remaining < 0 {
			remaining = 0
		}
		if booked == 0 {
			avail.OpenSlots = append(avail.OpenSlots, slot)
		}
		avail.Slots = append(avail.Slots, SlotAvailability{TimeSlot: slot, Booked: booked, Remaining: remaining})
	}
	return avail, nil
}

// ListForPatient returns the caller's bookings.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return s.ledger.ListForPatient(ctx, patientID)
}

// Cancel moves the caller's Scheduled appointment to Cancelled.
func (s *Service) Cancel(ctx context.Context, id, patientID uuid.UUID) error {
	appt, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if appt.PatientID != patientID {
		return ErrForbidden
	}
	return s.ledger.Cancel(ctx, id)
}

// Complete moves a Scheduled appointment to Completed. Invoked from the
// doctor workflow, which owns its own authorization.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) error {
	return s.ledger.Complete(ctx, id)
}

func bookingOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrDuplicateBooking):
		return "duplicate_booking"
	default:
		return "error"
	}
}
