package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"

	"github.com/jeevancare/appointment-platform/internal/events"
)

func newMockLedger(t *testing.T, capacity int) (*Ledger, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewLedger(mock, capacity), mock
}

func TestReserve(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	doctorID, patientID := uuid.New(), uuid.New()
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO slot_counters").
		WithArgs(doctorID, "2026-09-10", "9:00 am", 10).
		WillReturnRows(pgxmock.NewRows([]string{"next_ordinal", "booked"}).AddRow(3, 3))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), doctorID, patientID, "2026-09-10", "9:00 am", 3, int64(50000), "Pending", "Scheduled").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectCommit()
	mock.ExpectRollback()

	appt, booked, err := ledger.Reserve(context.Background(), doctorID, patientID, "Dr. Mehta", "2026-09-10", "9:00 am", 50000)
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if appt.SlotOrdinal != 3 {
		t.Fatalf("expected ordinal 3, got %d", appt.SlotOrdinal)
	}
	if booked != 3 {
		t.Fatalf("expected booked count 3, got %d", booked)
	}
	if appt.PaymentStatus != PaymentPending || appt.Status != StatusScheduled {
		t.Fatalf("unexpected initial state: %#v", appt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserveSlotFull(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	doctorID, patientID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	// The guarded upsert matches no row once booked has reached capacity.
	mock.ExpectQuery("INSERT INTO slot_counters").
		WithArgs(doctorID, "2026-09-10", "9:00 am", 10).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := ledger.Reserve(context.Background(), doctorID, patientID, "Dr. Mehta", "2026-09-10", "9:00 am", 50000)
	var capErr *CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatal("capacity error must match the sentinel")
	}
}

func TestReserveDuplicateBooking(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	doctorID, patientID := uuid.New(), uuid.New()
	existing := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO slot_counters").
		WithArgs(doctorID, "2026-09-10", "9:00 am", 10).
		WillReturnRows(pgxmock.NewRows([]string{"next_ordinal", "booked"}).AddRow(4, 4))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), doctorID, patientID, "2026-09-10", "9:00 am", 4, int64(50000), "Pending", "Scheduled").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_active_booking_idx"})
	mock.ExpectRollback()
	mock.ExpectQuery("SELECT id FROM appointments").
		WithArgs(doctorID, patientID, "2026-09-10", "9:00 am").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(existing))

	_, _, err := ledger.Reserve(context.Background(), doctorID, patientID, "Dr. Mehta", "2026-09-10", "9:00 am", 50000)
	var dupErr *DuplicateBookingError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateBookingError, got %v", err)
	}
	if dupErr.ExistingID != existing {
		t.Fatalf("expected existing id %s, got %s", existing, dupErr.ExistingID)
	}
}

func TestSlotCounts(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT time_slot, COUNT").
		WithArgs(doctorID, "2026-09-10").
		WillReturnRows(pgxmock.NewRows([]string{"time_slot", "count"}).
			AddRow("9:00 am", 10).
			AddRow("9:30 am", 2))

	counts, err := ledger.SlotCounts(context.Background(), doctorID, "2026-09-10")
	if err != nil {
		t.Fatalf("SlotCounts returned error: %v", err)
	}
	if counts["9:00 am"] != 10 || counts["9:30 am"] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if _, ok := counts["10:00 am"]; ok {
		t.Fatal("empty slots must be absent from the map")
	}
}

func TestCancelReleasesCapacity(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	id, doctorID := uuid.New(), uuid.New()
	date := mustDate(t, "2026-09-10")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "patient_id", "slot_date", "time_slot", "status"}).
			AddRow(doctorID, uuid.New(), date, "9:00 am", "Scheduled"))
	mock.ExpectExec("UPDATE appointments SET status = 'Cancelled'").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE slot_counters").WithArgs(doctorID, "2026-09-10", "9:00 am").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if err := ledger.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelAlreadyFinal(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	id := uuid.New()
	date := mustDate(t, "2026-09-10")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "patient_id", "slot_date", "time_slot", "status"}).
			AddRow(uuid.New(), uuid.New(), date, "9:00 am", "Cancelled"))
	mock.ExpectRollback()

	if err := ledger.Cancel(context.Background(), id); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
}

func TestCancelNotFound(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	if err := ledger.Cancel(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments SET status = 'Completed'").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := ledger.Complete(context.Background(), id); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
}

func TestCompleteAlreadyCancelled(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	id := uuid.New()

	mock.ExpectExec("UPDATE appointments SET status = 'Completed'").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM appointments").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("Cancelled"))

	if err := ledger.Complete(context.Background(), id); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
}

func TestReserveEnqueuesBookedEventInTransaction(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	ledger = ledger.WithOutbox(events.NewOutboxStore(mock))
	doctorID, patientID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO slot_counters").
		WithArgs(doctorID, "2026-09-10", "9:00 am", 10).
		WillReturnRows(pgxmock.NewRows([]string{"next_ordinal", "booked"}).AddRow(1, 1))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), doctorID, patientID, "2026-09-10", "9:00 am", 1, int64(50000), "Pending", "Scheduled").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	// The event row lands before the commit, so it shares the booking's fate.
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), events.TypeAppointmentBooked, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if _, _, err := ledger.Reserve(context.Background(), doctorID, patientID, "Dr. Mehta", "2026-09-10", "9:00 am", 50000); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCancelEnqueuesCancelledEventInTransaction(t *testing.T) {
	ledger, mock := newMockLedger(t, 10)
	ledger = ledger.WithOutbox(events.NewOutboxStore(mock))
	id, doctorID := uuid.New(), uuid.New()
	date := mustDate(t, "2026-09-10")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "patient_id", "slot_date", "time_slot", "status"}).
			AddRow(doctorID, uuid.New(), date, "9:00 am", "Scheduled"))
	mock.ExpectExec("UPDATE appointments SET status = 'Cancelled'").WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE slot_counters").WithArgs(doctorID, "2026-09-10", "9:00 am").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), events.TypeAppointmentCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	if err := ledger.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		t.Fatalf("bad test date %q: %v", s, err)
	}
	return d
}
