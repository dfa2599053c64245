package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeevancare/appointment-platform/internal/events"
)

// db is the subset of pgxpool.Pool the ledger uses; pgxmock satisfies it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// txOutbox enqueues a domain event on the caller's transaction.
type txOutbox interface {
	InsertTx(ctx context.Context, tx pgx.Tx, eventType string, payload any) (uuid.UUID, error)
}

// Ledger is the durable appointment store. Capacity and uniqueness are
// enforced inside the database transaction, never by a read-then-write in
// application code: the slot counter row is the serialization point for a
// (doctor, date, time-slot) triple, and a partial unique index rejects a
// second non-cancelled booking by the same patient.
type Ledger struct {
	pool     db
	outbox   txOutbox
	capacity int
}

// NewLedger creates a ledger with the given per-slot capacity.
func NewLedger(pool db, capacity int) *Ledger {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	if capacity <= 0 {
		panic("appointments: slot capacity must be positive")
	}
	return &Ledger{pool: pool, capacity: capacity}
}

// WithOutbox makes Reserve and Cancel enqueue their domain events in the
// same transaction as the write, so a committed booking can never lose its
// event.
func (l *Ledger) WithOutbox(outbox txOutbox) *Ledger {
	l.outbox = outbox
	return l
}

// Capacity returns the configured per-slot booking capacity.
func (l *Ledger) Capacity() int {
	return l.capacity
}

const reserveCounterSQL = `
	INSERT INTO slot_counters (doctor_id, slot_date, time_slot, booked, next_ordinal)
	VALUES ($1, $2, $3, 1, 1)
	ON CONFLICT (doctor_id, slot_date, time_slot) DO UPDATE
	SET booked = slot_counters.booked + 1,
	    next_ordinal = slot_counters.next_ordinal + 1
	WHERE slot_counters.booked < $4
	RETURNING next_ordinal, booked
`

const insertAppointmentSQL = `
	INSERT INTO appointments
		(id, doctor_id, patient_id, slot_date, time_slot, slot_ordinal, fee_cents, payment_status, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at
`

const activeBookingSQL = `
	SELECT id FROM appointments
	WHERE doctor_id = $1 AND patient_id = $2 AND slot_date = $3 AND time_slot = $4
	  AND status <> 'Cancelled'
`

// Reserve books one slot position inside a single transaction and reports
// the slot's booked count after admission. The counter upsert only succeeds
// while booked < capacity, so concurrent callers can never admit more than
// capacity bookings; a unique-violation on the insert rolls the counter
// increment back and surfaces as a duplicate booking. The ordinal is never
// reused after a cancellation, so booked, not the ordinal, is the live
// occupancy of the slot.
func (l *Ledger) Reserve(ctx context.Context, doctorID, patientID uuid.UUID, doctorName, date, timeSlot string, feeCents int64) (*Appointment, int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("appointments: begin reserve: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ordinal, booked int
	err = tx.QueryRow(ctx, reserveCounterSQL, doctorID, date, timeSlot, l.capacity).Scan(&ordinal, &booked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, &CapacityExceededError{Booked: l.capacity, Capacity: l.capacity}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("appointments: reserve counter: %w", err)
	}

	appt := Appointment{
		ID:            uuid.New(),
		DoctorID:      doctorID,
		PatientID:     patientID,
		Date:          date,
		TimeSlot:      timeSlot,
		SlotOrdinal:   ordinal,
		FeeCents:      feeCents,
		PaymentStatus: PaymentPending,
		Status:        StatusScheduled,
	}
	err = tx.QueryRow(ctx, insertAppointmentSQL,
		appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.TimeSlot,
		appt.SlotOrdinal, appt.FeeCents, string(appt.PaymentStatus), string(appt.Status),
	).Scan(&appt.CreatedAt)
	if isUniqueViolation(err) {
		_ = tx.Rollback(ctx)
		var existing uuid.UUID
		if lookupErr := l.pool.QueryRow(ctx, activeBookingSQL, doctorID, patientID, date, timeSlot).Scan(&existing); lookupErr != nil {
			return nil, 0, fmt.Errorf("appointments: duplicate booking lookup: %w", lookupErr)
		}
		return nil, 0, &DuplicateBookingError{ExistingID: existing}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("appointments: insert: %w", err)
	}

	if l.outbox != nil {
		evt := events.AppointmentBookedV1{
			EventID:       uuid.NewString(),
			AppointmentID: appt.ID.String(),
			DoctorID:      doctorID.String(),
			DoctorName:    doctorName,
			PatientID:     patientID.String(),
			Date:          appt.Date,
			TimeSlot:      appt.TimeSlot,
			SlotOrdinal:   appt.SlotOrdinal,
			FeeCents:      appt.FeeCents,
			BookedAt:      time.Now().UTC(),
		}
		if _, err := l.outbox.InsertTx(ctx, tx, events.TypeAppointmentBooked, evt); err != nil {
			return nil, 0, fmt.Errorf("appointments: enqueue booked event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("appointments: commit reserve: %w", err)
	}
	return &appt, booked, nil
}

const slotCountsSQL = `
	SELECT time_slot, COUNT(*)
	FROM appointments
	WHERE doctor_id = $1 AND slot_date = $2 AND status <> 'Cancelled'
	GROUP BY time_slot
`

// SlotCounts returns the number of non-cancelled bookings per time slot for
// a doctor/date. Slots with zero bookings are absent from the map.
func (l *Ledger) SlotCounts(ctx context.Context, doctorID uuid.UUID, date string) (map[string]int, error) {
	rows, err := l.pool.Query(ctx, slotCountsSQL, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: slot counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, fmt.Errorf("appointments: scan slot count: %w", err)
		}
		counts[slot] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: slot counts: %w", err)
	}
	return counts, nil
}

const appointmentColumns = `
	id, doctor_id, patient_id, slot_date, time_slot, slot_ordinal,
	fee_cents, payment_status, status, created_at
`

const getAppointmentSQL = `
	SELECT ` + appointmentColumns + `
	FROM appointments
	WHERE id = $1
`

// GetByID loads one appointment.
func (l *Ledger) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := scanAppointment(l.pool.QueryRow(ctx, getAppointmentSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load by id: %w", err)
	}
	return appt, nil
}

const listForPatientSQL = `
	SELECT ` + appointmentColumns + `
	FROM appointments
	WHERE patient_id = $1
	ORDER BY slot_date DESC, time_slot ASC
`

// ListForPatient returns a patient's bookings, newest date first.
func (l *Ledger) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := l.pool.Query(ctx, listForPatientSQL, patientID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list for patient: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan listing: %w", err)
		}
		appts = append(appts, *appt)
	}
	return appts, rows.Err()
}

const lockAppointmentSQL = `
	SELECT doctor_id, patient_id, slot_date, time_slot, status
	FROM appointments
	WHERE id = $1
	FOR UPDATE
`

const releaseCounterSQL = `
	UPDATE slot_counters
	SET booked = booked - 1
	WHERE doctor_id = $1 AND slot_date = $2 AND time_slot = $3 AND booked > 0
`

// Cancel moves a Scheduled appointment to Cancelled and frees its capacity.
// The slot ordinal is not reused; only the booked counter is decremented.
func (l *Ledger) Cancel(ctx context.Context, id uuid.UUID) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin cancel: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var doctorID, patientID uuid.UUID
	var date time.Time
	var slot, status string
	err = tx.QueryRow(ctx, lockAppointmentSQL, id).Scan(&doctorID, &patientID, &date, &slot, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: lock for cancel: %w", err)
	}
	if Status(status) != StatusScheduled {
		return ErrAlreadyFinal
	}

	if _, err := tx.Exec(ctx, `UPDATE appointments SET status = 'Cancelled' WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: cancel: %w", err)
	}
	if _, err := tx.Exec(ctx, releaseCounterSQL, doctorID, date.Format(DateLayout), slot); err != nil {
		return fmt.Errorf("appointments: release counter: %w", err)
	}

	if l.outbox != nil {
		evt := events.AppointmentCancelledV1{
			EventID:       uuid.NewString(),
			AppointmentID: id.String(),
			PatientID:     patientID.String(),
			CancelledAt:   time.Now().UTC(),
		}
		if _, err := l.outbox.InsertTx(ctx, tx, events.TypeAppointmentCancelled, evt); err != nil {
			return fmt.Errorf("appointments: enqueue cancelled event: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// Complete moves a Scheduled appointment to Completed. Capacity is not
// released: the visit happened.
func (l *Ledger) Complete(ctx context.Context, id uuid.UUID) error {
	ct, err := l.pool.Exec(ctx, `UPDATE appointments SET status = 'Completed' WHERE id = $1 AND status = 'Scheduled'`, id)
	if err != nil {
		return fmt.Errorf("appointments: complete: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var status string
	err = l.pool.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("appointments: complete status check: %w", err)
	}
	return ErrAlreadyFinal
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	var date time.Time
	var paymentStatus, status string
	err := row.Scan(
		&appt.ID, &appt.DoctorID, &appt.PatientID, &date, &appt.TimeSlot,
		&appt.SlotOrdinal, &appt.FeeCents, &paymentStatus, &status, &appt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.Date = date.Format(DateLayout)
	appt.PaymentStatus = PaymentStatus(paymentStatus)
	appt.Status = Status(status)
	return &appt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
