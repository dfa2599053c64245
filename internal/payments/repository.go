package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jeevancare/appointment-platform/internal/events"
)

// db is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// OrderLine is an appointment joined with its doctor for order display and
// eligibility checks.
type OrderLine struct {
	AppointmentID    uuid.UUID
	PatientID        uuid.UUID
	DoctorName       string
	DoctorSpeciality string
	Date             string
	TimeSlot         string
	FeeCents         int64
	PaymentStatus    string
	Status           string
}

// PaidAppointment identifies one appointment transitioned to Paid.
type PaidAppointment struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	FeeCents      int64
}

// txOutbox enqueues a domain event on the caller's transaction.
type txOutbox interface {
	InsertTx(ctx context.Context, tx pgx.Tx, eventType string, payload any) (uuid.UUID, error)
}

// Repository reads order lines and applies the atomic Paid transition.
type Repository struct {
	pool   db
	outbox txOutbox
}

func NewRepository(pool db) *Repository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &Repository{pool: pool}
}

// WithOutbox makes MarkPaid enqueue a paid event per updated appointment in
// the same transaction as the update, so a committed payment can never lose
// its event.
func (r *Repository) WithOutbox(outbox txOutbox) *Repository {
	r.outbox = outbox
	return r
}

const orderLinesSQL = `
	SELECT a.id, a.patient_id, d.name, d.speciality, a.slot_date, a.time_slot,
	       a.fee_cents, a.payment_status, a.status
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	WHERE a.id = ANY($1)
`

// LoadOrderLines fetches the appointments referenced by an order request.
// Unknown ids are simply absent from the result.
func (r *Repository) LoadOrderLines(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]OrderLine, error) {
	rows, err := r.pool.Query(ctx, orderLinesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("payments: load order lines: %w", err)
	}
	defer rows.Close()

	lines := make(map[uuid.UUID]OrderLine, len(ids))
	for rows.Next() {
		var line OrderLine
		var date time.Time
		if err := rows.Scan(
			&line.AppointmentID, &line.PatientID, &line.DoctorName, &line.DoctorSpeciality,
			&date, &line.TimeSlot, &line.FeeCents, &line.PaymentStatus, &line.Status,
		); err != nil {
			return nil, fmt.Errorf("payments: scan order line: %w", err)
		}
		line.Date = date.Format("2006-01-02")
		lines[line.AppointmentID] = line
	}
	return lines, rows.Err()
}

const lockForPaymentSQL = `
	SELECT id, patient_id, fee_cents
	FROM appointments
	WHERE id = ANY($1)
	FOR UPDATE
`

const markPaidSQL = `
	UPDATE appointments
	SET payment_status = 'Paid'
	WHERE id = ANY($1) AND payment_status = 'Pending'
	RETURNING id, patient_id, fee_cents
`

// MarkPaid atomically transitions every listed appointment to Paid. All rows
// are locked and ownership-checked before the update; any missing or foreign
// appointment aborts the transaction with no state change. Rows already Paid
// are skipped without error, which makes re-verification idempotent.
func (r *Repository) MarkPaid(ctx context.Context, ids []uuid.UUID, patientID uuid.UUID, orderID, paymentID string) ([]PaidAppointment, error) {
	unique := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payments: begin mark paid: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, lockForPaymentSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("payments: lock appointments: %w", err)
	}
	locked := 0
	for rows.Next() {
		var id, owner uuid.UUID
		var fee int64
		if err := rows.Scan(&id, &owner, &fee); err != nil {
			rows.Close()
			return nil, fmt.Errorf("payments: scan locked row: %w", err)
		}
		if owner != patientID {
			rows.Close()
			return nil, ErrForbidden
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payments: lock appointments: %w", err)
	}
	if locked != len(unique) {
		return nil, ErrNotFound
	}

	updated, err := tx.Query(ctx, markPaidSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("payments: mark paid: %w", err)
	}
	var paid []PaidAppointment
	for updated.Next() {
		var p PaidAppointment
		if err := updated.Scan(&p.AppointmentID, &p.PatientID, &p.FeeCents); err != nil {
			updated.Close()
			return nil, fmt.Errorf("payments: scan paid row: %w", err)
		}
		paid = append(paid, p)
	}
	updated.Close()
	if err := updated.Err(); err != nil {
		return nil, fmt.Errorf("payments: mark paid: %w", err)
	}

	if r.outbox != nil {
		for _, p := range paid {
			evt := events.AppointmentPaidV1{
				EventID:       uuid.NewString(),
				AppointmentID: p.AppointmentID.String(),
				PatientID:     p.PatientID.String(),
				OrderID:       orderID,
				PaymentID:     paymentID,
				FeeCents:      p.FeeCents,
				PaidAt:        time.Now().UTC(),
			}
			if _, err := r.outbox.InsertTx(ctx, tx, events.TypeAppointmentPaid, evt); err != nil {
				return nil, fmt.Errorf("payments: enqueue paid event: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payments: commit mark paid: %w", err)
	}
	return paid, nil
}
