package doctors

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned for unknown doctor ids.
var ErrNotFound = errors.New("doctors: not found")

// Doctor is the read-only directory record consulted at booking time. The
// booking core never mutates it; FeeCents is snapshotted onto appointments.
type Doctor struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Speciality string    `json:"speciality"`
	FeeCents   int64     `json:"feeCents"`
	Available  bool      `json:"available"`
}

// Directory is the read-only source of doctor fee and availability.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads doctor records from Postgres.
type Repository struct {
	pool rowQuerier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	return &Repository{pool: q}
}

const getDoctorSQL = `
	SELECT id, name, speciality, fee_cents, available
	FROM doctors
	WHERE id = $1
`

// GetByID loads one doctor record.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.pool.QueryRow(ctx, getDoctorSQL, id).Scan(&d.ID, &d.Name, &d.Speciality, &d.FeeCents, &d.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: load by id: %w", err)
	}
	return &d, nil
}
