package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PatientContacts resolves patient emails from the patients table.
type PatientContacts struct {
	pool rowQuerier
}

func NewPatientContacts(pool rowQuerier) *PatientContacts {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &PatientContacts{pool: pool}
}

const getContactSQL = `
	SELECT name, email
	FROM patients
	WHERE id = $1
`

func (c *PatientContacts) GetContact(ctx context.Context, patientID string) (*Contact, error) {
	id, err := uuid.Parse(patientID)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid patient id %q: %w", patientID, err)
	}

	var contact Contact
	err = c.pool.QueryRow(ctx, getContactSQL, id).Scan(&contact.Name, &contact.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notify: load contact: %w", err)
	}
	return &contact, nil
}
