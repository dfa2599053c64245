package payments

import "errors"

var (
	// ErrNoAppointments is returned for an order request with an empty id list.
	ErrNoAppointments = errors.New("payments: no appointment ids provided")
	// ErrNotFound is returned when a referenced appointment does not exist.
	ErrNotFound = errors.New("payments: appointment not found")
	// ErrForbidden is returned when an appointment belongs to another patient.
	ErrForbidden = errors.New("payments: caller does not own this appointment")
	// ErrAlreadyPaid is returned when ordering against an already-paid appointment.
	ErrAlreadyPaid = errors.New("payments: appointment already paid")
	// ErrCancelled is returned when ordering against a cancelled appointment.
	ErrCancelled = errors.New("payments: appointment is cancelled")
	// ErrSignatureMismatch is returned when the gateway proof fails HMAC
	// verification. No state is changed.
	ErrSignatureMismatch = errors.New("payments: signature mismatch")
	// ErrGateway is returned when the external gateway call fails. Retrying
	// with the same receipt id is safe.
	ErrGateway = errors.New("payments: gateway error")
)
