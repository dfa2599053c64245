package payments

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeevancare/appointment-platform/internal/observability/metrics"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

type paymentMarker interface {
	MarkPaid(ctx context.Context, ids []uuid.UUID, patientID uuid.UUID, orderID, paymentID string) ([]PaidAppointment, error)
}

// VerifyRequest carries the gateway callback fields plus the appointments the
// client is settling.
type VerifyRequest struct {
	OrderID        string
	PaymentID      string
	Signature      string
	AppointmentIDs []uuid.UUID
}

// Verifier checks gateway signatures and transitions appointments to Paid.
// Paid events are enqueued by the repository inside the update transaction.
type Verifier struct {
	repo    paymentMarker
	secret  string
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewVerifier(repo *Repository, secret string, m *metrics.BookingMetrics, logger *logging.Logger) *Verifier {
	return newVerifierWithMarker(repo, secret, m, logger)
}

func newVerifierWithMarker(repo paymentMarker, secret string, m *metrics.BookingMetrics, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Verifier{repo: repo, secret: secret, metrics: m, logger: logger}
}

// Verify authenticates the callback and marks the listed appointments paid.
// A bad signature performs no writes. Re-verifying an already settled order
// succeeds with an updated count of zero.
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest, patientID uuid.UUID) (int, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.verify")
	defer span.End()
	span.SetAttributes(attribute.String("jeevancare.order_id", req.OrderID))

	if len(req.AppointmentIDs) == 0 {
		v.metrics.ObserveVerify("invalid_input", 0)
		return 0, ErrNoAppointments
	}

	if !VerifySignature(v.secret, req.OrderID, req.PaymentID, req.Signature) {
		v.metrics.ObserveVerify("signature_mismatch", 0)
		v.logger.Warn("payment signature mismatch",
			"order_id", req.OrderID,
			"payment_id", req.PaymentID,
			"patient_id", patientID,
		)
		return 0, ErrSignatureMismatch
	}

	paid, err := v.repo.MarkPaid(ctx, req.AppointmentIDs, patientID, req.OrderID, req.PaymentID)
	if err != nil {
		span.RecordError(err)
		v.metrics.ObserveVerify("error", 0)
		return 0, err
	}

	v.metrics.ObserveVerify("success", len(paid))
	v.logger.Info("payment verified",
		"order_id", req.OrderID,
		"payment_id", req.PaymentID,
		"updated", len(paid),
	)
	return len(paid), nil
}
