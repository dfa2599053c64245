package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeevancare/appointment-platform/internal/observability/metrics"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

var paymentsTracer = otel.Tracer("jeevancare.internal.payments")

// Currency is the only settlement currency the gateway account accepts.
const Currency = "INR"

// OrderItem is the per-appointment display summary returned to the client.
type OrderItem struct {
	AppointmentID    string `json:"appointmentId"`
	DoctorName       string `json:"doctorName"`
	DoctorSpeciality string `json:"doctorSpeciality"`
	Date             string `json:"date"`
	TimeSlot         string `json:"timeSlot"`
	FeeCents         int64  `json:"feeCents"`
}

// Order is a transient payable order; nothing here is persisted.
type Order struct {
	OrderID     string      `json:"orderId"`
	AmountCents int64       `json:"amountCents"`
	Currency    string      `json:"currency"`
	ReceiptID   string      `json:"receiptId"`
	Items       []OrderItem `json:"items"`
}

type orderLineLoader interface {
	LoadOrderLines(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]OrderLine, error)
}

// OrderService aggregates pending appointments into one payable gateway order.
type OrderService struct {
	repo    orderLineLoader
	gateway Gateway
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

func NewOrderService(repo *Repository, gateway Gateway, m *metrics.BookingMetrics, logger *logging.Logger) *OrderService {
	if gateway == nil {
		panic("payments: gateway required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OrderService{repo: repo, gateway: gateway, metrics: m, logger: logger}
}

func newOrderServiceWithLoader(repo orderLineLoader, gateway Gateway, m *metrics.BookingMetrics, logger *logging.Logger) *OrderService {
	if logger == nil {
		logger = logging.Default()
	}
	return &OrderService{repo: repo, gateway: gateway, metrics: m, logger: logger}
}

// Create validates every appointment, sums the fee snapshots, and asks the
// gateway for an order. The amount is computed from the stored snapshots, so
// later fee changes in the doctor directory cannot move an order's total.
func (s *OrderService) Create(ctx context.Context, appointmentIDs []uuid.UUID, patientID uuid.UUID) (*Order, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.create_order")
	defer span.End()
	span.SetAttributes(attribute.Int("jeevancare.appointment_count", len(appointmentIDs)))

	if len(appointmentIDs) == 0 {
		s.metrics.ObserveOrder("invalid_input")
		return nil, ErrNoAppointments
	}

	lines, err := s.repo.LoadOrderLines(ctx, appointmentIDs)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveOrder("error")
		return nil, err
	}

	var total int64
	items := make([]OrderItem, 0, len(appointmentIDs))
	seen := make(map[uuid.UUID]struct{}, len(appointmentIDs))
	for _, id := range appointmentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		line, ok := lines[id]
		if !ok {
			s.metrics.ObserveOrder("not_found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if line.PatientID != patientID {
			s.metrics.ObserveOrder("forbidden")
			return nil, ErrForbidden
		}
		if line.PaymentStatus == "Paid" {
			s.metrics.ObserveOrder("already_paid")
			return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, id)
		}
		if line.Status == "Cancelled" {
			s.metrics.ObserveOrder("cancelled")
			return nil, fmt.Errorf("%w: %s", ErrCancelled, id)
		}

		total += line.FeeCents
		items = append(items, OrderItem{
			AppointmentID:    id.String(),
			DoctorName:       line.DoctorName,
			DoctorSpeciality: line.DoctorSpeciality,
			Date:             line.Date,
			TimeSlot:         line.TimeSlot,
			FeeCents:         line.FeeCents,
		})
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.AppointmentID)
	}
	receiptID := receiptIDFor(ids)
	orderID, err := s.gateway.CreateOrder(ctx, CreateOrderParams{
		AmountCents: total,
		Currency:    Currency,
		ReceiptID:   receiptID,
		Notes: map[string]string{
			"appointment_ids": strings.Join(ids, ","),
			"patient_id":      patientID.String(),
		},
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveOrder("gateway_error")
		return nil, err
	}

	s.metrics.ObserveOrder("success")
	s.logger.Info("payment order created",
		"order_id", orderID,
		"receipt_id", receiptID,
		"amount_cents", total,
		"appointments", len(items),
	)
	return &Order{
		OrderID:     orderID,
		AmountCents: total,
		Currency:    Currency,
		ReceiptID:   receiptID,
		Items:       items,
	}, nil
}

// receiptIDFor derives the receipt from the sorted appointment-id set, so a
// retry after a gateway failure reuses the same idempotency key. The gateway
// caps receipts at 40 characters.
func receiptIDFor(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return "rcpt_" + hex.EncodeToString(sum[:16])
}
