package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jeevancare/appointment-platform/internal/identity"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// Handler exposes the order creation and verification endpoints.
type Handler struct {
	orders   *OrderService
	verifier *Verifier
	keyID    string
	logger   *logging.Logger
}

func NewHandler(orders *OrderService, verifier *Verifier, keyID string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{orders: orders, verifier: verifier, keyID: keyID, logger: logger}
}

type createOrderRequest struct {
	AppointmentIDs []string `json:"appointmentIds"`
}

// CreateOrder handles POST /api/payments/order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ids, err := parseIDs(req.AppointmentIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	order, err := h.orders.Create(r.Context(), ids, patientID)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

type verifyRequest struct {
	OrderID        string   `json:"razorpayOrderId"`
	PaymentID      string   `json:"razorpayPaymentId"`
	Signature      string   `json:"razorpaySignature"`
	AppointmentIDs []string `json:"appointmentIds"`
}

// Verify handles POST /api/payments/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	patientID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "orderId, paymentId and signature are required")
		return
	}
	ids, err := parseIDs(req.AppointmentIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	updated, err := h.verifier.Verify(r.Context(), VerifyRequest{
		OrderID:        req.OrderID,
		PaymentID:      req.PaymentID,
		Signature:      req.Signature,
		AppointmentIDs: ids,
	}, patientID)
	if err != nil {
		h.writePaymentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "verified",
		"updatedCount": updated,
	})
}

// Key handles GET /api/payments/key. The checkout widget needs the public
// key id; the secret never leaves the server.
func (h *Handler) Key(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"keyId": h.keyID})
}

func (h *Handler) writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoAppointments):
		writeError(w, http.StatusBadRequest, "at least one appointment is required")
	case errors.Is(err, ErrSignatureMismatch):
		writeError(w, http.StatusBadRequest, "payment signature verification failed")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "you are not authorized for these appointments")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, ErrCancelled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrGateway):
		h.logger.Error("payment gateway call failed", "error", err)
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		h.logger.Error("payment request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing caller identity")
		return uuid.Nil, false
	}
	patientID, err := uuid.Parse(principal.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid caller identity")
		return uuid.Nil, false
	}
	return patientID, true
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
