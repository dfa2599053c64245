package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeevancare/appointment-platform/internal/events"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

// ContactResolver maps a patient id to a deliverable email address.
type ContactResolver interface {
	GetContact(ctx context.Context, patientID string) (*Contact, error)
}

// Contact is a patient's notification address.
type Contact struct {
	Name  string
	Email string
}

// Service formats and sends patient-facing notification emails. Every
// failure here is logged and swallowed: notifications are best-effort and
// never influence booking or payment outcomes.
type Service struct {
	email    EmailSender
	contacts ContactResolver
	baseURL  string
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, contacts ContactResolver, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, contacts: contacts, logger: logger}
}

// WithBaseURL sets the public site address used to link emails back to the
// patient's appointments page. Without it the emails name the page instead
// of linking to it.
func (s *Service) WithBaseURL(u string) *Service {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

// HandleEnvelope dispatches one queue message to the matching formatter.
// Unknown event types are skipped so new producers can roll out first.
func (s *Service) HandleEnvelope(ctx context.Context, env events.Envelope) error {
	switch env.Type {
	case events.TypeAppointmentBooked:
		var evt events.AppointmentBookedV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", env.Type, err)
		}
		return s.sendBookingConfirmation(ctx, evt)
	case events.TypeAppointmentPaid:
		var evt events.AppointmentPaidV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", env.Type, err)
		}
		return s.sendPaymentReceipt(ctx, evt)
	case events.TypeAppointmentCancelled:
		var evt events.AppointmentCancelledV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return fmt.Errorf("notify: decode %s: %w", env.Type, err)
		}
		return s.sendCancellationNotice(ctx, evt)
	default:
		s.logger.Debug("notify: skipping unknown event type", "type", env.Type, "event_id", env.EventID)
		return nil
	}
}

func (s *Service) sendBookingConfirmation(ctx context.Context, evt events.AppointmentBookedV1) error {
	contact, ok := s.resolve(ctx, evt.PatientID)
	if !ok {
		return nil
	}

	doctor := evt.DoctorName
	if doctor == "" {
		doctor = "your doctor"
	}
	payAt := "your appointments page"
	if s.baseURL != "" {
		payAt = s.baseURL + "/appointments"
	}
	subject := fmt.Sprintf("Appointment confirmed for %s at %s", formatDate(evt.Date), evt.TimeSlot)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment with %s is confirmed.\n\nDate: %s\nTime: %s\nConsultation fee: %s\n\nPlease complete the payment from %s to avoid delays at the clinic.\n\nJeevanCare",
		contact.Name, doctor, formatDate(evt.Date), evt.TimeSlot, FormatINR(evt.FeeCents), payAt,
	)
	return s.send(ctx, contact, subject, body)
}

func (s *Service) sendPaymentReceipt(ctx context.Context, evt events.AppointmentPaidV1) error {
	contact, ok := s.resolve(ctx, evt.PatientID)
	if !ok {
		return nil
	}

	subject := "Payment received for your appointment"
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your payment of %s.\n\nOrder: %s\nPayment reference: %s\n\nYour appointment is fully confirmed. See you at the clinic.\n\nJeevanCare",
		contact.Name, FormatINR(evt.FeeCents), evt.OrderID, evt.PaymentID,
	)
	return s.send(ctx, contact, subject, body)
}

func (s *Service) sendCancellationNotice(ctx context.Context, evt events.AppointmentCancelledV1) error {
	contact, ok := s.resolve(ctx, evt.PatientID)
	if !ok {
		return nil
	}

	subject := "Your appointment has been cancelled"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour appointment has been cancelled as requested. The slot has been released.\n\nIf this was a mistake you can book again from the doctors page.\n\nJeevanCare",
		contact.Name,
	)
	return s.send(ctx, contact, subject, body)
}

func (s *Service) resolve(ctx context.Context, patientID string) (*Contact, bool) {
	if s.contacts == nil {
		s.logger.Debug("notify: contact resolver not configured, skipping")
		return nil, false
	}
	contact, err := s.contacts.GetContact(ctx, patientID)
	if err != nil {
		s.logger.Error("notify: contact lookup failed", "error", err, "patient_id", patientID)
		return nil, false
	}
	if contact == nil || contact.Email == "" {
		s.logger.Debug("notify: no email on file", "patient_id", patientID)
		return nil, false
	}
	if contact.Name == "" {
		contact.Name = "there"
	}
	return contact, true
}

func (s *Service) send(ctx context.Context, contact *Contact, subject, body string) error {
	if s.email == nil {
		return nil
	}
	err := s.email.Send(ctx, EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logger.Error("notify: email send failed", "error", err, "to", contact.Email)
		return err
	}
	return nil
}

// FormatINR renders a paise amount as rupees, e.g. 50000 -> "₹500.00".
func FormatINR(cents int64) string {
	return fmt.Sprintf("₹%.2f", float64(cents)/100)
}

func formatDate(date string) string {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return parsed.Format("Monday, 2 January 2006")
}
