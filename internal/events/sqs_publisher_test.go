package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
)

type fakeSQS struct {
	sent []sqs.SendMessageInput
	err  error
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, *params)
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSPublisherWrapsEntryInEnvelope(t *testing.T) {
	fake := &fakeSQS{}
	pub := newSQSPublisherWithAPI(fake, "https://sqs.test/notify")

	entry := OutboxEntry{
		ID:      uuid.New(),
		Type:    TypeAppointmentPaid,
		Payload: json.RawMessage(`{"appointment_id":"a-1"}`),
	}
	if err := pub.Handle(context.Background(), entry); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(fake.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.sent))
	}
	if got := aws.ToString(fake.sent[0].QueueUrl); got != "https://sqs.test/notify" {
		t.Fatalf("unexpected queue url %s", got)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(aws.ToString(fake.sent[0].MessageBody)), &env); err != nil {
		t.Fatalf("body is not an envelope: %v", err)
	}
	if env.Type != TypeAppointmentPaid || env.EventID != entry.ID.String() {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestSQSPublisherPropagatesSendFailure(t *testing.T) {
	fake := &fakeSQS{err: errors.New("throttled")}
	pub := newSQSPublisherWithAPI(fake, "https://sqs.test/notify")

	err := pub.Handle(context.Background(), OutboxEntry{ID: uuid.New(), Type: TypeAppointmentBooked})
	if err == nil {
		t.Fatal("expected error from send failure")
	}
}
