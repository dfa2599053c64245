package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/jeevancare/appointment-platform/internal/events"
	"github.com/jeevancare/appointment-platform/pkg/logging"
)

type queueAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Worker long-polls the notification queue and hands each envelope to the
// service. A message is deleted only after the handler succeeds; failed
// messages reappear after the visibility timeout.
type Worker struct {
	client      queueAPI
	queueURL    string
	svc         *Service
	logger      *logging.Logger
	maxMessages int32
	waitSeconds int32
}

func NewWorker(client *sqs.Client, queueURL string, svc *Service, logger *logging.Logger) *Worker {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return newWorkerWithAPI(client, queueURL, svc, logger)
}

func newWorkerWithAPI(client queueAPI, queueURL string, svc *Service, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		client:      client,
		queueURL:    queueURL,
		svc:         svc,
		logger:      logger,
		maxMessages: 10,
		waitSeconds: 20,
	}
}

// Run consumes the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("notify worker started", "queue_url", w.queueURL)
	for {
		if ctx.Err() != nil {
			w.logger.Info("notify worker stopping")
			return
		}
		if err := w.poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("notify worker poll failed", "error", err)
			// Back off so a broken queue does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (w *Worker) poll(ctx context.Context) error {
	output, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: w.maxMessages,
		WaitTimeSeconds:     w.waitSeconds,
	})
	if err != nil {
		return fmt.Errorf("notify: receive messages: %w", err)
	}

	for _, msg := range output.Messages {
		var env events.Envelope
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &env); err != nil {
			w.logger.Error("notify: malformed queue message, dropping",
				"error", err, "message_id", aws.ToString(msg.MessageId))
			w.delete(ctx, msg.ReceiptHandle)
			continue
		}

		if err := w.svc.HandleEnvelope(ctx, env); err != nil {
			w.logger.Error("notify: handling failed, message will retry",
				"error", err, "event_id", env.EventID, "type", env.Type)
			continue
		}
		w.delete(ctx, msg.ReceiptHandle)
	}
	return nil
}

func (w *Worker) delete(ctx context.Context, receiptHandle *string) {
	if aws.ToString(receiptHandle) == "" {
		return
	}
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		w.logger.Error("notify: failed to delete message", "error", err)
	}
}
