package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"ms-reminders/internal/config"
	"ms-reminders/internal/dispatch"
	"ms-reminders/internal/models"
	"ms-reminders/internal/sqsutil"
)

// ActionRunCycle is the only action the trigger queue carries.
const ActionRunCycle = "RUN_CYCLE"

// CycleRunner runs one dispatch cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (int, error)
}

// Processor consumes run-cycle trigger messages from SQS. An external
// time-based scheduler (EventBridge) is the producer; each message asks for
// exactly one dispatch cycle.
type Processor struct {
	sqsClient *sqs.Client
	cfg       config.Config
	queueURL  string
	runner    CycleRunner
}

// NewProcessor creates a new trigger processor
func NewProcessor(sqsClient *sqs.Client, cfg config.Config, runner CycleRunner) *Processor {
	return &Processor{
		sqsClient: sqsClient,
		cfg:       cfg,
		queueURL:  cfg.SQSReminderTriggerURL,
		runner:    runner,
	}
}

// ProcessMessages processes messages from the trigger queue until the
// context is cancelled.
func (p *Processor) ProcessMessages(ctx context.Context) error {
	if p.queueURL == "" {
		return fmt.Errorf("trigger queue URL not configured")
	}

	log.Printf("Starting to process trigger messages from %s", p.queueURL)

	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, stopping trigger processor")
			return ctx.Err()
		default:
			// Continue processing
		}

		rawMessages, err := sqsutil.ReceiveMessages(ctx, p.sqsClient, p.queueURL)
		if err != nil {
			log.Printf("Error receiving messages from trigger SQS queue: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if len(rawMessages) == 0 {
			continue // Long polling already waited
		}

		log.Printf("Received %d messages from trigger queue.", len(rawMessages))
		var messagesToDelete []types.DeleteMessageBatchRequestEntry

		for _, rawMessage := range rawMessages {
			var messageBody models.SQSTriggerMessageBody
			if err := json.Unmarshal([]byte(*rawMessage.Body), &messageBody); err != nil {
				log.Printf("Error unmarshalling trigger message body, will delete malformed message: %v", err)
				messagesToDelete = append(messagesToDelete, types.DeleteMessageBatchRequestEntry{
					Id:            rawMessage.MessageId,
					ReceiptHandle: rawMessage.ReceiptHandle,
				})
				continue
			}

			err := p.processTriggerMessage(ctx, &messageBody)
			if err != nil {
				log.Printf("Error running triggered cycle, it will be retried: %v", err)
				// Not added to the delete batch; the message becomes visible
				// again on the queue for another attempt.
			} else {
				messagesToDelete = append(messagesToDelete, types.DeleteMessageBatchRequestEntry{
					Id:            rawMessage.MessageId,
					ReceiptHandle: rawMessage.ReceiptHandle,
				})
			}
		}

		if len(messagesToDelete) > 0 {
			if err := sqsutil.DeleteMessageBatch(ctx, p.sqsClient, p.queueURL, messagesToDelete); err != nil {
				log.Printf("Error batch deleting trigger messages: %v", err)
			}
		}
	}
}

// processTriggerMessage runs one cycle for a RUN_CYCLE message. Unknown
// actions are consumed without effect; an already-running cycle makes the
// trigger inert (the ledger handles the rest).
func (p *Processor) processTriggerMessage(ctx context.Context, msg *models.SQSTriggerMessageBody) error {
	if msg.Action != ActionRunCycle {
		log.Printf("Unknown trigger action: %s, skipping. Full message: %+v", msg.Action, msg)
		return nil
	}

	attempted, err := p.runner.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, dispatch.ErrCycleRunning) {
			log.Println("Trigger arrived while a cycle was running, treating as handled")
			return nil
		}
		return fmt.Errorf("triggered dispatch cycle failed: %w", err)
	}

	log.Printf("Triggered dispatch cycle completed with %d attempted sends (source: %s)", attempted, msg.Source)
	return nil
}
