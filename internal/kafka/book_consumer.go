package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"ms-reminders/internal/config"
	"ms-reminders/internal/models"
)

// CycleRequester accepts a non-blocking nudge to run a dispatch cycle soon.
type CycleRequester interface {
	RequestCycle()
}

// BookConsumer follows the book-change feed and nudges the dispatcher when a
// reminder-enabled book is created or reconfigured, so a newly armed reminder
// does not have to wait for the next cadence tick.
type BookConsumer struct {
	Reader    *kafka.Reader
	Config    config.Config
	Requester CycleRequester
}

// NewBookConsumer creates a consumer for book change events. When the topic
// or broker is not configured the consumer is created with a nil reader and
// StartConsuming becomes a no-op.
func NewBookConsumer(cfg config.Config, requester CycleRequester) *BookConsumer {
	var reader *kafka.Reader
	if cfg.KafkaURL == "" || cfg.BooksKafkaTopic == "" {
		log.Println("Empty Kafka topic or URL provided, skipping book consumer creation")
	} else {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: []string{cfg.KafkaURL},
			Topic:   cfg.BooksKafkaTopic,
			GroupID: "reminder-service-group",
		})
	}

	return &BookConsumer{
		Reader:    reader,
		Config:    cfg,
		Requester: requester,
	}
}

// Close closes the Kafka reader
func (c *BookConsumer) Close() error {
	if c.Reader == nil {
		return nil
	}
	return c.Reader.Close()
}

// StartConsuming reads book change events until the context is cancelled.
func (c *BookConsumer) StartConsuming(ctx context.Context) error {
	if c.Reader == nil {
		log.Println("Book consumer not configured, nothing to consume")
		return nil
	}
	log.Printf("Starting book consumer for topic %s", c.Reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Context cancelled, stopping book consumer")
			return nil
		default:
			msg, err := c.Reader.ReadMessage(ctx)
			if err != nil {
				log.Printf("Error reading from Kafka: %v", err)
				continue
			}

			if err := c.processBookChange(msg.Value); err != nil {
				log.Printf("Error processing book change event: %v", err)
			}
		}
	}
}

// processBookChange handles a single CDC event from the books topic.
func (c *BookConsumer) processBookChange(value []byte) error {
	var event models.BookChangeEvent
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("Error unmarshalling book change event: %v", err)
		return err
	}

	switch event.Payload.Operation {
	case "r":
		// Snapshot reads replay existing rows; nothing changed.
		return nil
	case "d":
		// A deleted book can only shrink the due set; the next cadence tick
		// will simply not see it.
		return nil
	}

	if !event.Payload.After.ReminderEnabled {
		return nil
	}

	log.Printf("Book %s for user %s has reminders enabled, requesting dispatch cycle",
		event.Payload.After.ID, event.Payload.After.UserID)
	c.Requester.RequestCycle()

	return nil
}
