// Package consumer feeds events published on Kafka into the event router.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"gymBuddyFunctions/internal/types/event"
)

// Reader is the part of kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Dispatcher handles one decoded envelope.
type Dispatcher interface {
	Dispatch(context.Context, event.Envelope) error
}

type Processor struct {
	reader     Reader
	dispatcher Dispatcher
}

func NewProcessor(reader Reader, dispatcher Dispatcher) *Processor {
	return &Processor{reader: reader, dispatcher: dispatcher}
}

// NewReader builds a consumer-group reader with manual commits.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run processes messages until ctx is cancelled. A message is committed once it was
// handled or can never be handled; a retryable failure leaves it uncommitted so the
// group redelivers it after a rebalance or restart.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.WithError(err).Error("Kafka fetch failed")
			continue
		}

		fields := log.Fields{"topic": msg.Topic, "partition": msg.Partition, "offset": msg.Offset}
		env, err := decodeMessage(msg)
		if err == nil {
			err = p.dispatcher.Dispatch(ctx, env)
		}
		if err != nil && !errors.Is(err, event.ErrInvalidPayload) {
			log.WithFields(fields).WithError(err).Error("Event handling failed, leaving message uncommitted")
			continue
		}
		if err != nil {
			log.WithFields(fields).WithError(err).Warn("Committing malformed message")
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			log.WithFields(fields).WithError(err).Error("Kafka commit failed")
		}
	}
}

// decodeMessage reads the JSON envelope from the message value. The event_type header
// fills in a missing type.
func decodeMessage(msg kafka.Message) (event.Envelope, error) {
	var env event.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return env, fmt.Errorf("%w: %v", event.ErrInvalidPayload, err)
	}
	if env.Type == "" {
		if v, ok := headerValue(msg, "event_type"); ok {
			env.Type = event.Type(v)
		}
	}
	if env.Time.IsZero() {
		env.Time = msg.Time.UTC()
	}
	return env, nil
}

func headerValue(msg kafka.Message, key string) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
