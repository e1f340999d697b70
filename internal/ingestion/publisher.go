package ingestion

import (
	"TokenLedger/internal/core"
	"TokenLedger/internal/event"
	"TokenLedger/internal/observability"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// EventSubjectPrefix is the subject namespace for outbound events:
// token.ledger.events.{EventType}.
const EventSubjectPrefix = "token.ledger.events."

// EventPublisher is the subset of jetstream.JetStream used for publishing.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// OutboundPublisher publishes domain events to NATS after their envelope
// has been committed to the event log.
type OutboundPublisher struct {
	js        EventPublisher
	inputChan chan core.CoreOutput
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// PublishedEvent is the outbound message body.
type PublishedEvent struct {
	Sequence  int64           `json:"sequence"`
	RequestID string          `json:"request_id"`
	Index     int             `json:"index"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	StateHash string          `json:"state_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js EventPublisher, bufferSize int, metrics *observability.Metrics, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: make(chan core.CoreOutput, bufferSize),
		metrics:   metrics,
		logger:    logger,
	}
}

// Offer queues committed outputs without blocking. Outputs that do not fit
// are dropped and counted; consumers can read the event log instead.
func (op *OutboundPublisher) Offer(outs []core.CoreOutput) {
	for _, out := range outs {
		select {
		case op.inputChan <- out:
		default:
			if op.metrics != nil {
				op.metrics.PublishDrops.Inc()
			}
		}
	}
	if op.metrics != nil {
		op.metrics.SetChannelMetrics("publish", len(op.inputChan), cap(op.inputChan))
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out := <-op.inputChan:
			if err := op.Publish(ctx, out); err != nil {
				op.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
		}
	}
}

// Drain publishes whatever is queued without waiting for more, and
// returns how many envelopes it handled. Used on shutdown.
func (op *OutboundPublisher) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case out := <-op.inputChan:
			if err := op.Publish(ctx, out); err != nil {
				op.logger.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("outbound publish failed")
			}
			n++
		default:
			return n
		}
	}
}

// Publish sends every event of one envelope. The message id is
// sequence-index, so JetStream drops republished duplicates.
func (op *OutboundPublisher) Publish(ctx context.Context, out core.CoreOutput) error {
	env := out.Envelope
	for i, e := range env.Events {
		rec, err := event.Encode(e)
		if err != nil {
			return err
		}

		data, err := json.Marshal(PublishedEvent{
			Sequence:  env.Sequence,
			RequestID: env.RequestID,
			Index:     i,
			Type:      rec.Type,
			Data:      rec.Data,
			StateHash: "0x" + hex.EncodeToString(env.StateHash[:]),
			Timestamp: env.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		msgID := fmt.Sprintf("%d-%d", env.Sequence, i)
		if _, err := op.js.Publish(ctx, EventSubjectPrefix+rec.Type, data, jetstream.WithMsgID(msgID)); err != nil {
			return fmt.Errorf("publish %s: %w", msgID, err)
		}
		if op.metrics != nil {
			op.metrics.EventsPublished.WithLabelValues(rec.Type).Inc()
		}
	}
	return nil
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream, logger zerolog.Logger) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       "TOKEN_LEDGER_EVENTS",
		Subjects:   []string{EventSubjectPrefix + ">"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	logger.Info().Str("stream", "TOKEN_LEDGER_EVENTS").Msg("ensured outbound stream")
	return nil
}
