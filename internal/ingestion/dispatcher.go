package ingestion

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/observability"
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Processor applies commands. *core.Engine implements it.
type Processor interface {
	Process(cmd command.Command) (*core.Receipt, error)
}

// Outcome of a dispatched message, also the metrics label.
const (
	OutcomeApplied    = "applied"
	OutcomeDuplicate  = "duplicate"
	OutcomeRejected   = "rejected"
	OutcomeParseError = "parse_error"
	OutcomeFailed     = "failed"
)

// Dispatcher drains raw NATS messages, decodes them and applies them to the
// engine in arrival order.
//
// Acknowledgement policy: applied, duplicate and domain-rejected commands
// are acked since their outcome is final; undecodable messages are
// terminated; anything else is nak'd for redelivery.
type Dispatcher struct {
	proc    Processor
	rawChan <-chan RawCommand
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewDispatcher(proc Processor, rawChan <-chan RawCommand, metrics *observability.Metrics, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{proc: proc, rawChan: rawChan, metrics: metrics, logger: logger}
}

// Run blocks until ctx is cancelled or rawChan is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-d.rawChan:
			if !ok {
				return nil
			}
			d.Handle(raw)
		}
	}
}

// Handle processes one message and settles it. It returns the outcome.
func (d *Dispatcher) Handle(raw RawCommand) string {
	cmd, err := ParseRawCommand(raw)
	if err != nil {
		d.logger.Warn().Err(err).Str("subject", raw.Subject).Msg("dropping malformed command")
		d.count("unknown", OutcomeParseError)
		settle(raw.Term)
		return OutcomeParseError
	}

	cmdType := cmd.CommandType().String()
	receipt, err := d.proc.Process(cmd)
	if d.metrics != nil && !raw.Received.IsZero() {
		d.metrics.IngestToApply.WithLabelValues(cmdType).Observe(time.Since(raw.Received).Seconds())
	}

	var outcome string
	switch {
	case err == nil && receipt.Duplicate:
		outcome = OutcomeDuplicate
		settle(raw.Ack)
	case err == nil:
		outcome = OutcomeApplied
		settle(raw.Ack)
	case fault.IsDomain(err):
		outcome = OutcomeRejected
		d.logger.Info().Err(err).Str("request_id", cmd.RequestID()).Str("command", cmdType).Msg("command rejected")
		settle(raw.Ack)
	default:
		outcome = OutcomeFailed
		d.logger.Error().Err(err).Str("request_id", cmd.RequestID()).Str("command", cmdType).Msg("command failed")
		settle(raw.Nak)
	}

	d.count(cmdType, outcome)
	return outcome
}

func (d *Dispatcher) count(cmdType, outcome string) {
	if d.metrics != nil {
		d.metrics.NATSMessages.WithLabelValues(cmdType, outcome).Inc()
	}
}

func settle(fn func()) {
	if fn != nil {
		fn()
	}
}
