// Package dispatch implements the delivery pipeline that takes accepted
// notification requests to a terminal state: idempotency admission, the
// per-channel rate gate, asynchronous send attempts through channel
// adapters, and retry scheduling with exponential backoff.
package dispatch

import (
	"context"

	"notify-dispatch/internal/domain/entity"
)

// ChannelAdapter is a single provider integration (Twilio SMS or WhatsApp,
// SMTP email). Implementations translate one Envelope into one vendor call
// and classify every failure before returning it.
//
// Contract:
//   - Send performs at most one vendor call per invocation; the dispatcher
//     owns all retrying.
//   - Failures are returned as errors wrapping *ClassifiedError. Errors
//     without a classification are treated as ErrorClassUnknown and retried
//     like transient ones.
//   - Implementations never panic across this boundary and must be safe
//     for concurrent use.
//
// Context Handling:
//   - Send must respect cancellation and deadline; the dispatcher bounds
//     every call with the channel's send timeout.
type ChannelAdapter interface {
	// Channel returns the channel this adapter serves. Used to route
	// envelopes and label logs and metrics.
	Channel() entity.Channel

	// Ready reports whether the adapter accepts sends right now.
	// It returns false while the provider circuit breaker is open, and
	// the dispatcher defers attempts instead of burning retry budget.
	Ready() bool

	// Send performs exactly one vendor call for the envelope and returns
	// the provider-assigned message id on success.
	Send(ctx context.Context, env entity.Envelope) (SendResult, error)
}

// SendResult is the successful outcome of one adapter call.
type SendResult struct {
	// ProviderMessageID is the vendor-assigned identifier of the accepted
	// message, recorded on the delivery for cross-system correlation.
	ProviderMessageID string
}
