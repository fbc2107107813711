package broker

import (
	"strconv"
	"time"
)

// Headers set on messages that are retried or dead-lettered.
const (
	// RetryCountHeader counts how many times a message has already failed.
	RetryCountHeader = "x-retry-count"

	// OriginalExchangeHeader and OriginalRoutingKeyHeader record where a
	// message was first published. Retries travel through the default
	// exchange, so the delivery itself no longer carries them.
	OriginalExchangeHeader   = "x-original-exchange"
	OriginalRoutingKeyHeader = "x-original-routing-key"

	FailureReasonHeader = "x-failure-reason"
)

// RetryPolicy decides what happens to a message whose handler failed.
//
// The zero value requeues forever: the message goes back to the queue and
// is redelivered until a handler accepts it. With MaxAttempts set, a failed
// message is republished to its queue with an incremented retry counter,
// and once the attempts are used up it is routed to DeadLetterExchange, or
// rejected without requeue when no dead-letter exchange is configured.
type RetryPolicy struct {
	// MaxAttempts is the total number of handler invocations allowed.
	// Zero means unlimited.
	MaxAttempts int

	// Backoff is the delay before the first retry; it doubles on every
	// further attempt up to MaxBackoff. Unlimited policies wait Backoff
	// before every requeue and hold the delivery unacked meanwhile.
	Backoff    time.Duration
	MaxBackoff time.Duration

	DeadLetterExchange string

	// DeadLetterRoutingKey overrides the routing key used when dead
	// lettering. Empty keeps the original key.
	DeadLetterRoutingKey string
}

// Unlimited reports whether the policy never gives up on a message.
func (p RetryPolicy) Unlimited() bool { return p.MaxAttempts <= 0 }

// Delay is how long to wait before retrying after the given attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff <= 0 || attempt < 1 {
		return 0
	}

	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Exhausted reports whether a message that just failed its attempt-th
// handler run should stop being retried.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return !p.Unlimited() && attempt >= p.MaxAttempts
}

// RetryCount reads the retry counter from message headers. Brokers hand
// integers back in whatever width they were encoded with.
func RetryCount(headers map[string]any) int {
	switch v := headers[RetryCountHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// withRetryCount copies headers and sets the retry counter.
func withRetryCount(headers map[string]any, n int) map[string]any {
	out := make(map[string]any, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	out[RetryCountHeader] = int32(n)
	return out
}

// withOrigin records the exchange and routing key d was first published
// with. Headers already set by an earlier retry are kept.
func withOrigin(headers map[string]any, d Delivery) map[string]any {
	if _, ok := headers[OriginalRoutingKeyHeader].(string); !ok {
		headers[OriginalExchangeHeader] = d.Exchange
		headers[OriginalRoutingKeyHeader] = d.RoutingKey
	}
	return headers
}
