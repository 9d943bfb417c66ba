// Package errhandler classifies action failures into the taxonomy of
// spec §7/§4.8 and applies the retry-vs-fatal policy BaseWorker needs,
// modeled on the teacher's pkg/resilience circuit breaker and pkg/fn retry
// primitives; it imports neither package.
package errhandler

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Kind is one of the five failure classes a BaseWorker must distinguish.
type Kind int

const (
	// Unknown failures are retried once as transient, then treated fatal.
	Unknown Kind = iota
	SchemaValidation
	ExternalTransient
	ExternalFatal
	BusinessRule
)

func (k Kind) String() string {
	switch k {
	case SchemaValidation:
		return "schema_validation"
	case ExternalTransient:
		return "external_transient"
	case ExternalFatal:
		return "external_fatal"
	case BusinessRule:
		return "business_rule"
	default:
		return "unknown"
	}
}

// classified wraps an error with its Kind so Classify can recover it
// without reflection or string matching on messages.
type classified struct {
	kind Kind
	err  error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Validation marks err as a SchemaValidation failure: fatal, no retry.
func Validation(err error) error { return &classified{kind: SchemaValidation, err: err} }

// Transient marks err as retryable with backoff.
func Transient(err error) error { return &classified{kind: ExternalTransient, err: err} }

// Fatal marks err as non-retryable but job-ending (dead-letter worthy).
func Fatal(err error) error { return &classified{kind: ExternalFatal, err: err} }

// Business marks err as a BusinessRule outcome: not a job failure at all,
// callers should annotate data.Metadata and continue the pipeline rather
// than propagate this as execute's error return.
func Business(err error) error { return &classified{kind: BusinessRule, err: err} }

// Classify recovers the Kind an error was wrapped with, defaulting to
// Unknown for plain errors (network/io errors that were never classified
// by the caller fall here and get one transient retry before going fatal).
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}
	return Unknown
}

// RetryPolicy computes exponential backoff with jitter, matching
// pkg/fn.RetryOpts's algorithm: min(backoffMs * 2^(attempt-1), maxBackoffMs)
// for the 1-indexed attempt,
// jittered by a uniform [0.5, 1.5) multiplier.
type RetryPolicy struct {
	BackoffMS    int64
	MaxBackoffMS int64
	MaxRetries   int
}

// DefaultRetryPolicy matches job.DefaultMaxRetries and a 1s/30s backoff
// envelope, the same magnitudes pkg/fn.DefaultRetry uses.
var DefaultRetryPolicy = RetryPolicy{BackoffMS: 1000, MaxBackoffMS: 30000, MaxRetries: 3}

// Backoff returns the delay before retry attempt (1-indexed).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := p.BackoffMS
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= p.MaxBackoffMS {
			backoff = p.MaxBackoffMS
			break
		}
	}
	jittered := float64(backoff) * (0.5 + rand.Float64())
	if jittered > float64(p.MaxBackoffMS) {
		jittered = float64(p.MaxBackoffMS)
	}
	return time.Duration(jittered) * time.Millisecond
}

// ShouldRetry reports whether attempt (the attempt that just failed,
// 1-indexed) should be retried under kind, given maxRetries from the
// job envelope.
func ShouldRetry(kind Kind, attempt, maxRetries int) bool {
	switch kind {
	case ExternalTransient:
		return attempt < maxRetries
	case Unknown:
		return attempt < 2 // one free retry, then fatal
	default:
		return false
	}
}

// Outcome is what BaseWorker does with a failed action's error.
type Outcome int

const (
	OutcomeRetry Outcome = iota
	OutcomeFatal
	OutcomeContinue // BusinessRule: not a failure, pipeline proceeds
)

// Resolve turns a classified error plus the current attempt/maxRetries
// into the action BaseWorker must take.
func Resolve(err error, attempt, maxRetries int) (Outcome, Kind) {
	kind := Classify(err)
	if kind == BusinessRule {
		return OutcomeContinue, kind
	}
	if ShouldRetry(kind, attempt, maxRetries) {
		return OutcomeRetry, kind
	}
	return OutcomeFatal, kind
}

// WithErrorHandling is the single entry point wrappers must use around
// external collaborator calls (spec §4.8): it runs op and leaves
// classification to the caller via Classify on the returned error.
func WithErrorHandling(ctx context.Context, op func(context.Context) error) error {
	select {
	case <-ctx.Done():
		return Transient(ctx.Err())
	default:
	}
	return op(ctx)
}
