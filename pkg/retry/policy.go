// Package retry wraps unreliable operations with configurable retry,
// backoff, jitter, and error classification.
//
// A Policy is an immutable value; one instance may be shared by any number of
// concurrent executions. The executor keeps no state between calls.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Kind classifies errors for retry decisions. Errors advertise their kind by
// implementing RetryKind() anywhere in their wrap chain; unclassified errors
// default to KindTransient and are retried.
type Kind string

const (
	// KindTransient marks errors expected to clear on their own (timeouts,
	// temporary network failures). Retryable by default.
	KindTransient Kind = "transient"

	// KindUnavailable marks a dependency reported as down. Retryable.
	KindUnavailable Kind = "unavailable"

	// KindValidation marks caller mistakes that no retry can fix.
	KindValidation Kind = "validation"
)

// Backoff selects the delay growth strategy between attempts.
type Backoff int

const (
	BackoffExponential Backoff = iota
	BackoffFixed
	BackoffLinear
)

// Policy describes how an operation is retried. The zero value is not useful;
// start from DefaultPolicy and override fields.
type Policy struct {
	// MaxAttempts is the number of retries after the initial attempt.
	// Total invocations on persistent failure = MaxAttempts + 1.
	MaxAttempts int

	Backoff    Backoff
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64

	// Jitter perturbs each computed delay by ±25% to avoid synchronized
	// retry storms.
	Jitter bool

	// RetryableKinds is an allow-list; nil means every kind is retryable.
	RetryableKinds []Kind

	// NonRetryableKinds is a deny-list. It wins over RetryableKinds when
	// both match the same kind.
	NonRetryableKinds []Kind

	// OnRetry is invoked before each retry sleep with the failing error and
	// the 1-based retry index. A panic inside the hook is swallowed; the
	// retry loop must not be aborted by observer code.
	OnRetry func(err error, attempt int)
}

// DefaultPolicy returns a conservative exponential-backoff policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Delay computes the sleep before the given 1-based retry attempt.
// Jitter is applied after clamping to MaxDelay, so a jittered delay may
// exceed the cap by up to 25%; randomized spread takes precedence over the
// hard cap for collision avoidance.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var d time.Duration
	switch p.Backoff {
	case BackoffFixed:
		d = p.BaseDelay
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(attempt)
	default:
		mult := p.Multiplier
		if mult < 1 {
			mult = 1
		}
		d = time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	}

	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter {
		factor := 0.75 + rand.Float64()*0.5
		d = time.Duration(float64(d) * factor)
	}

	if d < 0 {
		d = 0
	}
	return d
}

// retryable reports whether the error's kind passes the deny/allow lists.
func (p Policy) retryable(err error) bool {
	kind := KindOf(err)
	if containsKind(p.NonRetryableKinds, kind) {
		return false
	}
	if p.RetryableKinds != nil && !containsKind(p.RetryableKinds, kind) {
		return false
	}
	return true
}

func containsKind(kinds []Kind, kind Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
