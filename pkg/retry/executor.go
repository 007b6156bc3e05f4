package retry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("bastion/pkg/retry")

// Do executes fn under the policy and returns its value.
//
// The first attempt runs immediately. On failure the error is classified:
// non-retryable errors are returned unmodified after a single invocation,
// with no hook call and no sleep. Retryable errors trigger up to
// p.MaxAttempts retries, sleeping p.Delay(attempt) between attempts.
// When the budget is spent the last error is wrapped in *ExhaustedError.
//
// Cancelling ctx during a backoff sleep aborts the loop and returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "retry."+op)
	defer span.End()

	var last error
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("retry.attempts", attempt))
			return v, nil
		}
		last = err

		if !p.retryable(err) {
			span.SetStatus(codes.Error, "non-retryable")
			span.RecordError(err)
			return zero, err
		}

		if attempt >= p.MaxAttempts {
			span.SetAttributes(attribute.Int("retry.attempts", attempt))
			span.SetStatus(codes.Error, "exhausted")
			span.RecordError(last)
			return zero, &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Last: last}
		}

		callHook(p.OnRetry, err, attempt+1)

		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, "canceled")
			return zero, ctx.Err()
		case <-time.After(p.Delay(attempt + 1)):
		}
	}
}

// Run is Do for operations without a return value.
func Run(ctx context.Context, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// callHook shields the retry loop from observer code; a panicking hook must
// not abort the remaining attempts.
func callHook(hook func(error, int), err error, attempt int) {
	if hook == nil {
		return
	}
	defer func() { _ = recover() }()
	hook(err, attempt)
}
