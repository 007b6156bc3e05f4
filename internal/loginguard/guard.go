// Package loginguard tracks failed authentication attempts per principal and
// enforces timed account lockout.
//
// State lives entirely in an external TTL store as two logically independent
// keys per principal: a failure counter with a rolling window, and a lock
// marker whose TTL is the lockout duration. A principal is locked iff the
// marker exists; the store is the single source of truth, so process
// restarts neither lose nor invent lockouts.
package loginguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"bastion/internal/audit"
	"bastion/internal/loginguard/store"
	"bastion/internal/platform/metrics"
)

const (
	failKeyPrefix = "loginfail:"
	lockKeyPrefix = "loginlock:"
)

// AuditRecorder receives lockout lifecycle events. Satisfied by
// *audit.Writer.
type AuditRecorder interface {
	Log(ctx context.Context, event audit.Event)
}

// Guard is the login-attempt throttling service. It holds no in-process
// locks; every operation is a non-blocking call against the TTL store, and
// store errors surface to the caller with the original error in the chain.
type Guard struct {
	store    store.TTLStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder AuditRecorder
	config   Config
}

// Option configures a Guard.
type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(g *Guard) {
		g.config = cfg
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(g *Guard) {
		g.recorder = recorder
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// New constructs a Guard over the given TTL store.
func New(ttlStore store.TTLStore, opts ...Option) (*Guard, error) {
	if ttlStore == nil {
		return nil, errors.New("ttl store is required")
	}

	g := &Guard{
		store:  ttlStore,
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.config.MaxFailedAttempts <= 0 {
		return nil, errors.New("max failed attempts must be positive")
	}
	return g, nil
}

// IsLocked reports whether the lock marker exists for the principal.
func (g *Guard) IsLocked(ctx context.Context, principal string) (bool, error) {
	_, ok, err := g.store.Get(ctx, lockKey(principal))
	if err != nil {
		return false, fmt.Errorf("get lock marker: %w", err)
	}
	return ok, nil
}

// RemainingLockDuration returns how long the principal stays locked.
// Zero when the marker is absent or carries no expiry.
func (g *Guard) RemainingLockDuration(ctx context.Context, principal string) (time.Duration, error) {
	ttl, err := g.store.TTL(ctx, lockKey(principal))
	if err != nil {
		return 0, fmt.Errorf("lock marker ttl: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// FailedAttemptCount returns the current failure counter, zero when absent.
func (g *Guard) FailedAttemptCount(ctx context.Context, principal string) (int, error) {
	val, ok, err := g.store.Get(ctx, failKey(principal))
	if err != nil {
		return 0, fmt.Errorf("get failure counter: %w", err)
	}
	if !ok {
		return 0, nil
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parse failure counter %q: %w", val, err)
	}
	return count, nil
}

// SecurityStatus assembles the combined lockout view. The three store reads
// have no ordering dependency and run concurrently.
func (g *Guard) SecurityStatus(ctx context.Context, principal string) (SecurityStatus, error) {
	var (
		locked    bool
		count     int
		remaining time.Duration
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		locked, err = g.IsLocked(ctx, principal)
		return err
	})
	eg.Go(func() error {
		var err error
		count, err = g.FailedAttemptCount(ctx, principal)
		return err
	})
	eg.Go(func() error {
		var err error
		remaining, err = g.RemainingLockDuration(ctx, principal)
		return err
	})
	if err := eg.Wait(); err != nil {
		return SecurityStatus{}, err
	}

	return SecurityStatus{
		Locked:            locked,
		FailedAttempts:    count,
		RemainingLock:     remaining,
		RemainingAttempts: max(0, g.config.MaxFailedAttempts-count),
	}, nil
}

// RecordFailure increments the failure counter, resetting its rolling window,
// and locks the principal once the configured threshold is reached. Returns
// the recomputed status.
//
// The increment is read-then-write, not atomic: concurrent failures for the
// same principal can lose an increment, which at worst delays the lockout by
// one attempt and never produces a false lockout.
func (g *Guard) RecordFailure(ctx context.Context, principal string) (SecurityStatus, error) {
	count, err := g.FailedAttemptCount(ctx, principal)
	if err != nil {
		return SecurityStatus{}, err
	}
	count++

	if err := g.store.Set(ctx, failKey(principal), strconv.Itoa(count), g.config.FailedCountTTL); err != nil {
		return SecurityStatus{}, fmt.Errorf("write failure counter: %w", err)
	}
	if g.metrics != nil {
		g.metrics.LoginFailuresRecorded.Inc()
	}
	g.logger.Debug("login failure recorded",
		"principal", principal,
		"failed_attempts", count,
		"max_failed_attempts", g.config.MaxFailedAttempts,
	)

	if count >= g.config.MaxFailedAttempts {
		if err := g.Lock(ctx, principal, g.config.LockDuration); err != nil {
			return SecurityStatus{}, err
		}
	}

	return g.SecurityStatus(ctx, principal)
}

// Lock writes the lock marker with the given TTL (config default when
// non-positive). Idempotent; relocking refreshes the TTL.
func (g *Guard) Lock(ctx context.Context, principal string, duration time.Duration) error {
	if duration <= 0 {
		duration = g.config.LockDuration
	}

	// Marker value is opaque; key existence is what matters.
	value := strconv.FormatInt(time.Now().Unix(), 10)
	if err := g.store.Set(ctx, lockKey(principal), value, duration); err != nil {
		return fmt.Errorf("write lock marker: %w", err)
	}

	if g.metrics != nil {
		g.metrics.LoginLockouts.Inc()
	}
	g.logger.Warn("account locked",
		"principal", principal,
		"lock_duration", duration,
	)
	g.emitAudit(ctx, "account_locked", principal, audit.StatusSuccess)
	return nil
}

// Unlock clears both the lock marker and the failure counter in a single
// delete, so no partial-unlock state is observable.
func (g *Guard) Unlock(ctx context.Context, principal string) error {
	if _, err := g.store.Del(ctx, lockKey(principal), failKey(principal)); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	g.logger.Info("account unlocked", "principal", principal)
	g.emitAudit(ctx, "account_unlocked", principal, audit.StatusSuccess)
	return nil
}

// ClearFailures removes only the failure counter. Call after a successful
// login.
func (g *Guard) ClearFailures(ctx context.Context, principal string) error {
	if _, err := g.store.Del(ctx, failKey(principal)); err != nil {
		return fmt.Errorf("clear failure counter: %w", err)
	}
	return nil
}

// ValidateBeforeLogin is the pre-authentication check. For a locked
// principal the message embeds the remaining wait rounded up to whole
// minutes.
func (g *Guard) ValidateBeforeLogin(ctx context.Context, principal string) (LoginCheck, error) {
	locked, err := g.IsLocked(ctx, principal)
	if err != nil {
		return LoginCheck{}, err
	}
	if !locked {
		return LoginCheck{}, nil
	}

	remaining, err := g.RemainingLockDuration(ctx, principal)
	if err != nil {
		return LoginCheck{}, err
	}

	minutes := int64((remaining + time.Minute - 1) / time.Minute)
	return LoginCheck{
		Locked:        true,
		Message:       fmt.Sprintf("Account is locked due to too many failed login attempts. Try again in %d minutes.", minutes),
		RemainingTime: remaining,
	}, nil
}

func (g *Guard) emitAudit(ctx context.Context, action, principal string, status audit.Status) {
	if g.recorder == nil {
		return
	}
	g.recorder.Log(ctx, audit.Event{
		Action:     action,
		Module:     "loginguard",
		TargetType: "principal",
		TargetID:   principal,
		Status:     status,
	})
}

func failKey(principal string) string { return failKeyPrefix + principal }

func lockKey(principal string) string { return lockKeyPrefix + principal }
