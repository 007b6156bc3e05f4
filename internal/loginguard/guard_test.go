package loginguard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bastion/internal/audit"
	"bastion/internal/loginguard/store"
)

type recordedEvent struct {
	action string
	target string
}

type fakeRecorder struct {
	events []recordedEvent
}

func (f *fakeRecorder) Log(_ context.Context, event audit.Event) {
	f.events = append(f.events, recordedEvent{action: event.Action, target: event.TargetID})
}

type GuardSuite struct {
	suite.Suite
	store    *store.MemoryStore
	recorder *fakeRecorder
	guard    *Guard
	now      time.Time
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s.store = store.NewMemory(store.WithClock(func() time.Time { return s.now }))
	s.recorder = &fakeRecorder{}

	guard, err := New(s.store, WithAuditRecorder(s.recorder))
	s.Require().NoError(err)
	s.guard = guard
}

func (s *GuardSuite) recordFailures(principal string, n int) SecurityStatus {
	var status SecurityStatus
	var err error
	for range n {
		status, err = s.guard.RecordFailure(context.Background(), principal)
		s.Require().NoError(err)
	}
	return status
}

func (s *GuardSuite) TestNew() {
	s.Run("nil store is rejected", func() {
		_, err := New(nil)
		s.Error(err)
	})

	s.Run("non-positive threshold is rejected", func() {
		_, err := New(s.store, WithConfig(Config{MaxFailedAttempts: 0}))
		s.Error(err)
	})
}

func (s *GuardSuite) TestFreshPrincipalIsOpen() {
	ctx := context.Background()

	locked, err := s.guard.IsLocked(ctx, "alice")
	s.NoError(err)
	s.False(locked)

	count, err := s.guard.FailedAttemptCount(ctx, "alice")
	s.NoError(err)
	s.Zero(count)

	remaining, err := s.guard.RemainingLockDuration(ctx, "alice")
	s.NoError(err)
	s.Zero(remaining)
}

func (s *GuardSuite) TestRecordFailure() {
	ctx := context.Background()

	s.Run("below threshold stays unlocked", func() {
		status := s.recordFailures("bob", 4)
		s.False(status.Locked)
		s.Equal(4, status.FailedAttempts)
		s.Equal(1, status.RemainingAttempts)
	})

	s.Run("reaching the threshold locks", func() {
		status := s.recordFailures("alice", 5)
		s.True(status.Locked)
		s.Equal(5, status.FailedAttempts)
		s.Zero(status.RemainingAttempts)
		s.Equal(15*time.Minute, status.RemainingLock)

		locked, err := s.guard.IsLocked(ctx, "alice")
		s.NoError(err)
		s.True(locked)
	})

	s.Run("lock emits an audit event", func() {
		s.recordFailures("carol", 5)
		s.Contains(s.recorder.events, recordedEvent{action: "account_locked", target: "carol"})
	})

	s.Run("counter window rolls forward on each failure", func() {
		s.recordFailures("dave", 2)
		s.now = s.now.Add(14 * time.Minute)
		s.recordFailures("dave", 1)

		// the third failure reset the 15m window, so nothing expired
		s.now = s.now.Add(14 * time.Minute)
		count, err := s.guard.FailedAttemptCount(ctx, "dave")
		s.NoError(err)
		s.Equal(3, count)
	})

	s.Run("counter expires after the window with no further failures", func() {
		s.recordFailures("erin", 3)
		s.now = s.now.Add(16 * time.Minute)

		count, err := s.guard.FailedAttemptCount(ctx, "erin")
		s.NoError(err)
		s.Zero(count)
	})
}

func (s *GuardSuite) TestLockExpiresNaturally() {
	ctx := context.Background()
	s.recordFailures("alice", 5)

	s.now = s.now.Add(16 * time.Minute)

	locked, err := s.guard.IsLocked(ctx, "alice")
	s.NoError(err)
	s.False(locked)
}

func (s *GuardSuite) TestUnlock() {
	ctx := context.Background()
	s.recordFailures("alice", 5)

	s.NoError(s.guard.Unlock(ctx, "alice"))

	locked, err := s.guard.IsLocked(ctx, "alice")
	s.NoError(err)
	s.False(locked)

	count, err := s.guard.FailedAttemptCount(ctx, "alice")
	s.NoError(err)
	s.Zero(count)

	s.Contains(s.recorder.events, recordedEvent{action: "account_unlocked", target: "alice"})

	s.Run("unlocking an open principal is harmless", func() {
		s.NoError(s.guard.Unlock(ctx, "nobody"))
	})
}

func (s *GuardSuite) TestClearFailures() {
	ctx := context.Background()
	s.recordFailures("alice", 3)

	s.NoError(s.guard.ClearFailures(ctx, "alice"))

	count, err := s.guard.FailedAttemptCount(ctx, "alice")
	s.NoError(err)
	s.Zero(count)
}

func (s *GuardSuite) TestSecurityStatus() {
	ctx := context.Background()

	s.Run("remaining attempts never go negative", func() {
		s.recordFailures("alice", 7)

		status, err := s.guard.SecurityStatus(ctx, "alice")
		s.NoError(err)
		s.Equal(7, status.FailedAttempts)
		s.Zero(status.RemainingAttempts)
	})

	s.Run("fresh principal has the full budget", func() {
		status, err := s.guard.SecurityStatus(ctx, "fresh")
		s.NoError(err)
		s.False(status.Locked)
		s.Equal(5, status.RemainingAttempts)
	})
}

func (s *GuardSuite) TestLock() {
	ctx := context.Background()

	s.Run("explicit lock with custom duration", func() {
		s.NoError(s.guard.Lock(ctx, "alice", 30*time.Minute))

		remaining, err := s.guard.RemainingLockDuration(ctx, "alice")
		s.NoError(err)
		s.Equal(30*time.Minute, remaining)
	})

	s.Run("non-positive duration falls back to config", func() {
		s.NoError(s.guard.Lock(ctx, "bob", 0))

		remaining, err := s.guard.RemainingLockDuration(ctx, "bob")
		s.NoError(err)
		s.Equal(15*time.Minute, remaining)
	})

	s.Run("relocking refreshes the TTL", func() {
		s.NoError(s.guard.Lock(ctx, "carol", 10*time.Minute))
		s.now = s.now.Add(5 * time.Minute)
		s.NoError(s.guard.Lock(ctx, "carol", 10*time.Minute))

		remaining, err := s.guard.RemainingLockDuration(ctx, "carol")
		s.NoError(err)
		s.Equal(10*time.Minute, remaining)
	})
}

func (s *GuardSuite) TestValidateBeforeLogin() {
	ctx := context.Background()

	s.Run("open principal passes with empty verdict", func() {
		check, err := s.guard.ValidateBeforeLogin(ctx, "alice")
		s.NoError(err)
		s.False(check.Locked)
		s.Empty(check.Message)
		s.Zero(check.RemainingTime)
	})

	s.Run("fifth failure locks and the message names the wait in minutes", func() {
		s.recordFailures("alice", 5)

		check, err := s.guard.ValidateBeforeLogin(ctx, "alice")
		s.NoError(err)
		s.True(check.Locked)
		s.Contains(check.Message, "15 minutes")
		s.Equal(15*time.Minute, check.RemainingTime)
	})

	s.Run("partial minutes round up", func() {
		s.NoError(s.guard.Lock(ctx, "bob", 90*time.Second))

		check, err := s.guard.ValidateBeforeLogin(ctx, "bob")
		s.NoError(err)
		s.Contains(check.Message, "2 minutes")
	})
}
