package loginguard

import "time"

// Config tunes the lockout state machine.
type Config struct {
	// MaxFailedAttempts is the failure count at which the principal locks.
	MaxFailedAttempts int
	// LockDuration is the TTL of the lock marker.
	LockDuration time.Duration
	// FailedCountTTL is the rolling window of the failure counter; it
	// resets on every recorded failure.
	FailedCountTTL time.Duration
}

// DefaultConfig: five failures inside a fifteen-minute rolling window lock
// the account for fifteen minutes.
func DefaultConfig() Config {
	return Config{
		MaxFailedAttempts: 5,
		LockDuration:      15 * time.Minute,
		FailedCountTTL:    15 * time.Minute,
	}
}
