package loginguard

import "time"

// SecurityStatus is the combined lockout view for a principal.
type SecurityStatus struct {
	Locked            bool
	FailedAttempts    int
	RemainingLock     time.Duration
	RemainingAttempts int
}

// LoginCheck is the pre-authentication verdict returned by
// ValidateBeforeLogin.
type LoginCheck struct {
	Locked        bool
	Message       string
	RemainingTime time.Duration
}
