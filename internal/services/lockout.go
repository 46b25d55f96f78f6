package services

import "time"

// AccountProtectionSettings is the brute-force protection configuration for
// a domain or application. It is a value object; this layer never persists
// it.
type AccountProtectionSettings struct {
	LoginAttemptsDetectionEnabled bool
	MaxLoginAttempts              int
	AccountBlockedDuration        time.Duration
}

// LockoutDecision is the outcome of evaluating an attempt count against the
// protection settings.
type LockoutDecision struct {
	Locked    bool
	Remaining int // attempts left before the account locks, floored at 0
}

// EvaluateLockout decides whether an account is locked after the given
// number of consecutive failures. Pure and deterministic; no I/O.
//
// Locked iff detection is enabled and attempts >= MaxLoginAttempts. The >=
// matters: with MaxLoginAttempts of 1 the very first failure locks.
func EvaluateLockout(attempts int, settings AccountProtectionSettings) LockoutDecision {
	if !settings.LoginAttemptsDetectionEnabled {
		return LockoutDecision{Locked: false, Remaining: 0}
	}

	remaining := settings.MaxLoginAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	return LockoutDecision{
		Locked:    attempts >= settings.MaxLoginAttempts,
		Remaining: remaining,
	}
}
