// Package lockout holds the pure consecutive-failure lockout policy.
// It decides transitions; callers own the persisted counters and apply
// decisions under their store's atomic update.
package lockout

import (
	"errors"
	"time"
)

// Policy locks a subject after Threshold consecutive failures for
// LockDuration. The lock expires lazily: callers ask Expired on the
// next attempt rather than running a timer.
type Policy struct {
	Threshold    int
	LockDuration time.Duration
}

func New(threshold int, lockDuration time.Duration) (Policy, error) {
	if threshold <= 0 {
		return Policy{}, errors.New("lockout threshold must be > 0")
	}
	if lockDuration <= 0 {
		return Policy{}, errors.New("lockout duration must be > 0")
	}
	return Policy{Threshold: threshold, LockDuration: lockDuration}, nil
}

// Decision is the outcome of recording one failure.
type Decision struct {
	Failures int
	Lock     bool
	Until    time.Time
}

// OnFailure increments the consecutive-failure count and reports whether
// the increment crosses the threshold. priorFailures is the count before
// this failure.
func (p Policy) OnFailure(priorFailures int, now time.Time) Decision {
	failures := priorFailures + 1
	d := Decision{Failures: failures}
	if failures >= p.Threshold {
		d.Lock = true
		d.Until = now.Add(p.LockDuration)
	}
	return d
}

// Expired reports whether a lock placed until lockedUntil has lapsed.
func (p Policy) Expired(lockedUntil, now time.Time) bool {
	return !lockedUntil.After(now)
}

// Remaining returns how long a lock has left, clamped at zero.
func (p Policy) Remaining(lockedUntil, now time.Time) time.Duration {
	if rem := lockedUntil.Sub(now); rem > 0 {
		return rem
	}
	return 0
}
