package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password; the two are deliberately indistinguishable to prevent
	// account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the lockout window is open.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountSuspended is returned for administratively suspended accounts.
	ErrAccountSuspended = errors.New("account suspended")
	// ErrAccountInactive is returned for administratively deactivated accounts.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountUnverified is returned when a pending_verification account
	// attempts to log in.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrInvalidMFACode is returned when neither a backup code nor a TOTP
	// code matches. MFA failures do not count toward the lockout counter.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrMFANotEnrolled is returned when an MFA operation targets an
	// account without a confirmed enrollment.
	ErrMFANotEnrolled = errors.New("mfa not enrolled")
	// ErrMFAAlreadyEnabled is returned when enrollment is begun for an
	// account that already has MFA confirmed.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrRateLimited is the sentinel matched by [RateLimitedError].
	ErrRateLimited = errors.New("rate limited")
	// ErrTokenExpired is returned for a structurally valid token past its
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a token's embedded version no longer
	// matches the account's live token version.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid is returned for malformed or mis-typed tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrPasswordReuse rejects a new password matching the current hash or
	// any hash in the bounded credential history.
	ErrPasswordReuse = errors.New("password reuse rejected")
	// ErrPasswordPolicy is returned when a password fails policy checks.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrInvalidEmail is returned by registration for a malformed email
	// identifier.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrDuplicateEmail is returned by registration for an email that is
	// already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrAccountNotFound is returned by the store for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTransition is returned for a status change the account
	// state machine does not permit.
	ErrInvalidTransition = errors.New("invalid account status transition")
	// ErrStoreUnavailable marks a transient persistence failure. The
	// service retries it a bounded number of times with backoff before
	// surfacing it.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrServiceNotReady is returned when the service is used before Build
	// completed its wiring.
	ErrServiceNotReady = errors.New("service not initialized")
)

// RateLimitedError is returned when a throttle ceiling is hit. It matches
// ErrRateLimited via errors.Is and carries the retry-after hint derived
// from the throttle window.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limited, retry after %s", e.Scope, e.RetryAfter)
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// statusError maps a coarse account status to its terminal login error.
// Active and locked are handled separately by the login pipeline.
func statusError(status AccountStatus) error {
	switch status {
	case AccountSuspended:
		return ErrAccountSuspended
	case AccountInactive:
		return ErrAccountInactive
	case AccountPendingVerification:
		return ErrAccountUnverified
	default:
		return nil
	}
}
