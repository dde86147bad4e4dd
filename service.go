package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantfolio/authcore/internal/audit"
	"github.com/quantfolio/authcore/internal/rate"
	"github.com/quantfolio/authcore/lockout"
	"github.com/quantfolio/authcore/mfa"
	"github.com/quantfolio/authcore/password"
	"github.com/quantfolio/authcore/token"
)

// zeroTime clears time fields when a lock or counter is reset.
var zeroTime time.Time

// Throttle scope names. Login and registration key on the caller's
// origin plus the target identifier; MFA keys on the account.
const (
	throttleLogin    = "login"
	throttleRegister = "register"
	throttleMFA      = "mfa"
)

// Service is the account-security core. All fields are set once by
// [Builder.Build]; a Service is safe for concurrent use.
type Service struct {
	config   Config
	store    Store
	throttle *rate.Throttle
	hasher   *password.Hasher
	issuer   *token.Issuer
	totp     *mfa.TOTP
	lockout  lockout.Policy
	audit    *audit.Dispatcher
	metrics  *Metrics

	// clock overrides time.Now in tests; nil means real time.
	clock func() time.Time

	// lastEvent enforces strictly increasing event timestamps per
	// account, so trail order survives coarse clock granularity.
	eventMu   sync.Mutex
	lastEvent map[string]time.Time
}

// Close drains the audit dispatcher. The service must not be used after
// Close.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// Metrics returns the service's counter set.
func (s *Service) Metrics() *Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return ErrServiceNotReady
	}
	return nil
}

// checkThrottle counts one attempt against the scope and translates the
// limiter's rejection into the public error shape.
func (s *Service) checkThrottle(ctx context.Context, scope, key string) error {
	if s.throttle == nil {
		return nil
	}

	err := s.throttle.Allow(ctx, scope, key)
	if err == nil {
		return nil
	}

	var limited *rate.LimitError
	if errors.As(err, &limited) {
		if scope == throttleLogin {
			s.metrics.Inc(MetricLoginThrottled)
		}
		return &RateLimitedError{Scope: limited.Scope, RetryAfter: limited.RetryAfter}
	}

	// Throttle backend failure is treated as transient unavailability
	// rather than silently failing open.
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// withStoreRetry runs fn, retrying transient store failures with a flat
// backoff. Any other error returns immediately.
func (s *Service) withStoreRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		if attempt >= s.config.Store.RetryAttempts {
			return err
		}

		s.metrics.Inc(MetricStoreRetry)
		select {
		case <-time.After(s.config.Store.RetryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// opCtx bounds a persistence call with the configured timeout.
func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.Store.OpTimeout)
}

// eventTimestamp returns a per-account strictly increasing timestamp.
func (s *Service) eventTimestamp(accountID string) time.Time {
	now := s.now()

	s.eventMu.Lock()
	defer s.eventMu.Unlock()

	if s.lastEvent == nil {
		s.lastEvent = make(map[string]time.Time)
	}
	if prev, ok := s.lastEvent[accountID]; ok && !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	s.lastEvent[accountID] = now
	return now
}

// recordEvent appends one security event to the account's durable trail
// and mirrors it to the async audit sink. Trail write failures are
// retried; a final failure is reported to the caller, since a silent
// gap in the trail is worse than a failed operation.
func (s *Service) recordEvent(
	ctx context.Context,
	accountID string,
	kind EventKind,
	success bool,
	opErr error,
	metadataBuilder func() map[string]string,
) error {
	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := SecurityEvent{
		AccountID: accountID,
		Kind:      kind,
		Timestamp: s.eventTimestamp(accountID),
		IP:        originAddressFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	err := s.withStoreRetry(ctx, func() error {
		opctx, cancel := s.opCtx(ctx)
		defer cancel()
		return s.store.AppendSecurityEvent(opctx, event)
	})

	s.audit.Emit(ctx, event)

	return err
}

// emitEvent is recordEvent for paths that must not fail the caller on a
// trail write error.
func (s *Service) emitEvent(
	ctx context.Context,
	accountID string,
	kind EventKind,
	success bool,
	opErr error,
	metadataBuilder func() map[string]string,
) {
	_ = s.recordEvent(ctx, accountID, kind, success, opErr, metadataBuilder)
}
