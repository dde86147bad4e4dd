package authcore

import (
	"context"
	"errors"
	"strconv"
)

// Login authenticates an email/password pair and, when the account has
// MFA enabled, a second factor. Origin address and user agent are taken
// from the context (see [WithOriginAddress]).
//
// When MFA is enabled and no code is supplied, the returned result has
// MFARequired set and carries no tokens; that branch is not an error.
func (s *Service) Login(ctx context.Context, email, pass, mfaCode string) (*LoginResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	normalized := NormalizeEmail(email)
	if err := s.checkThrottle(ctx, throttleLogin, originAddressFromContext(ctx)+":"+normalized); err != nil {
		return nil, err
	}

	account, err := s.loadByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Unknown email and wrong password are indistinguishable.
			s.metrics.Inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if termErr := statusError(account.Status); termErr != nil {
		return nil, termErr
	}

	now := s.now()
	if account.Locked(now) {
		// The stored hash is never consulted while the lock holds.
		return nil, ErrAccountLocked
	}

	if account.Status == AccountLocked {
		// Lock expired; transition back to active before verifying.
		account, err = s.casUpdate(ctx, account.ID, func(a *Account) error {
			if a.Locked(s.now()) {
				return ErrAccountLocked
			}
			if a.Status == AccountLocked {
				a.Status = AccountActive
				a.FailedLogins = 0
				a.LockedUntil = zeroTime
				a.UpdatedAt = s.now()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if !s.hasher.Verify(pass, account.PasswordHash) {
		return nil, s.loginFailure(ctx, account.ID)
	}

	if account.MFAEnabled {
		if mfaCode == "" {
			s.metrics.Inc(MetricMFARequired)
			return &LoginResult{MFARequired: true, Account: summarize(account)}, nil
		}

		usedBackup, err := s.verifySecondFactor(ctx, account, mfaCode)
		if err != nil {
			return nil, err
		}
		if usedBackup {
			s.metrics.Inc(MetricBackupCodeUsed)
			s.emitEvent(ctx, account.ID, EventBackupCodeUsed, true, nil, nil)
		}
		s.metrics.Inc(MetricMFASuccess)
	}

	committed, err := s.casUpdate(ctx, account.ID, func(a *Account) error {
		if a.Locked(s.now()) {
			return ErrAccountLocked
		}
		if termErr := statusError(a.Status); termErr != nil {
			return termErr
		}
		a.Status = AccountActive
		a.FailedLogins = 0
		a.LockedUntil = zeroTime
		a.LastLoginAt = s.now()
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.issuePair(committed)
	if err != nil {
		return nil, err
	}

	s.metrics.Inc(MetricLoginSuccess)
	s.emitEvent(ctx, committed.ID, EventLoginSuccess, true, nil, nil)

	return &LoginResult{Tokens: tokens, Account: summarize(committed)}, nil
}

// loginFailure applies the lockout failure transition atomically and
// records the matching event. The attempt that reaches the threshold
// records account_locked instead of a plain login_failure and returns
// ErrAccountLocked.
func (s *Service) loginFailure(ctx context.Context, accountID string) error {
	var lockedNow bool
	var failures int

	_, err := s.casUpdate(ctx, accountID, func(a *Account) error {
		now := s.now()
		if a.Locked(now) {
			// A concurrent attempt locked the account first.
			return ErrAccountLocked
		}

		d := s.lockout.OnFailure(a.FailedLogins, now)
		a.FailedLogins = d.Failures
		failures = d.Failures
		if d.Lock {
			a.Status = AccountLocked
			a.LockedUntil = d.Until
			lockedNow = true
		}
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountLocked) {
			return ErrAccountLocked
		}
		return err
	}

	s.metrics.Inc(MetricLoginFailure)

	if lockedNow {
		s.metrics.Inc(MetricAccountLocked)
		s.emitEvent(ctx, accountID, EventAccountLocked, false, ErrAccountLocked, func() map[string]string {
			return map[string]string{"failures": strconv.Itoa(failures)}
		})
		return ErrAccountLocked
	}

	s.emitEvent(ctx, accountID, EventLoginFailure, false, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"failures": strconv.Itoa(failures)}
	})
	return ErrInvalidCredentials
}

func (s *Service) loadByEmail(ctx context.Context, email string) (*Account, error) {
	var account *Account
	err := s.withStoreRetry(ctx, func() error {
		opctx, cancel := s.opCtx(ctx)
		defer cancel()
		var err error
		account, err = s.store.GetAccountByEmail(opctx, email)
		return err
	})
	return account, err
}

func (s *Service) loadByID(ctx context.Context, id string) (*Account, error) {
	var account *Account
	err := s.withStoreRetry(ctx, func() error {
		opctx, cancel := s.opCtx(ctx)
		defer cancel()
		var err error
		account, err = s.store.GetAccountByID(opctx, id)
		return err
	})
	return account, err
}

func (s *Service) casUpdate(ctx context.Context, id string, mutate func(*Account) error) (*Account, error) {
	var account *Account
	err := s.withStoreRetry(ctx, func() error {
		opctx, cancel := s.opCtx(ctx)
		defer cancel()
		var err error
		account, err = s.store.CASUpdateAccount(opctx, id, mutate)
		return err
	})
	return account, err
}

func (s *Service) issuePair(account *Account) (TokenPair, error) {
	access, err := s.issuer.IssueAccess(account.ID, string(account.Role), account.TokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issuer.IssueRefresh(account.ID, string(account.Role), account.TokenVersion)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
