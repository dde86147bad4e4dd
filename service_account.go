package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Register creates a new account in pending_verification. The password
// is hashed with the configured argon2id parameters; the account cannot
// log in until activated.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AccountSummary, error) {
	if err := s.ready(); err != nil {
		return AccountSummary{}, err
	}
	if err := s.checkThrottle(ctx, throttleRegister, originAddressFromContext(ctx)); err != nil {
		return AccountSummary{}, err
	}

	email := NormalizeEmail(req.Email)
	if !validEmail(email) {
		return AccountSummary{}, ErrInvalidEmail
	}
	if len(req.Password) < s.config.Password.MinLength {
		return AccountSummary{}, ErrPasswordPolicy
	}

	role := req.Role
	if role == "" {
		role = s.config.Account.DefaultRole
	}
	if !role.Valid() {
		return AccountSummary{}, errors.New("unknown role")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return AccountSummary{}, err
	}

	now := s.now()
	account := &Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       AccountPendingVerification,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.withStoreRetry(ctx, func() error {
		opctx, cancel := s.opCtx(ctx)
		defer cancel()
		return s.store.CreateAccount(opctx, account)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			s.metrics.Inc(MetricRegisterDuplicate)
		}
		return AccountSummary{}, err
	}

	s.metrics.Inc(MetricRegisterSuccess)
	s.emitEvent(ctx, account.ID, EventAccountCreated, true, nil, nil)

	return summarize(account), nil
}

// GetAccount returns the public projection of an account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (AccountSummary, error) {
	if err := s.ready(); err != nil {
		return AccountSummary{}, err
	}
	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return AccountSummary{}, err
	}
	return summarize(account), nil
}

// ActivateAccount moves a pending_verification account to active.
func (s *Service) ActivateAccount(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, EventAccountActivated, func(a *Account) error {
		if a.Status != AccountPendingVerification {
			return ErrInvalidTransition
		}
		a.Status = AccountActive
		return nil
	})
}

// SuspendAccount administratively suspends an account and revokes all
// outstanding tokens, so they stay dead even after reinstatement.
func (s *Service) SuspendAccount(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, EventAccountSuspended, func(a *Account) error {
		switch a.Status {
		case AccountActive, AccountLocked, AccountPendingVerification:
			a.Status = AccountSuspended
			a.TokenVersion++
			return nil
		default:
			return ErrInvalidTransition
		}
	})
}

// DeactivateAccount administratively deactivates an account and revokes
// all outstanding tokens.
func (s *Service) DeactivateAccount(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, EventAccountDeactivated, func(a *Account) error {
		if a.Status == AccountInactive {
			return ErrInvalidTransition
		}
		a.Status = AccountInactive
		a.TokenVersion++
		return nil
	})
}

// ReinstateAccount returns a suspended or inactive account to active,
// clearing any stale lockout residue.
func (s *Service) ReinstateAccount(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, EventAccountReinstated, func(a *Account) error {
		switch a.Status {
		case AccountSuspended, AccountInactive:
			a.Status = AccountActive
			a.FailedLogins = 0
			a.LockedUntil = zeroTime
			return nil
		default:
			return ErrInvalidTransition
		}
	})
}

func (s *Service) transition(ctx context.Context, accountID string, kind EventKind, mutate func(*Account) error) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.casUpdate(ctx, accountID, func(a *Account) error {
		if err := mutate(a); err != nil {
			return err
		}
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}

	s.emitEvent(ctx, accountID, kind, true, nil, nil)
	return nil
}

// validEmail is a shallow shape check; deliverability is not this
// core's concern.
func validEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}
