package authcore

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/quantfolio/authcore/mfa"
)

// errBackupCodeNotFound is internal to the second-factor check; it
// signals "fall through to TOTP", never surfaces to callers.
var errBackupCodeNotFound = errors.New("backup code not found")

// verifySecondFactor checks code against the account's unused backup
// codes first, then TOTP. Backup consumption goes through the store CAS,
// so concurrent submissions of the same code admit exactly one caller.
func (s *Service) verifySecondFactor(ctx context.Context, account *Account, code string) (usedBackup bool, err error) {
	if err := s.checkThrottle(ctx, throttleMFA, account.ID); err != nil {
		return false, err
	}

	canonical := mfa.CanonicalizeBackupCode(code)
	if canonical != "" {
		hash := mfa.HashBackupCode(account.ID, canonical)
		_, err := s.casUpdate(ctx, account.ID, func(a *Account) error {
			for i, record := range a.BackupCodes {
				if subtle.ConstantTimeCompare(record.Hash[:], hash[:]) == 1 {
					a.BackupCodes = append(a.BackupCodes[:i], a.BackupCodes[i+1:]...)
					a.UpdatedAt = s.now()
					return nil
				}
			}
			return errBackupCodeNotFound
		})
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, errBackupCodeNotFound) {
			return false, err
		}
	}

	ok, err := s.totp.Verify(account.MFASecret, code, s.now())
	if err != nil {
		return false, err
	}
	if !ok {
		s.metrics.Inc(MetricMFAFailure)
		return false, ErrInvalidMFACode
	}
	return false, nil
}

// BeginMFAEnrollment generates a TOTP secret for the account and stores
// it pending. MFA stays disabled until the secret is confirmed with a
// valid code; re-beginning enrollment replaces an unconfirmed secret.
func (s *Service) BeginMFAEnrollment(ctx context.Context, accountID string) (*MFAEnrollment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	secret, uri, err := s.totp.GenerateSecret(account.Email)
	if err != nil {
		return nil, err
	}

	_, err = s.casUpdate(ctx, accountID, func(a *Account) error {
		if a.MFAEnabled {
			return ErrMFAAlreadyEnabled
		}
		a.MFASecret = secret
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &MFAEnrollment{SecretBase32: secret, ProvisionURI: uri}, nil
}

// ConfirmMFAEnrollment validates a code against the pending secret and,
// on success, enables MFA and returns the one-time backup codes. The
// plaintext codes are never stored and cannot be retrieved again.
func (s *Service) ConfirmMFAEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.checkThrottle(ctx, throttleMFA, accountID); err != nil {
		return nil, err
	}

	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}
	if account.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}

	ok, err := s.totp.Verify(account.MFASecret, code, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.Inc(MetricMFAFailure)
		return nil, ErrInvalidMFACode
	}

	codes, records, err := s.newBackupCodes(accountID)
	if err != nil {
		return nil, err
	}

	_, err = s.casUpdate(ctx, accountID, func(a *Account) error {
		if a.MFAEnabled {
			return ErrMFAAlreadyEnabled
		}
		if a.MFASecret == "" {
			return ErrMFANotEnrolled
		}
		a.MFAEnabled = true
		a.BackupCodes = records
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, accountID, EventMFAEnabled, true, nil, nil)
	return codes, nil
}

// DisableMFA removes the account's second factor, its secret, and all
// unused backup codes. The caller must prove possession of the current
// second factor; code accepts a TOTP or an unused backup code.
func (s *Service) DisableMFA(ctx context.Context, accountID, code string) error {
	if err := s.ready(); err != nil {
		return err
	}

	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.MFAEnabled {
		return ErrMFANotEnrolled
	}
	if _, err := s.verifySecondFactor(ctx, account, code); err != nil {
		return err
	}

	_, err = s.casUpdate(ctx, accountID, func(a *Account) error {
		if !a.MFAEnabled {
			return ErrMFANotEnrolled
		}
		a.MFAEnabled = false
		a.MFASecret = ""
		a.BackupCodes = nil
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}

	s.emitEvent(ctx, accountID, EventMFADisabled, true, nil, nil)
	return nil
}

// RegenerateBackupCodes replaces all unused backup codes and returns the
// fresh plaintexts. Previously issued codes stop working immediately.
// The caller must prove possession of the current second factor.
func (s *Service) RegenerateBackupCodes(ctx context.Context, accountID, code string) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnrolled
	}
	if _, err := s.verifySecondFactor(ctx, account, code); err != nil {
		return nil, err
	}

	codes, records, err := s.newBackupCodes(accountID)
	if err != nil {
		return nil, err
	}

	_, err = s.casUpdate(ctx, accountID, func(a *Account) error {
		if !a.MFAEnabled {
			return ErrMFANotEnrolled
		}
		a.BackupCodes = records
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, accountID, EventBackupCodesRegenerated, true, nil, nil)
	return codes, nil
}

func (s *Service) newBackupCodes(accountID string) ([]string, []BackupCodeRecord, error) {
	codes, err := mfa.GenerateBackupCodes(s.config.MFA.BackupCodeCount, s.config.MFA.BackupCodeLength)
	if err != nil {
		return nil, nil, err
	}

	records := make([]BackupCodeRecord, len(codes))
	for i, code := range codes {
		records[i] = BackupCodeRecord{
			Hash: mfa.HashBackupCode(accountID, mfa.CanonicalizeBackupCode(code)),
		}
	}
	return codes, records, nil
}
