package authcore

import "context"

// ChangePassword replaces the account's credential. The old hash is
// pushed onto the bounded history, reuse of any remembered password is
// rejected before the replacement is hashed, and every outstanding token
// is revoked by bumping the token version.
func (s *Service) ChangePassword(ctx context.Context, accountID, newPassword string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(newPassword) < s.config.Password.MinLength {
		return ErrPasswordPolicy
	}

	account, err := s.loadByID(ctx, accountID)
	if err != nil {
		return err
	}

	// Reuse check precedes hashing the replacement.
	if s.hasher.Verify(newPassword, account.PasswordHash) {
		s.metrics.Inc(MetricPasswordReuseRejected)
		return ErrPasswordReuse
	}
	for _, prior := range account.PasswordHistory {
		if s.hasher.Verify(newPassword, prior) {
			s.metrics.Inc(MetricPasswordReuseRejected)
			return ErrPasswordReuse
		}
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = s.casUpdate(ctx, accountID, func(a *Account) error {
		now := s.now()

		// Most recent first; evict beyond capacity.
		a.PasswordHistory = append([]string{a.PasswordHash}, a.PasswordHistory...)
		if len(a.PasswordHistory) > s.config.Password.HistoryCapacity {
			a.PasswordHistory = a.PasswordHistory[:s.config.Password.HistoryCapacity]
		}

		a.PasswordHash = newHash
		a.TokenVersion++
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricPasswordChanged)
	s.emitEvent(ctx, accountID, EventPasswordChange, true, nil, nil)
	return nil
}
