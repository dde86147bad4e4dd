package authcore

import (
	"context"
	"errors"

	"github.com/quantfolio/authcore/token"
)

// Refresh rotates a refresh token into a new access/refresh pair. The
// account's live token version is re-read at decision time under the
// store CAS, so a revoke landing between parse and issuance is never
// ignored.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if err := s.ready(); err != nil {
		return TokenPair{}, err
	}

	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, mapTokenError(err)
	}

	committed, err := s.casUpdate(ctx, claims.Subject, func(a *Account) error {
		if termErr := statusError(a.Status); termErr != nil {
			return termErr
		}
		if a.TokenVersion != claims.Ver {
			return ErrTokenRevoked
		}
		a.LastRefreshAt = s.now()
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			s.metrics.Inc(MetricRefreshRevoked)
		}
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, ErrTokenRevoked
		}
		return TokenPair{}, err
	}

	pair, err := s.issuePair(committed)
	if err != nil {
		return TokenPair{}, err
	}

	s.metrics.Inc(MetricRefreshSuccess)
	return pair, nil
}

// Logout revokes every outstanding token for the account by bumping its
// token version, and records a logout event.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	if err := s.ready(); err != nil {
		return err
	}

	_, err := s.casUpdate(ctx, accountID, func(a *Account) error {
		a.TokenVersion++
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Inc(MetricLogout)
	s.emitEvent(ctx, accountID, EventLogout, true, nil, nil)
	return nil
}

// ValidateAccess checks an access token's signature, expiry, type marker
// and embedded version against the account's live version. The claims
// alone are never trusted for revocation decisions.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (*AccessIdentity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		s.metrics.Inc(MetricTokenRejected)
		return nil, mapTokenError(err)
	}

	account, err := s.loadByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.metrics.Inc(MetricTokenRejected)
			return nil, ErrTokenRevoked
		}
		return nil, err
	}

	if termErr := statusError(account.Status); termErr != nil {
		s.metrics.Inc(MetricTokenRejected)
		return nil, termErr
	}
	if account.TokenVersion != claims.Ver {
		s.metrics.Inc(MetricTokenRejected)
		return nil, ErrTokenRevoked
	}

	s.metrics.Inc(MetricTokenValidated)
	return &AccessIdentity{AccountID: account.ID, Role: account.Role}, nil
}

// ValidateRefresh checks a refresh token against the live version and
// returns the account id it belongs to. It does not rotate.
func (s *Service) ValidateRefresh(ctx context.Context, refreshToken string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return "", mapTokenError(err)
	}

	account, err := s.loadByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrTokenRevoked
		}
		return "", err
	}
	if account.TokenVersion != claims.Ver {
		return "", ErrTokenRevoked
	}

	return account.ID, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	default:
		return err
	}
}
