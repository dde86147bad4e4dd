// Package memstore is the in-memory reference implementation of the
// account store. It backs tests and single-process deployments; the
// CAS contract matches the Redis implementation.
package memstore

import (
	"context"
	"sync"

	"github.com/quantfolio/authcore"
)

// Store keeps accounts and security events in process memory. All
// methods are safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*authcore.Account // by id
	byEmail  map[string]string            // normalized email -> id
	events   []authcore.SecurityEvent
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*authcore.Account),
		byEmail:  make(map[string]string),
	}
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[authcore.NormalizeEmail(email)]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return s.accounts[id].Clone(), nil
}

func (s *Store) GetAccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Store) CreateAccount(ctx context.Context, account *authcore.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := authcore.NormalizeEmail(account.Email)
	if _, exists := s.byEmail[email]; exists {
		return authcore.ErrDuplicateEmail
	}
	if _, exists := s.accounts[account.ID]; exists {
		return authcore.ErrDuplicateEmail
	}

	stored := account.Clone()
	stored.Email = email
	stored.Revision = 1
	s.accounts[stored.ID] = stored
	s.byEmail[email] = stored.ID

	account.Revision = stored.Revision
	return nil
}

// CASUpdateAccount applies mutate to a copy of the account under the
// store lock and commits it with a bumped revision. Concurrent updates
// serialize; each mutator observes the previous committed state.
func (s *Store) CASUpdateAccount(ctx context.Context, id string, mutate func(*authcore.Account) error) (*authcore.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}

	updated := current.Clone()
	if err := mutate(updated); err != nil {
		return nil, err
	}

	updated.Revision = current.Revision + 1
	s.accounts[id] = updated

	if updated.Email != current.Email {
		delete(s.byEmail, current.Email)
		s.byEmail[updated.Email] = id
	}

	return updated.Clone(), nil
}

func (s *Store) AppendSecurityEvent(ctx context.Context, event authcore.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of the recorded trail, optionally filtered
// by account id.
func (s *Store) Events(accountID string) []authcore.SecurityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]authcore.SecurityEvent, 0, len(s.events))
	for _, e := range s.events {
		if accountID == "" || e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}
