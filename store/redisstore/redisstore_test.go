package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/authcore"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func seedAccount(t *testing.T, s *Store, id, email string) {
	t.Helper()

	err := s.CreateAccount(context.Background(), &authcore.Account{
		ID:        id,
		Email:     email,
		Role:      authcore.RoleUser,
		Status:    authcore.AccountActive,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
}

func TestCreateAndLookup(t *testing.T) {
	s, _ := newTestStore(t)
	seedAccount(t, s, "a1", "User@Example.com")

	account, err := s.GetAccountByEmail(context.Background(), "USER@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if account.ID != "a1" || account.Email != "user@example.com" {
		t.Fatalf("unexpected account: id=%s email=%s", account.ID, account.Email)
	}
	if account.Revision != 1 {
		t.Fatalf("expected initial revision 1, got %d", account.Revision)
	}

	if _, err := s.GetAccountByID(context.Background(), "missing"); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	s, _ := newTestStore(t)
	seedAccount(t, s, "a1", "user@example.com")

	err := s.CreateAccount(context.Background(), &authcore.Account{ID: "a2", Email: "User@example.com"})
	if !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCASUpdateBumpsRevision(t *testing.T) {
	s, _ := newTestStore(t)
	seedAccount(t, s, "a1", "user@example.com")

	updated, err := s.CASUpdateAccount(context.Background(), "a1", func(a *authcore.Account) error {
		a.FailedLogins = 3
		return nil
	})
	if err != nil {
		t.Fatalf("CASUpdateAccount failed: %v", err)
	}
	if updated.Revision != 2 || updated.FailedLogins != 3 {
		t.Fatalf("unexpected commit: rev=%d failures=%d", updated.Revision, updated.FailedLogins)
	}

	reloaded, _ := s.GetAccountByID(context.Background(), "a1")
	if reloaded.Revision != 2 || reloaded.FailedLogins != 3 {
		t.Fatal("committed state not visible on reload")
	}
}

func TestCASMutatorErrorLeavesStateUntouched(t *testing.T) {
	s, _ := newTestStore(t)
	seedAccount(t, s, "a1", "user@example.com")

	boom := errors.New("boom")
	_, err := s.CASUpdateAccount(context.Background(), "a1", func(a *authcore.Account) error {
		a.FailedLogins = 42
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error verbatim, got %v", err)
	}

	current, _ := s.GetAccountByID(context.Background(), "a1")
	if current.FailedLogins != 0 || current.Revision != 1 {
		t.Fatal("failed mutation must not be committed")
	}
}

func TestCASUnknownAccount(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.CASUpdateAccount(context.Background(), "missing", func(a *authcore.Account) error {
		return nil
	})
	if !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestCASEmailChangeReindexes(t *testing.T) {
	s, _ := newTestStore(t)
	seedAccount(t, s, "a1", "old@example.com")

	_, err := s.CASUpdateAccount(context.Background(), "a1", func(a *authcore.Account) error {
		a.Email = "new@example.com"
		return nil
	})
	if err != nil {
		t.Fatalf("CASUpdateAccount failed: %v", err)
	}

	if _, err := s.GetAccountByEmail(context.Background(), "old@example.com"); !errors.Is(err, authcore.ErrAccountNotFound) {
		t.Fatalf("old email must be gone, got %v", err)
	}
	account, err := s.GetAccountByEmail(context.Background(), "new@example.com")
	if err != nil {
		t.Fatalf("new email lookup failed: %v", err)
	}
	if account.ID != "a1" {
		t.Fatalf("expected a1, got %s", account.ID)
	}
}

func TestEventsAppendOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	kinds := []authcore.EventKind{
		authcore.EventLoginFailure,
		authcore.EventLoginFailure,
		authcore.EventAccountLocked,
	}
	for _, kind := range kinds {
		err := s.AppendSecurityEvent(ctx, authcore.SecurityEvent{AccountID: "a1", Kind: kind})
		if err != nil {
			t.Fatalf("AppendSecurityEvent failed: %v", err)
		}
	}
	// Trail on a different account stays out of a1's listing.
	s.AppendSecurityEvent(ctx, authcore.SecurityEvent{AccountID: "a2", Kind: authcore.EventLoginSuccess})

	events, err := s.Events(ctx, "a1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events, got %d", len(kinds), len(events))
	}
	for i, kind := range kinds {
		if events[i].Kind != kind {
			t.Fatalf("event %d: expected %s, got %s", i, kind, events[i].Kind)
		}
	}
}

func TestBackendDownWrapsStoreUnavailable(t *testing.T) {
	s, mr := newTestStore(t)
	seedAccount(t, s, "a1", "user@example.com")
	mr.Close()

	if _, err := s.GetAccountByID(context.Background(), "a1"); !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := s.CASUpdateAccount(context.Background(), "a1", func(a *authcore.Account) error { return nil }); !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
