package authcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/quantfolio/authcore"
	"github.com/quantfolio/authcore/store/memstore"
)

const (
	testEmail    = "user@example.com"
	testPassword = "correct-horse-battery"
)

func testConfig() authcore.Config {
	cfg := authcore.RelaxedConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Throttle.Enabled = false
	// Minimum legal hash cost keeps the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestService(t *testing.T, cfg authcore.Config) (*authcore.Service, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	svc, err := authcore.New().
		WithConfig(cfg).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc, store
}

func createActiveAccount(t *testing.T, svc *authcore.Service, email, pass string) string {
	t.Helper()

	summary, err := svc.Register(context.Background(), authcore.RegisterRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := svc.ActivateAccount(context.Background(), summary.ID); err != nil {
		t.Fatalf("ActivateAccount failed: %v", err)
	}
	return summary.ID
}

func advanceClock(svc *authcore.Service, base time.Time, offset *time.Duration) {
	authcore.SetClock(svc, func() time.Time {
		return base.Add(*offset)
	})
}

func lastEventKind(t *testing.T, store *memstore.Store, accountID string) authcore.EventKind {
	t.Helper()

	events := store.Events(accountID)
	if len(events) == 0 {
		t.Fatal("expected at least one security event")
	}
	return events[len(events)-1].Kind
}
