package authcore_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/quantfolio/authcore"
	"github.com/quantfolio/authcore/store/memstore"
)

func TestAuditSinkMirrorsTrail(t *testing.T) {
	sink := authcore.NewChannelSink(16)

	svc, err := authcore.New().
		WithConfig(testConfig()).
		WithStore(memstore.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer svc.Close()

	ctx := authcore.WithOriginAddress(context.Background(), "203.0.113.9")
	ctx = authcore.WithUserAgent(ctx, "quantfolio-cli/1.0")

	id := createActiveAccount(t, svc, testEmail, testPassword)
	if _, err := svc.Login(ctx, testEmail, testPassword, ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Kind != authcore.EventLoginSuccess {
				continue
			}
			if event.AccountID != id {
				t.Fatalf("expected account id %s, got %s", id, event.AccountID)
			}
			if event.IP != "203.0.113.9" {
				t.Fatalf("expected origin address on event, got %q", event.IP)
			}
			if event.UserAgent != "quantfolio-cli/1.0" {
				t.Fatalf("expected user agent on event, got %q", event.UserAgent)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for login_success on the sink")
		}
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	var buf bytes.Buffer
	sink := authcore.NewJSONWriterSink(&buf)

	svc, err := authcore.New().
		WithConfig(testConfig()).
		WithStore(memstore.New()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	createActiveAccount(t, svc, testEmail, testPassword)
	svc.Close()

	scanner := bufio.NewScanner(&buf)
	var kinds []string
	for scanner.Scan() {
		var event struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("invalid JSON line: %v", err)
		}
		kinds = append(kinds, event.Kind)
	}

	// Registration and activation both hit the sink before Close returned.
	if len(kinds) < 2 {
		t.Fatalf("expected at least 2 drained events, got %d (%v)", len(kinds), kinds)
	}
	if kinds[0] != string(authcore.EventAccountCreated) {
		t.Fatalf("expected account_created first, got %s", kinds[0])
	}
}
