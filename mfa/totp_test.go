package mfa

import (
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func testEngine(t *testing.T) *TOTP {
	t.Helper()
	engine, err := NewTOTP(Config{
		Issuer: "quantfolio",
		Digits: 6,
		Period: 30,
		Skew:   1,
	})
	if err != nil {
		t.Fatalf("NewTOTP failed: %v", err)
	}
	return engine
}

func TestGenerateSecretAndVerify(t *testing.T) {
	engine := testEngine(t)

	secret, uri, err := engine.GenerateSecret("user@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if secret == "" {
		t.Fatal("expected non-empty secret")
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") || !strings.Contains(uri, "quantfolio") {
		t.Fatalf("unexpected provisioning URI: %s", uri)
	}

	now := time.Now()
	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	ok, err := engine.Verify(secret, code, now)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected current code to verify")
	}
}

func TestVerifySkewTolerance(t *testing.T) {
	engine := testEngine(t)
	secret, _, err := engine.GenerateSecret("user@example.com")
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}

	now := time.Now()
	previous, err := totp.GenerateCode(secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}

	ok, err := engine.Verify(secret, previous, now)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected one-step-old code within skew to verify")
	}

	stale, err := totp.GenerateCode(secret, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("GenerateCode failed: %v", err)
	}
	ok, err = engine.Verify(secret, stale, now)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected code outside skew to be rejected")
	}
}

func TestVerifyMalformedCodes(t *testing.T) {
	engine := testEngine(t)
	secret, _, _ := engine.GenerateSecret("user@example.com")

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		ok, err := engine.Verify(secret, code, time.Now())
		if err != nil {
			t.Fatalf("Verify(%q) errored: %v", code, err)
		}
		if ok {
			t.Fatalf("malformed code %q must not verify", code)
		}
	}
}

func TestVerifyEmptySecretErrors(t *testing.T) {
	engine := testEngine(t)
	if _, err := engine.Verify("", "123456", time.Now()); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewTOTPValidation(t *testing.T) {
	if _, err := NewTOTP(Config{Issuer: "", Digits: 6, Period: 30, Skew: 1}); err == nil {
		t.Fatal("expected empty issuer to be rejected")
	}
	if _, err := NewTOTP(Config{Issuer: "x", Digits: 7, Period: 30, Skew: 1}); err == nil {
		t.Fatal("expected 7 digits to be rejected")
	}
	if _, err := NewTOTP(Config{Issuer: "x", Digits: 6, Period: 5, Skew: 1}); err == nil {
		t.Fatal("expected short period to be rejected")
	}
}
