package mfa

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config holds TOTP validation parameters. Digits must be 6 or 8; Skew
// is the number of adjacent time steps accepted to absorb clock drift.
type Config struct {
	Issuer string
	Digits int
	Period int
	Skew   int
}

// TOTP generates enrollment secrets and verifies one-time codes. Safe
// for concurrent use.
type TOTP struct {
	config Config
}

func NewTOTP(cfg Config) (*TOTP, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("totp issuer is required")
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("totp digits must be 6 or 8")
	}
	if cfg.Period < 15 {
		return nil, errors.New("totp period must be >= 15 seconds")
	}
	if cfg.Skew < 0 || cfg.Skew > 2 {
		return nil, errors.New("totp skew must be between 0 and 2")
	}
	return &TOTP{config: cfg}, nil
}

// GenerateSecret creates a fresh base32 secret and the otpauth
// provisioning URI for the given account label.
func (t *TOTP) GenerateSecret(account string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.config.Issuer,
		AccountName: account,
		Period:      uint(t.config.Period),
		Digits:      t.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify reports whether code is valid for the secret at now. Codes of
// the wrong length or with non-digit characters read as invalid, not as
// an error.
func (t *TOTP) Verify(secret, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != t.config.Digits || !isNumeric(trimmed) {
		return false, nil
	}
	if secret == "" {
		return false, errors.New("empty totp secret")
	}

	return totp.ValidateCustom(trimmed, secret, now, totp.ValidateOpts{
		Period:    uint(t.config.Period),
		Skew:      uint(t.config.Skew),
		Digits:    t.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
}

func (t *TOTP) digits() otp.Digits {
	if t.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
