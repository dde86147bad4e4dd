package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config carries every tunable of the account-security core. Instances are
// configured once and treated as immutable after Build.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	Throttle ThrottleConfig
	MFA      MFAConfig
	Account  AccountConfig
	Store    StoreConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the versioned token issuer.
type TokenConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default) or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures the argon2id hasher and password policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	// HistoryCapacity bounds the prior-hash list used for reuse rejection;
	// the oldest entry is evicted on overflow.
	HistoryCapacity int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig configures the per-account lockout state machine.
type LockoutConfig struct {
	// Threshold is the consecutive-failure count that triggers a lock.
	Threshold int
	// LockDuration is how long an account stays locked; the transition
	// back to active is evaluated lazily on the next attempt.
	LockDuration time.Duration
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig configures the Redis-backed request-rate guard. The
// throttle is independent of and precedes the lockout policy: it defends
// against distributed brute force from one origin, while lockout defends
// a single account regardless of origin.
type ThrottleConfig struct {
	Enabled bool

	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Registration and MFA ceilings are tighter than login.
	RegisterMaxAttempts int
	RegisterWindow      time.Duration

	MFAMaxAttempts int
	MFAWindow      time.Duration
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig configures TOTP validation and backup code generation.
type MFAConfig struct {
	Issuer string
	Digits int
	Period int
	// Skew is the number of adjacent time steps accepted around now to
	// tolerate clock drift.
	Skew             int
	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig configures registration defaults.
type AccountConfig struct {
	DefaultRole Role
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds persistence calls and the transient-failure retry
// loop applied at the store boundary.
type StoreConfig struct {
	OpTimeout     time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process atomic counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:     5 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "authcore",
		},
		Password: PasswordConfig{
			Memory:          64 * 1024,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			MinLength:       10,
			HistoryCapacity: 5,
		},
		Lockout: LockoutConfig{
			Threshold:    5,
			LockDuration: 30 * time.Minute,
		},
		Throttle: ThrottleConfig{
			Enabled:             true,
			LoginMaxAttempts:    10,
			LoginWindow:         15 * time.Minute,
			RegisterMaxAttempts: 5,
			RegisterWindow:      time.Hour,
			MFAMaxAttempts:      5,
			MFAWindow:           5 * time.Minute,
		},
		MFA: MFAConfig{
			Issuer:           "authcore",
			Digits:           6,
			Period:           30,
			Skew:             1,
			BackupCodeCount:  10,
			BackupCodeLength: 10,
		},
		Account: AccountConfig{
			DefaultRole: RoleUser,
		},
		Store: StoreConfig{
			OpTimeout:     3 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  50 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// StrictConfig returns the production-leaning preset: 30 minute lockout
// and the default argon2id work factor.
func StrictConfig() Config {
	return defaultConfig()
}

// RelaxedConfig returns the development preset: 5 minute lockout and a
// cheaper hash work factor.
func RelaxedConfig() Config {
	cfg := defaultConfig()
	cfg.Lockout.LockDuration = 5 * time.Minute
	cfg.Password.Memory = 16 * 1024
	cfg.Password.Time = 1
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the core cannot operate under.
func (c *Config) Validate() error {
	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must exceed AccessTTL")
	}
	switch c.Token.SigningMethod {
	case "ed25519":
		if len(c.Token.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.Token.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	case "hs256":
		if len(c.Token.PrivateKey) < 32 {
			return errors.New("hs256 requires PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported token signing method")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.HistoryCapacity < 1 {
		return errors.New("Password HistoryCapacity must be >= 1")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout LockDuration must be > 0")
	}

	// Throttle
	if c.Throttle.Enabled {
		if c.Throttle.LoginMaxAttempts <= 0 || c.Throttle.LoginWindow <= 0 {
			return errors.New("Throttle login ceiling and window must be > 0")
		}
		if c.Throttle.RegisterMaxAttempts <= 0 || c.Throttle.RegisterWindow <= 0 {
			return errors.New("Throttle registration ceiling and window must be > 0")
		}
		if c.Throttle.MFAMaxAttempts <= 0 || c.Throttle.MFAWindow <= 0 {
			return errors.New("Throttle mfa ceiling and window must be > 0")
		}
		if c.Throttle.LoginMaxAttempts <= c.Lockout.Threshold {
			// The throttle would otherwise mask the lockout transition.
			return errors.New("Throttle LoginMaxAttempts must exceed Lockout Threshold")
		}
	}

	// MFA
	if strings.TrimSpace(c.MFA.Issuer) == "" {
		return errors.New("MFA Issuer is required")
	}
	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		return errors.New("MFA Digits must be 6 or 8")
	}
	if c.MFA.Period < 15 {
		return errors.New("MFA Period must be >= 15 seconds")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("MFA Skew must be between 0 and 2")
	}
	if c.MFA.BackupCodeCount < 1 {
		return errors.New("MFA BackupCodeCount must be >= 1")
	}
	if c.MFA.BackupCodeLength < 8 {
		return errors.New("MFA BackupCodeLength must be >= 8")
	}

	// Account
	if !c.Account.DefaultRole.Valid() {
		return errors.New("Account DefaultRole is invalid")
	}

	// Store
	if c.Store.OpTimeout <= 0 {
		return errors.New("Store OpTimeout must be > 0")
	}
	if c.Store.RetryAttempts < 0 {
		return errors.New("Store RetryAttempts must be >= 0")
	}
	if c.Store.RetryAttempts > 0 && c.Store.RetryBackoff <= 0 {
		return errors.New("Store RetryBackoff must be > 0 when retries are enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
