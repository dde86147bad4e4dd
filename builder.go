package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/authcore/internal/audit"
	"github.com/quantfolio/authcore/internal/rate"
	"github.com/quantfolio/authcore/lockout"
	"github.com/quantfolio/authcore/mfa"
	"github.com/quantfolio/authcore/password"
	"github.com/quantfolio/authcore/token"
)

// Builder assembles a [Service]. Collaborators are supplied with WithX
// calls and the whole graph is validated once in Build.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     Store
	auditSink AuditSink

	built bool
}

// New starts a builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing the request throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore supplies the account store. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithAuditSink supplies the async mirror for security events. The
// durable trail in the store is written regardless.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the service. The builder
// is single-use.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if cfg.Throttle.Enabled && b.redis == nil {
		return nil, errors.New("throttle requires redis client")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	issuer, err := token.NewIssuer(token.Config{
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	totp, err := mfa.NewTOTP(mfa.Config{
		Issuer: cfg.MFA.Issuer,
		Digits: cfg.MFA.Digits,
		Period: cfg.MFA.Period,
		Skew:   cfg.MFA.Skew,
	})
	if err != nil {
		return nil, err
	}

	policy, err := lockout.New(cfg.Lockout.Threshold, cfg.Lockout.LockDuration)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:  cfg,
		store:   b.store,
		hasher:  hasher,
		issuer:  issuer,
		totp:    totp,
		lockout: policy,
		metrics: NewMetrics(cfg.Metrics),
		clock:   nil,
	}

	if cfg.Throttle.Enabled {
		svc.throttle = rate.New(b.redis, map[string]rate.Rule{
			throttleLogin:    {Max: cfg.Throttle.LoginMaxAttempts, Window: cfg.Throttle.LoginWindow},
			throttleRegister: {Max: cfg.Throttle.RegisterMaxAttempts, Window: cfg.Throttle.RegisterWindow},
			throttleMFA:      {Max: cfg.Throttle.MFAMaxAttempts, Window: cfg.Throttle.MFAWindow},
		})
	}

	svc.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	return svc, nil
}
