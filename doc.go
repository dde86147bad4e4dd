// Package authcore is an embeddable account-security core: credential
// verification with argon2id, TOTP/backup-code MFA, per-account lockout,
// Redis-backed request throttling, versioned token issuance with bulk
// revocation, and an append-only security event trail.
//
// # Construction
//
// Services are assembled with the builder:
//
//	svc, err := authcore.New().
//		WithConfig(authcore.StrictConfig()).
//		WithStore(store).
//		WithRedis(redisClient).
//		Build()
//
// The store is any [Store] implementation; store/memstore and
// store/redisstore ship with the module. Request metadata (origin
// address, user agent) travels on the context via [WithOriginAddress]
// and [WithUserAgent].
//
// # Concurrency
//
// Every mutation of an account (failure counters, lockout, token
// version, backup codes, credential history) is applied through the
// store's CAS update as a single atomic unit, so concurrent requests
// against the same account compose correctly.
package authcore
