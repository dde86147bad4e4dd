// Package token signs and validates the versioned access/refresh token
// pair. Tokens are stateless JWTs; revocation works by bumping the
// account's token version, which the core compares against the ver claim
// on every validation.
package token
