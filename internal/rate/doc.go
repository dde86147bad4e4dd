// Package rate implements the Redis-backed request throttle used to cap
// login, registration and MFA attempt rates per origin or subject.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on the first hit. Keys
// are "rt:<scope>:<key>". RetryAfter on rejection is the remaining TTL of
// the current window.
//
// # What this package must NOT do
//
//   - Track per-account failure counts (the lockout policy owns those).
//   - Be imported outside this module.
package rate
