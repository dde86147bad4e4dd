// Package mfa implements second-factor verification: TOTP code checking
// with configurable drift tolerance, and single-use backup recovery
// codes stored as salted digests.
package mfa
