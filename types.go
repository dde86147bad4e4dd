package authcore

import (
	"context"
	"io"
	"strings"
	"time"

	internalaudit "github.com/quantfolio/authcore/internal/audit"
)

// AccountStatus is the lifecycle state of an account. Locked is a sub-state
// reachable only from Active and returning only to Active; Suspended and
// Inactive are administrative.
type AccountStatus uint8

const (
	// AccountPendingVerification is the state of a freshly registered account.
	AccountPendingVerification AccountStatus = iota
	// AccountActive is the normal operating state.
	AccountActive
	// AccountLocked is entered when consecutive login failures reach the
	// lockout threshold, and left lazily once the lock expiry has passed.
	AccountLocked
	// AccountSuspended rejects all logins until administratively reversed.
	AccountSuspended
	// AccountInactive is an administratively deactivated account.
	AccountInactive
)

// String returns the wire name of the status.
func (s AccountStatus) String() string {
	switch s {
	case AccountPendingVerification:
		return "pending_verification"
	case AccountActive:
		return "active"
	case AccountLocked:
		return "locked"
	case AccountSuspended:
		return "suspended"
	case AccountInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Role is the coarse authorization role carried in issued tokens.
type Role string

const (
	// RoleGuest is an exported role accepted by the account-security core.
	RoleGuest Role = "guest"
	// RoleUser is the default role for newly registered accounts.
	RoleUser Role = "user"
	// RolePremium is an exported role accepted by the account-security core.
	RolePremium Role = "premium"
	// RoleAdmin is an exported role accepted by the account-security core.
	RoleAdmin Role = "admin"
	// RoleSecurity is an exported role accepted by the account-security core.
	RoleSecurity Role = "security"
)

// Valid reports whether the role is one of the known enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleUser, RolePremium, RoleAdmin, RoleSecurity:
		return true
	default:
		return false
	}
}

// BackupCodeRecord stores the SHA-256 hash of a single unused backup code.
// The plaintext is never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// Account is the identity root mutated by every login attempt, credential
// change, MFA toggle, and explicit revoke. All mutations go through
// [Store.CASUpdateAccount] so concurrent updates of the same account are
// applied as single atomic units.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus

	FailedLogins int
	LockedUntil  time.Time

	// TokenVersion only ever increases; bumping it invalidates every
	// previously issued token for the account.
	TokenVersion int64

	MFAEnabled  bool
	MFASecret   string
	BackupCodes []BackupCodeRecord

	// PasswordHistory holds prior credential hashes, most recent first,
	// bounded by the configured history capacity.
	PasswordHistory []string

	LastLoginAt   time.Time
	LastRefreshAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Revision is the persistence CAS counter; it is owned by the store
	// and advanced on every committed mutation.
	Revision int64
}

// Clone returns a deep copy of the account. Stores hand out clones so a
// caller can never mutate persisted state outside a CAS update.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if len(a.BackupCodes) > 0 {
		out.BackupCodes = make([]BackupCodeRecord, len(a.BackupCodes))
		copy(out.BackupCodes, a.BackupCodes)
	}
	if len(a.PasswordHistory) > 0 {
		out.PasswordHistory = make([]string, len(a.PasswordHistory))
		copy(out.PasswordHistory, a.PasswordHistory)
	}
	return &out
}

// Locked reports whether the account is locked at the given instant.
func (a *Account) Locked(now time.Time) bool {
	return a.Status == AccountLocked && now.Before(a.LockedUntil)
}

// NormalizeEmail lowercases and trims an email identifier. Every lookup
// and every stored Account.Email uses the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountSummary is the public projection of an account returned to
// callers. It never carries credential material.
type AccountSummary struct {
	ID          string
	Email       string
	Role        Role
	Status      AccountStatus
	MFAEnabled  bool
	LastLoginAt time.Time
}

func summarize(a *Account) AccountSummary {
	return AccountSummary{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role,
		Status:      a.Status,
		MFAEnabled:  a.MFAEnabled,
		LastLoginAt: a.LastLoginAt,
	}
}

// TokenPair is the transient access/refresh pair minted by the token
// issuer. Tokens are opaque strings to external callers.
type TokenPair struct {
	Access  string
	Refresh string
}

// LoginResult is returned by [Service.Login]. When MFARequired is true no
// tokens have been issued and the caller must retry with an MFA code;
// this is an expected branch, not a failure.
type LoginResult struct {
	Tokens      TokenPair
	MFARequired bool
	Account     AccountSummary
}

// AccessIdentity is the decoded identity of a validated access token.
type AccessIdentity struct {
	AccountID string
	Role      Role
}

// RegisterRequest is the input for [Service.Register].
type RegisterRequest struct {
	Email    string
	Password string
	Role     Role // defaults to Config.Account.DefaultRole when empty
}

// MFAEnrollment is returned by [Service.BeginMFAEnrollment]. The secret is
// pending until confirmed with a valid code.
type MFAEnrollment struct {
	SecretBase32 string
	ProvisionURI string
}

// EventKind names a security-relevant occurrence in an account's audit
// trail.
type EventKind = internalaudit.Kind

const (
	// EventLoginSuccess is recorded on every successful login.
	EventLoginSuccess EventKind = "login_success"
	// EventLoginFailure is recorded on a failed credential check below the
	// lockout threshold.
	EventLoginFailure EventKind = "login_failure"
	// EventAccountLocked replaces the plain failure event on the attempt
	// that reaches the lockout threshold.
	EventAccountLocked EventKind = "account_locked"
	// EventPasswordChange is recorded on a successful password change.
	EventPasswordChange EventKind = "password_change"
	// EventMFAEnabled is recorded when MFA enrollment is confirmed.
	EventMFAEnabled EventKind = "mfa_enabled"
	// EventMFADisabled is recorded when MFA is disabled.
	EventMFADisabled EventKind = "mfa_disabled"
	// EventBackupCodeUsed is recorded when a backup code is consumed.
	EventBackupCodeUsed EventKind = "backup_code_used"
	// EventBackupCodesRegenerated is recorded when the unused backup code
	// set is replaced wholesale.
	EventBackupCodesRegenerated EventKind = "backup_codes_regenerated"
	// EventLogout is recorded when all tokens for an account are revoked.
	EventLogout EventKind = "logout"
	// EventAccountCreated is recorded on registration.
	EventAccountCreated EventKind = "account_created"
	// EventAccountActivated is recorded on pending -> active transition.
	EventAccountActivated EventKind = "account_activated"
	// EventAccountSuspended is recorded on administrative suspension.
	EventAccountSuspended EventKind = "account_suspended"
	// EventAccountDeactivated is recorded on administrative deactivation.
	EventAccountDeactivated EventKind = "account_deactivated"
	// EventAccountReinstated is recorded when a suspended or inactive
	// account is administratively reactivated.
	EventAccountReinstated EventKind = "account_reinstated"
)

// SecurityEvent is an append-only fact in an account's audit trail.
// Entries are immutable once written; retention is the persistence
// collaborator's concern.
type SecurityEvent = internalaudit.Event

// AuditSink receives [SecurityEvent] values from the service's async
// audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Store is the persistence collaborator consumed by the service. The core
// never chooses a persistence technology; it relies on these operations
// and on CASUpdateAccount applying the mutator as one atomic unit
// relative to other concurrent mutations of the same account.
type Store interface {
	// GetAccountByEmail looks up an account by normalized email.
	// Returns ErrAccountNotFound when absent.
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	// GetAccountByID looks up an account by id.
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	// CreateAccount persists a new account. Returns ErrDuplicateEmail when
	// the normalized email is already registered.
	CreateAccount(ctx context.Context, account *Account) error
	// CASUpdateAccount applies mutate to the current account state and
	// commits the result atomically. When the mutator returns an error the
	// account is left untouched and that error is returned verbatim.
	// The committed account (with advanced Revision) is returned.
	CASUpdateAccount(ctx context.Context, id string, mutate func(*Account) error) (*Account, error)
	// AppendSecurityEvent appends one immutable entry to the account's
	// audit trail.
	AppendSecurityEvent(ctx context.Context, event SecurityEvent) error
}
