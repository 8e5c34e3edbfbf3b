package models

import "time"

// SecurityAction enumerates the audit-log event kinds.
type SecurityAction string

const (
	// Authentication.
	ActionLoginAttempt SecurityAction = "login_attempt"
	ActionLoginSuccess SecurityAction = "login_success"
	ActionLoginFailed  SecurityAction = "login_failed"
	ActionLogout       SecurityAction = "logout"

	// Account management.
	ActionRegistrationInit SecurityAction = "user_registration_init"
	ActionUserCreated      SecurityAction = "user_created"
	ActionAccountLocked    SecurityAction = "account_locked"
	ActionAccountUnlocked  SecurityAction = "account_unlocked"
	ActionAccountDeleted   SecurityAction = "account_deleted"
	ActionPasswordChanged  SecurityAction = "password_changed"

	// Vault operations (emitted by the vault service, shared enum).
	ActionVaultAccessed    SecurityAction = "vault_accessed"
	ActionVaultKeyUpdated  SecurityAction = "vault_key_updated"
	ActionVaultItemCreated SecurityAction = "vault_item_created"
	ActionVaultItemDeleted SecurityAction = "vault_item_deleted"
	ActionVaultItemShared  SecurityAction = "vault_item_shared"

	// Security events.
	ActionSuspiciousActivity SecurityAction = "suspicious_activity"
	ActionRateLimitExceeded  SecurityAction = "rate_limit_exceeded"
	ActionInvalidToken       SecurityAction = "invalid_token"
)

// ProtectedActions are exempt from retention pruning and kept indefinitely.
var ProtectedActions = []SecurityAction{
	ActionAccountLocked,
	ActionPasswordChanged,
	ActionAccountDeleted,
	ActionSuspiciousActivity,
}

// SecurityLog is one immutable audit record. UserID is nil for events that
// precede identity resolution (e.g. a login attempt for an unknown
// identifier). Details carries a small structured payload.
type SecurityLog struct {
	ID        string
	UserID    *string
	Action    SecurityAction
	Success   bool
	IPAddress string
	UserAgent string
	Details   map[string]any
	Timestamp time.Time
}
