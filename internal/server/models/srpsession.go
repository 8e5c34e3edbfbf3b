package models

import "time"

// SRPSession holds the server side of one in-flight SRP handshake between
// login-init and login-verify. SRPB is the server secret ephemeral and never
// leaves the server. At most one non-expired session exists per user.
type SRPSession struct {
	ID         string
	UserID     string
	SRPB       string
	SessionKey string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session is no longer usable for verification.
func (s *SRPSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
