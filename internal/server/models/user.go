// Package models defines the persisted entities of the authentication core.
package models

import "time"

// User is the durable identity record. SRPSalt and SRPVerifier are always set
// together; the encrypted key blobs are opaque ciphertext produced by the
// client and never interpreted server-side.
type User struct {
	ID                  string
	Email               string
	Username            string
	SRPSalt             string
	SRPVerifier         string
	VaultKeyEncrypted   string
	PublicKey           string
	PrivateKeyEncrypted string
	FailedLoginAttempts int
	AccountLocked       bool
	LastFailedLogin     *time.Time
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
