// Package common defines shared constants and sentinel errors used across
// zeroLock components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Conflict errors (duplicate identifiers at registration).
	ErrorEmailExists    = errors.New("email already exists")
	ErrorUsernameExists = errors.New("username already exists")

	// Validation errors (malformed SRP material or request fields).
	ErrorValidation = errors.New("validation failed")

	// Authentication errors. ErrorUnauthorized deliberately covers unknown
	// identifier, invalid proof, and expired or missing session alike, so the
	// response never tells a caller which part was wrong.
	ErrorUnauthorized  = errors.New("invalid credentials")
	ErrorAccountLocked = errors.New("account locked")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
)
