// This file implements AuthService, which orchestrates SRP registration and
// the two-round-trip SRP login handshake, including account lockout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/cryptox"
	"github.com/cygnus07/zeroLock/internal/dbx"
	"github.com/cygnus07/zeroLock/internal/logging"
	"github.com/cygnus07/zeroLock/internal/server/config"
	"github.com/cygnus07/zeroLock/internal/server/models"
	"github.com/cygnus07/zeroLock/internal/server/repositories/repomanager"
	"github.com/cygnus07/zeroLock/internal/srp"
)

const registrationTokenBytes = 32

// RegistrationParams is the client-supplied material for completing a
// registration. The server stores all of it verbatim; the password itself
// never crosses the wire.
type RegistrationParams struct {
	Email               string
	Username            string
	Salt                string
	Verifier            string
	VaultKeyEncrypted   string
	PublicKey           string
	PrivateKeyEncrypted string
}

// LoginChallenge is the server's answer to login-init: everything the client
// needs to compute its proof.
type LoginChallenge struct {
	SessionID       string
	Salt            string
	ServerEphemeral string
	ExpiresAt       time.Time
}

// LoginResult is the outcome of a verified handshake.
type LoginResult struct {
	User        *models.User
	ServerProof string
}

// AuthService orchestrates the SRP authentication flows:
//   - CheckAvailability / RegisterInit / RegisterComplete: account creation
//   - LoginInit / LoginVerify: the two-round-trip handshake
//   - ChangePassword / DeleteAccount: credential lifecycle
type AuthService struct {
	db               *sql.DB
	repomanager      repomanager.RepositoryManager
	audit            *AuditService
	logger           logging.Logger
	sessionTTL       time.Duration
	lockoutThreshold int
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:               db,
		repomanager:      m,
		audit:            audit,
		logger:           logger.With("component", "auth"),
		sessionTTL:       cfg.SessionTTL,
		lockoutThreshold: cfg.LockoutThreshold,
	}
}

// FieldAvailability reports one identifier check, echoing the value so
// clients can correlate concurrent lookups.
type FieldAvailability struct {
	Value     string
	Available bool
}

// AvailabilityResult carries a check per requested identifier; a nil field
// was not asked about.
type AvailabilityResult struct {
	Email    *FieldAvailability
	Username *FieldAvailability
}

// CheckAvailability reports whether the given email and/or username are
// free. At least one must be supplied. Deliberately not audited: it is a
// read-only, non-sensitive lookup.
func (s *AuthService) CheckAvailability(ctx context.Context, email, username string) (*AvailabilityResult, error) {
	if email == "" && username == "" {
		return nil, common.ErrorValidation
	}

	repo := s.repomanager.Users(s.db)
	result := &AvailabilityResult{}

	if email != "" {
		taken, err := repo.EmailExists(ctx, email)
		if err != nil {
			return nil, common.ErrorInternal
		}
		result.Email = &FieldAvailability{Value: email, Available: !taken}
	}
	if username != "" {
		taken, err := repo.UsernameExists(ctx, username)
		if err != nil {
			return nil, common.ErrorInternal
		}
		result.Username = &FieldAvailability{Value: username, Available: !taken}
	}
	return result, nil
}

// RegisterInit checks both identifiers for conflicts and hands out an opaque
// registration token the client echoes back at register-complete. The token
// is not stored; it only ties the two requests together in the audit trail.
func (s *AuthService) RegisterInit(ctx context.Context, email, username string, meta ClientMeta) (string, error) {
	repo := s.repomanager.Users(s.db)

	if taken, err := repo.EmailExists(ctx, email); err != nil {
		return "", common.ErrorInternal
	} else if taken {
		s.audit.Record(ctx, models.ActionRegistrationInit, nil, false, meta, map[string]any{
			"email":  strings.ToLower(email),
			"reason": "email_exists",
		})
		return "", common.ErrorEmailExists
	}
	if taken, err := repo.UsernameExists(ctx, username); err != nil {
		return "", common.ErrorInternal
	} else if taken {
		s.audit.Record(ctx, models.ActionRegistrationInit, nil, false, meta, map[string]any{
			"username": username,
			"reason":   "username_exists",
		})
		return "", common.ErrorUsernameExists
	}

	token, err := cryptox.SecureToken(registrationTokenBytes)
	if err != nil {
		return "", common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionRegistrationInit, nil, true, meta, map[string]any{
		"email":    strings.ToLower(email),
		"username": username,
	})
	return token, nil
}

// RegisterComplete validates the SRP material and creates the account. The
// unique constraints decide conflicts, so two racing registrations cannot
// both succeed.
func (s *AuthService) RegisterComplete(ctx context.Context, params RegistrationParams, meta ClientMeta) (*models.User, error) {
	if !srp.ValidateParams(params.Salt, params.Verifier) {
		s.audit.Record(ctx, models.ActionUserCreated, nil, false, meta, map[string]any{
			"username": params.Username,
			"reason":   "invalid_srp_params",
		})
		return nil, common.ErrorValidation
	}

	user := &models.User{
		Email:               params.Email,
		Username:            params.Username,
		SRPSalt:             params.Salt,
		SRPVerifier:         params.Verifier,
		VaultKeyEncrypted:   params.VaultKeyEncrypted,
		PublicKey:           params.PublicKey,
		PrivateKeyEncrypted: params.PrivateKeyEncrypted,
	}

	repo := s.repomanager.Users(s.db)
	created, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorEmailExists) || errors.Is(err, common.ErrorUsernameExists) {
			s.audit.Record(ctx, models.ActionUserCreated, nil, false, meta, map[string]any{
				"username": params.Username,
				"reason":   "identifier_conflict",
			})
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.audit.Record(ctx, models.ActionUserCreated, &created.ID, true, meta, map[string]any{
		"username": created.Username,
	})
	return created, nil
}

// LoginInit starts a handshake: it resolves the identifier, refuses locked
// accounts, generates the server ephemeral, and durably stores the secret
// half so any instance can finish the handshake. Replacing a previous
// session and creating the new one happen in one transaction; the store
// upserts on user_id, so concurrent initiations for one user supersede each
// other instead of colliding on the unique index.
//
// An unknown identifier and a storage failure both come back as
// ErrorUnauthorized so the endpoint never confirms account existence.
func (s *AuthService) LoginInit(ctx context.Context, identifier string, meta ClientMeta) (*LoginChallenge, error) {
	user, err := s.repomanager.Users(s.db).FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.audit.Record(ctx, models.ActionLoginAttempt, nil, false, meta, map[string]any{
				"reason": "unknown_identifier",
			})
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if user.AccountLocked {
		s.audit.Record(ctx, models.ActionLoginAttempt, &user.ID, false, meta, map[string]any{
			"reason": "account_locked",
		})
		return nil, common.ErrorAccountLocked
	}

	serverPublic, serverSecret, err := srp.GenerateServerEphemeral(user.SRPVerifier)
	if err != nil {
		s.logger.Error(ctx, "ephemeral generation failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	var session *models.SRPSession
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.SRPSessions(tx)
		if err := repo.DeleteByUserID(ctx, user.ID); err != nil {
			return err
		}
		var createErr error
		session, createErr = repo.Create(ctx, user.ID, serverSecret, s.sessionTTL)
		return createErr
	})
	if err != nil {
		s.logger.Error(ctx, "session creation failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionLoginAttempt, &user.ID, true, meta, nil)

	return &LoginChallenge{
		SessionID:       session.ID,
		Salt:            user.SRPSalt,
		ServerEphemeral: serverPublic,
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// LoginVerify finishes a handshake. The session is single-use: it is
// consumed before the proof is checked, so a failed proof cannot be retried
// against the same challenge. A missing or expired session, an unknown user,
// and a bad proof all come back as ErrorUnauthorized.
func (s *AuthService) LoginVerify(ctx context.Context, sessionID, clientEphemeral, clientProof string, meta ClientMeta) (*LoginResult, error) {
	session, err := s.repomanager.SRPSessions(s.db).Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.audit.Record(ctx, models.ActionLoginFailed, nil, false, meta, map[string]any{
				"reason": "session_expired",
			})
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	// Consume first. Whatever happens below, this challenge is spent.
	if err := s.repomanager.SRPSessions(s.db).Delete(ctx, session.ID); err != nil {
		s.logger.Error(ctx, "session consumption failed", "session_id", session.ID, "error", err)
		return nil, common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.db).FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if user.AccountLocked {
		s.audit.Record(ctx, models.ActionLoginFailed, &user.ID, false, meta, map[string]any{
			"reason": "account_locked",
		})
		return nil, common.ErrorAccountLocked
	}

	result := srp.VerifyClientProof(clientEphemeral, clientProof, session.SRPB,
		user.SRPVerifier, user.SRPSalt, user.Username)
	if !result.Verified {
		return nil, s.handleFailedProof(ctx, user, meta)
	}

	if err := s.repomanager.Users(s.db).ResetFailedLogins(ctx, user.ID); err != nil {
		s.logger.Error(ctx, "failed-login reset failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionLoginSuccess, &user.ID, true, meta, nil)

	return &LoginResult{User: user, ServerProof: result.ServerProof}, nil
}

func (s *AuthService) handleFailedProof(ctx context.Context, user *models.User, meta ClientMeta) error {
	attempts, locked, err := s.repomanager.Users(s.db).IncrementFailedLogins(ctx, user.ID, s.lockoutThreshold)
	if err != nil {
		s.logger.Error(ctx, "failed-login increment failed", "user_id", user.ID, "error", err)
		return common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionLoginFailed, &user.ID, false, meta, map[string]any{
		"reason":   "invalid_proof",
		"attempts": attempts,
	})
	if locked {
		s.audit.Record(ctx, models.ActionAccountLocked, &user.ID, false, meta, map[string]any{
			"attempts": attempts,
		})
		s.logger.Warn(ctx, "account locked after repeated failures",
			"user_id", user.ID, "attempts", attempts)
	}
	return common.ErrorUnauthorized
}

// ChangePassword swaps the account's SRP credentials and discards any
// in-flight handshake, which would otherwise still verify against the old
// verifier.
func (s *AuthService) ChangePassword(ctx context.Context, userID, salt, verifier string, meta ClientMeta) error {
	if !srp.ValidateParams(salt, verifier) {
		return common.ErrorValidation
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdateSRPCredentials(ctx, userID, salt, verifier); err != nil {
			return err
		}
		return s.repomanager.SRPSessions(tx).DeleteByUserID(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionPasswordChanged, &userID, true, meta, nil)
	return nil
}

// DeleteAccount removes the user; handshake sessions cascade with the row.
// The audit record carries the identity in details because its user_id
// reference would be nulled by the deletion.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string, meta ClientMeta) error {
	deleted, err := s.repomanager.Users(s.db).Delete(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	s.audit.Record(ctx, models.ActionAccountDeleted, nil, true, meta, map[string]any{
		"email":    deleted.Email,
		"username": deleted.Username,
	})
	return nil
}
