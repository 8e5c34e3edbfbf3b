package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cygnus07/zeroLock/internal/common"
	"github.com/cygnus07/zeroLock/internal/logging"
	"github.com/cygnus07/zeroLock/internal/server/models"
	"github.com/cygnus07/zeroLock/internal/server/services"
)

const maxBodyBytes = 64 << 10

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// authSvc is the slice of AuthService the handlers call; kept as an
// interface so handler tests can fake it.
type authSvc interface {
	CheckAvailability(ctx context.Context, email, username string) (*services.AvailabilityResult, error)
	RegisterInit(ctx context.Context, email, username string, meta services.ClientMeta) (string, error)
	RegisterComplete(ctx context.Context, params services.RegistrationParams, meta services.ClientMeta) (*models.User, error)
	LoginInit(ctx context.Context, identifier string, meta services.ClientMeta) (*services.LoginChallenge, error)
	LoginVerify(ctx context.Context, sessionID, clientEphemeral, clientProof string, meta services.ClientMeta) (*services.LoginResult, error)
}

type auditSvc interface {
	Record(ctx context.Context, action models.SecurityAction, userID *string, success bool, meta services.ClientMeta, details map[string]any)
}

type handlers struct {
	auth     authSvc
	audit    auditSvc
	logger   logging.Logger
	validate *validator.Validate
}

func newHandlers(auth authSvc, audit auditSvc, logger logging.Logger) *handlers {
	v := validator.New()
	v.RegisterValidation("username_chars", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &handlers{
		auth:     auth,
		audit:    audit,
		logger:   logger.With("component", "httpapi"),
		validate: v,
	}
}

// --- request/response DTOs ---

type checkAvailabilityRequest struct {
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Username string `json:"username" validate:"omitempty,min=3,max=50,username_chars"`
}

type fieldAvailability struct {
	Available bool   `json:"available"`
	Value     string `json:"value"`
}

type checkAvailabilityResponse struct {
	Email    *fieldAvailability `json:"email,omitempty"`
	Username *fieldAvailability `json:"username,omitempty"`
}

type registerInitRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,min=3,max=50,username_chars"`
}

type registerInitResponse struct {
	RegistrationToken string `json:"registrationToken"`
}

type registerCompleteRequest struct {
	Email               string `json:"email" validate:"required,email,max=255"`
	Username            string `json:"username" validate:"required,min=3,max=50,username_chars"`
	Salt                string `json:"srpSalt" validate:"required,len=64,hexadecimal"`
	Verifier            string `json:"srpVerifier" validate:"required,min=256,max=1024,hexadecimal"`
	VaultKeyEncrypted   string `json:"vaultKeyEncrypted" validate:"required"`
	PublicKey           string `json:"publicKey" validate:"required"`
	PrivateKeyEncrypted string `json:"privateKeyEncrypted" validate:"required"`
}

type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type registerCompleteResponse struct {
	User userPayload `json:"user"`
}

type loginInitRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
}

type loginInitResponse struct {
	SessionID       string    `json:"sessionId"`
	Salt            string    `json:"salt"`
	ServerPublicKey string    `json:"serverPublicKey"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type loginVerifyRequest struct {
	SessionID       string `json:"sessionId" validate:"required,uuid4"`
	ClientPublicKey string `json:"clientPublicKey" validate:"required,hexadecimal"`
	ClientProof     string `json:"clientProof" validate:"required,hexadecimal"`
}

type loginUserPayload struct {
	userPayload
	VaultKeyEncrypted   string `json:"vaultKeyEncrypted"`
	PublicKey           string `json:"publicKey"`
	PrivateKeyEncrypted string `json:"privateKeyEncrypted"`
}

type loginVerifyResponse struct {
	User        loginUserPayload `json:"user"`
	ServerProof string           `json:"serverProof"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- handlers ---

func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req checkAvailabilityRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.auth.CheckAvailability(r.Context(), req.Email, req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var resp checkAvailabilityResponse
	if result.Email != nil {
		resp.Email = &fieldAvailability{Available: result.Email.Available, Value: result.Email.Value}
	}
	if result.Username != nil {
		resp.Username = &fieldAvailability{Available: result.Username.Available, Value: result.Username.Value}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) RegisterInit(w http.ResponseWriter, r *http.Request) {
	var req registerInitRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	token, err := h.auth.RegisterInit(r.Context(), req.Email, req.Username, clientMeta(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registerInitResponse{RegistrationToken: token})
}

func (h *handlers) RegisterComplete(w http.ResponseWriter, r *http.Request) {
	var req registerCompleteRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	user, err := h.auth.RegisterComplete(r.Context(), services.RegistrationParams{
		Email:               req.Email,
		Username:            req.Username,
		Salt:                req.Salt,
		Verifier:            req.Verifier,
		VaultKeyEncrypted:   req.VaultKeyEncrypted,
		PublicKey:           req.PublicKey,
		PrivateKeyEncrypted: req.PrivateKeyEncrypted,
	}, clientMeta(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerCompleteResponse{
		User: userPayload{
			ID:        user.ID,
			Email:     user.Email,
			Username:  user.Username,
			CreatedAt: user.CreatedAt,
		},
	})
}

func (h *handlers) LoginInit(w http.ResponseWriter, r *http.Request) {
	var req loginInitRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	challenge, err := h.auth.LoginInit(r.Context(), req.Identifier, clientMeta(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginInitResponse{
		SessionID:       challenge.SessionID,
		Salt:            challenge.Salt,
		ServerPublicKey: challenge.ServerEphemeral,
		ExpiresAt:       challenge.ExpiresAt,
	})
}

func (h *handlers) LoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.auth.LoginVerify(r.Context(), req.SessionID, req.ClientPublicKey, req.ClientProof, clientMeta(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginVerifyResponse{
		User: loginUserPayload{
			userPayload: userPayload{
				ID:        result.User.ID,
				Email:     result.User.Email,
				Username:  result.User.Username,
				CreatedAt: result.User.CreatedAt,
			},
			VaultKeyEncrypted:   result.User.VaultKeyEncrypted,
			PublicKey:           result.User.PublicKey,
			PrivateKeyEncrypted: result.User.PrivateKeyEncrypted,
		},
		ServerProof: result.ServerProof,
	})
}

// --- helpers ---

// decodeValid decodes and validates the JSON body, answering 400 on failure.
func (h *handlers) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed"})
		return false
	}
	return true
}

// writeError maps service sentinels to HTTP statuses. Messages stay generic
// so the surface never leaks which check failed.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed"})
	case errors.Is(err, common.ErrorUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrorEmailExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email already exists"})
	case errors.Is(err, common.ErrorUsernameExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "username already exists"})
	case errors.Is(err, common.ErrorAccountLocked):
		writeJSON(w, http.StatusLocked, errorResponse{Error: "account locked"})
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
