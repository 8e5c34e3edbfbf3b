package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables, loading a
// local .env file first if one exists. A missing .env file is not an error.
//
// Recognized variables:
//
//	ZEROLOCK_ADDR               HTTP bind address
//	ZEROLOCK_DATABASE_DSN       PostgreSQL DSN
//	ZEROLOCK_SESSION_TTL        handshake session TTL (Go duration)
//	ZEROLOCK_SWEEP_INTERVAL     sweep cadence (Go duration)
//	ZEROLOCK_LOCKOUT_THRESHOLD  failed logins before lockout
//	ZEROLOCK_AUDIT_RETENTION    audit retention horizon (Go duration)
//	ZEROLOCK_RATE_LIMIT_RPS     requests per second per client
//	ZEROLOCK_RATE_LIMIT_BURST   burst allowance per client
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ZEROLOCK_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("ZEROLOCK_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("ZEROLOCK_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.SessionTTL = d
		}
	}
	if v := os.Getenv("ZEROLOCK_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.SweepInterval = d
		}
	}
	if v := os.Getenv("ZEROLOCK_LOCKOUT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.LockoutThreshold = n
		}
	}
	if v := os.Getenv("ZEROLOCK_AUDIT_RETENTION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.AuditRetention = d
		}
	}
	if v := os.Getenv("ZEROLOCK_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.RateLimitRPS = f
		}
	}
	if v := os.Getenv("ZEROLOCK_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.RateLimitBurst = n
		}
	}
}
