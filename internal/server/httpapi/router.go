package httpapi

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"github.com/gorilla/mux"

	"github.com/cygnus07/zeroLock/internal/server/config"
	"github.com/cygnus07/zeroLock/internal/server/models"
	"github.com/cygnus07/zeroLock/internal/server/services"
)

func newRouter(h *handlers, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	s := r.PathPrefix("/api/auth").Subrouter()
	s.Use(rateLimit(cfg, h))

	s.HandleFunc("/check-availability", h.CheckAvailability).Methods(http.MethodPost)
	s.HandleFunc("/register/init", h.RegisterInit).Methods(http.MethodPost)
	s.HandleFunc("/register/complete", h.RegisterComplete).Methods(http.MethodPost)
	s.HandleFunc("/login/init", h.LoginInit).Methods(http.MethodPost)
	s.HandleFunc("/login/verify", h.LoginVerify).Methods(http.MethodPost)

	return r
}

// rateLimit throttles the authentication endpoints per client IP. Rejections
// land in the audit trail.
func rateLimit(cfg *config.Config, h *handlers) mux.MiddlewareFunc {
	lim := tollbooth.NewLimiter(cfg.RateLimitRPS, &limiter.ExpirableOptions{
		DefaultExpirationTTL: time.Hour,
	})
	lim.SetBurst(cfg.RateLimitBurst)
	lim.SetIPLookups([]string{"X-Forwarded-For", "RemoteAddr"})
	lim.SetMessageContentType("application/json; charset=utf-8")
	lim.SetMessage(`{"error":"too many requests"}`)
	lim.SetOnLimitReached(func(w http.ResponseWriter, r *http.Request) {
		meta := clientMeta(r)
		h.audit.Record(r.Context(), models.ActionRateLimitExceeded, nil, false, meta, map[string]any{
			"path": r.URL.Path,
		})
	})

	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lim, next)
	}
}

// clientMeta extracts request attribution for the audit trail.
func clientMeta(r *http.Request) services.ClientMeta {
	return services.ClientMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
