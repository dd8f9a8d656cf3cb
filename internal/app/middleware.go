package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/session"
	"github.com/worklane/worklane/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions *session.Manager
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the Worklane middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		BearerAuth(cfg.Sessions, cfg.Logger),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}

// BearerAuth resolves the acting identity behind an Authorization header and
// stores it in the request context. Requests without a token pass through
// anonymous; route middleware decides whether that is acceptable. A request
// arriving over a live session counts as qualifying activity and touches the
// idle clock.
func BearerAuth(sessions *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := bearerToken(r)
			if bearer == "" || sessions == nil {
				next.ServeHTTP(w, r)
				return
			}
			ac, err := sessions.Verify(r.Context(), bearer)
			if err != nil {
				if errors.Is(err, shared.ErrSessionExpired) {
					shared.RespondError(w, http.StatusUnauthorized, "session_expired", "session expired, please log in again")
					return
				}
				if !errors.Is(err, shared.ErrUnauthenticated) && logger != nil {
					logger.Error("verify bearer", slog.Any("error", err))
				}
				// Invalid token: continue anonymous so public routes still work.
				next.ServeHTTP(w, r)
				return
			}
			if err := sessions.Touch(r.Context(), ac.SessionID); err != nil && logger != nil {
				logger.Warn("touch session", slog.Any("error", err))
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithAuth(r.Context(), ac)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
