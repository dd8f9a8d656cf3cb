package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/worklane/worklane/internal/auth"
	"github.com/worklane/worklane/internal/authz"
	identityhttp "github.com/worklane/worklane/internal/identity/http"
	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/rbac"
	rbachttp "github.com/worklane/worklane/internal/rbac/http"
	"github.com/worklane/worklane/internal/session"
	"github.com/worklane/worklane/internal/shared"
	"github.com/worklane/worklane/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Sessions       *session.Manager
	Engine         *authz.Engine
	AuthHandler    *auth.Handler
	RBACHandler    *rbachttp.Handler
	MembersHandler *identityhttp.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Worklane defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Navigation is shaped per subject: the shared tree goes through the
	// menu filter before it ever reaches a client.
	r.Get("/nav", func(w http.ResponseWriter, r *http.Request) {
		ac, ok := shared.AuthFromContext(r.Context())
		if !ok {
			shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		nav := params.Engine.Filter(r.Context(), authz.DefaultNav(), ac.SubjectID)
		shared.RespondJSON(w, http.StatusOK, map[string]any{"nav": nav})
	})

	if params.RBACHandler != nil {
		r.Route("/admin", params.RBACHandler.MountRoutes)
	}
	if params.MembersHandler != nil {
		r.Route("/admin/members", params.MembersHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		mw := authz.Middleware{Engine: params.Engine, Logger: params.Logger}
		r.Group(func(g chi.Router) {
			g.Use(mw.Require(shared.PermRoleManagement, rbac.AccessRead))
			g.Mount("/admin/jobs", params.JobsHandler.Routes())
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
