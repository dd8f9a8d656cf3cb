package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// Middleware gates HTTP routes on the engine's decisions.
type Middleware struct {
	Engine *Engine
	Logger *slog.Logger
}

// Require ensures the acting identity holds the requested access on key.
// Anonymous requests get 401; denied requests get 403. A pending identity is
// told to render the approval screen instead of a plain forbidden surface.
func (m Middleware) Require(key string, access rbac.Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := shared.AuthFromContext(r.Context())
			if !ok {
				shared.RespondError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			err := m.Engine.Evaluate(r.Context(), ac.SubjectID, key, access)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if errors.Is(err, shared.ErrPendingApproval) {
				shared.RespondError(w, http.StatusForbidden, "approval_pending", "account is awaiting approval")
				return
			}
			shared.RespondError(w, http.StatusForbidden, "forbidden", http.StatusText(http.StatusForbidden))
		})
	}
}
