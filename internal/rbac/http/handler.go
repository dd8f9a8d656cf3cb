package rbachttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/worklane/worklane/internal/authz"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// Handler serves role and grant administration.
type Handler struct {
	logger    *slog.Logger
	service   *rbac.Service
	mw        authz.Middleware
	validator *validator.Validate
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *rbac.Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers role and permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.PermRoleManagement, rbac.AccessRead))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{id}/grants", h.listGrants)
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.PermRoleManagement, rbac.AccessWrite))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Put("/roles/{id}/grants/{key}", h.setGrant)
		r.Delete("/roles/{id}/grants/{key}", h.revokeGrant)
	})
}

type roleView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

func toRoleView(role rbac.Role) roleView {
	return roleView{ID: role.ID, Name: role.Name, IsActive: role.IsActive}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleView(role))
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"roles": out})
}

type roleRequest struct {
	Name     string `json:"name" validate:"required"`
	IsActive *bool  `json:"isActive"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusCreated, toRoleView(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, active)
	if err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, toRoleView(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "role deleted"})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	grants, err := h.service.GrantsFor(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

type grantRequest struct {
	CanRead  bool `json:"canRead"`
	CanWrite bool `json:"canWrite"`
}

func (h *Handler) setGrant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.service.SetGrant(r.Context(), id, key, req.CanRead, req.CanWrite); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "grant stored"})
}

func (h *Handler) revokeGrant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid role id")
		return
	}
	if err := h.service.RevokeGrant(r.Context(), id, chi.URLParam(r, "key")); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "grant revoked"})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrRoleNotFound), errors.Is(err, shared.ErrNotFound):
		shared.RespondError(w, http.StatusNotFound, "not_found", "role not found")
	case errors.Is(err, shared.ErrRoleInUse):
		shared.RespondError(w, http.StatusConflict, "role_in_use", "role is still assigned to members")
	case errors.Is(err, shared.ErrRoleExists):
		shared.RespondError(w, http.StatusConflict, "role_exists", "role name already taken")
	default:
		h.logger.Error("rbac admin", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
