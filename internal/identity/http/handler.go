package identityhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/worklane/worklane/internal/authz"
	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// Handler serves member administration: activation, role assignment, and
// approval decisions.
type Handler struct {
	logger  *slog.Logger
	service *identity.Service
	mw      authz.Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *identity.Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers member administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.PermMemberManagement, rbac.AccessRead))
		r.Get("/", h.listMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(shared.PermMemberManagement, rbac.AccessWrite))
		r.Post("/{id}/activate", h.setActive(true))
		r.Post("/{id}/deactivate", h.setActive(false))
		r.Put("/{id}/role", h.assignRole)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type memberView struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Account    string     `json:"account"`
	IsActive   bool       `json:"isActive"`
	RoleID     *int64     `json:"roleId"`
	Status     string     `json:"status"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	RejectedAt *time.Time `json:"rejectedAt,omitempty"`
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]memberView, 0, len(members))
	for i := range members {
		m := members[i]
		out = append(out, memberView{
			ID:         m.ID,
			Name:       m.Name,
			Account:    m.Account,
			IsActive:   m.IsActive,
			RoleID:     m.RoleID,
			Status:     string(h.service.Classify(&m)),
			ApprovedAt: m.ApprovedAt,
			RejectedAt: m.RejectedAt,
		})
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"members": out})
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid member id")
			return
		}
		if active {
			err = h.service.Activate(r.Context(), id)
		} else {
			err = h.service.Deactivate(r.Context(), id)
		}
		if err != nil {
			h.fail(w, err)
			return
		}
		shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "member updated"})
	}
}

type assignRoleRequest struct {
	RoleID *int64 `json:"roleId"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid member id")
		return
	}
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if err := h.service.AssignRole(r.Context(), id, req.RoleID); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "role assigned"})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid member id")
		return
	}
	if err := h.service.Approve(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "member approved"})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		shared.RespondError(w, http.StatusBadRequest, "bad_request", "invalid member id")
		return
	}
	if err := h.service.Reject(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]string{"message": "member rejected"})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		shared.RespondError(w, http.StatusNotFound, "not_found", "member not found")
		return
	}
	h.logger.Error("member admin", slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
