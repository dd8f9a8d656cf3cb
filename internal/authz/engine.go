package authz

import (
	"context"
	"log/slog"

	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// IdentityStore resolves subjects for authorization decisions.
type IdentityStore interface {
	FindByID(ctx context.Context, id int64) (*identity.Identity, error)
}

// RoleStore resolves roles so the engine can honor the activation switch.
type RoleStore interface {
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
}

// Engine answers "can subject S perform access A on permission key K?".
// Decisions are pure reads composed from the approval gate and the role
// matrix; nothing is cached across requests.
type Engine struct {
	identities IdentityStore
	roles      RoleStore
	registry   rbac.Registry
	gate       *identity.Gate
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewEngine constructs an Engine. metrics may be nil.
func NewEngine(identities IdentityStore, roles RoleStore, registry rbac.Registry, gate *identity.Gate, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		identities: identities,
		roles:      roles,
		registry:   registry,
		gate:       gate,
		logger:     logger,
		metrics:    metrics,
	}
}

// Evaluate returns nil when the subject holds the requested access, or the
// typed denial otherwise. Every ambiguity resolves to deny: unknown subject,
// unknown key, unresolved role, and lookup errors all fail closed.
func (e *Engine) Evaluate(ctx context.Context, subjectID int64, key string, access rbac.Access) error {
	subject, err := e.identities.FindByID(ctx, subjectID)
	if err != nil {
		if e.logger != nil && err != shared.ErrNotFound {
			e.logger.Error("authz resolve subject", slog.Int64("subject", subjectID), slog.Any("error", err))
		}
		return e.deny(key, shared.ErrForbidden)
	}
	if status := e.gate.Classify(subject); status != identity.StatusActive {
		return e.deny(key, shared.ErrPendingApproval)
	}
	if subject.RoleID == nil {
		return e.deny(key, shared.ErrForbidden)
	}
	role, err := e.roles.GetRole(ctx, *subject.RoleID)
	if err != nil || !role.IsActive {
		return e.deny(key, shared.ErrForbidden)
	}
	granted, err := e.registry.IsGranted(ctx, role.ID, key, access)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("authz grant lookup", slog.String("key", key), slog.Any("error", err))
		}
		return e.deny(key, shared.ErrForbidden)
	}
	if !granted {
		return e.deny(key, shared.ErrForbidden)
	}
	return nil
}

// CanAccess is the boolean form of Evaluate.
func (e *Engine) CanAccess(ctx context.Context, subjectID int64, key string, access rbac.Access) bool {
	return e.Evaluate(ctx, subjectID, key, access) == nil
}

func (e *Engine) deny(key string, reason error) error {
	if e.metrics != nil {
		e.metrics.ObserveDenial(key)
	}
	return reason
}
