package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/worklane/worklane/internal/identity"
	"github.com/worklane/worklane/internal/observability"
	"github.com/worklane/worklane/internal/rbac"
	"github.com/worklane/worklane/internal/shared"
)

// Directory resolves bypass targets.
type Directory interface {
	FindByID(ctx context.Context, id int64) (*identity.Identity, error)
	FindByAccount(ctx context.Context, account string) (*identity.Identity, error)
}

// Authorizer is the slice of the authorization engine the controller needs.
type Authorizer interface {
	CanAccess(ctx context.Context, subjectID int64, key string, access rbac.Access) bool
}

// AuditRecorder persists bypass events. A failed write aborts the bypass.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Controller manages the impersonation state machine layered on an active
// session: Normal -> Impersonating -> Normal. Impersonation does not nest.
type Controller struct {
	manager    *Manager
	authorizer Authorizer
	identities Directory
	audit      AuditRecorder
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewController constructs a Controller. metrics may be nil.
func NewController(manager *Manager, authorizer Authorizer, identities Directory, audit AuditRecorder, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		manager:    manager,
		authorizer: authorizer,
		identities: identities,
		audit:      audit,
		logger:     logger,
		metrics:    metrics,
	}
}

// Begin starts a bypass: the initiator's session temporarily acts as the
// target identity. Preconditions: the session is not already impersonating,
// the initiator holds member-management or role-management write, and the
// target resolves to a different identity. The audit entry is written before
// the substituted token is handed out; an audit failure aborts the bypass.
func (c *Controller) Begin(ctx context.Context, ac shared.AuthContext, targetAccount string) (string, *Impersonation, error) {
	if ac.Bypass {
		return "", nil, shared.ErrBypassActive
	}
	if !c.authorizer.CanAccess(ctx, ac.SubjectID, shared.PermMemberManagement, rbac.AccessWrite) &&
		!c.authorizer.CanAccess(ctx, ac.SubjectID, shared.PermRoleManagement, rbac.AccessWrite) {
		return "", nil, shared.ErrForbidden
	}
	target, err := c.identities.FindByAccount(ctx, targetAccount)
	if err != nil {
		return "", nil, shared.ErrInvalidTarget
	}
	if target.ID == ac.SubjectID {
		return "", nil, shared.ErrInvalidTarget
	}

	now := c.manager.Clock().Now().UTC()
	imp := Impersonation{
		OriginalSubjectID: ac.SubjectID,
		ActingSubjectID:   target.ID,
		IssuedAt:          now,
		ExpiresAt:         now.Add(c.manager.BypassTTL()),
	}

	if err := c.audit.Record(ctx, shared.AuditLog{
		ActorID:  ac.SubjectID,
		Action:   "bypass.begin",
		Entity:   "identity",
		EntityID: strconv.FormatInt(target.ID, 10),
		Meta: map[string]any{
			"initiator": ac.SubjectID,
			"target":    target.ID,
			"session":   ac.SessionID,
		},
		At: now,
	}); err != nil {
		if c.logger != nil {
			c.logger.Error("bypass audit", slog.Any("error", err))
		}
		return "", nil, fmt.Errorf("%w: %w", shared.ErrAuditFailure, err)
	}

	attached, err := c.manager.attachImpersonation(ctx, ac.SessionID, imp)
	if err != nil {
		return "", nil, err
	}
	if !attached {
		return "", nil, shared.ErrBypassActive
	}

	token, err := c.manager.codec.Mint(target.ID, ac.SessionID, ac.SubjectID, true, now)
	if err != nil {
		_ = c.manager.detachImpersonation(ctx, ac.SessionID)
		return "", nil, err
	}
	c.metrics.ObserveBypass("begin")
	if c.logger != nil {
		c.logger.Info("bypass started",
			slog.Int64("initiator", ac.SubjectID),
			slog.Int64("target", target.ID),
			slog.String("session", ac.SessionID))
	}
	return token, &imp, nil
}

// End reverts the session to its original subject and returns a fresh token
// for it. The revert is a single key deletion, so no intermediate state is
// observable.
func (c *Controller) End(ctx context.Context, ac shared.AuthContext) (string, error) {
	imp, err := c.manager.Impersonation(ctx, ac.SessionID)
	if err != nil {
		return "", err
	}
	if imp == nil {
		return "", shared.ErrNotFound
	}
	if err := c.manager.detachImpersonation(ctx, ac.SessionID); err != nil {
		return "", err
	}
	now := c.manager.Clock().Now().UTC()
	// Reversion must always succeed once requested; an audit hiccup here is
	// logged rather than blocking the return to the original identity.
	if err := c.audit.Record(ctx, shared.AuditLog{
		ActorID:  imp.OriginalSubjectID,
		Action:   "bypass.end",
		Entity:   "identity",
		EntityID: strconv.FormatInt(imp.ActingSubjectID, 10),
		Meta:     map[string]any{"session": ac.SessionID},
		At:       now,
	}); err != nil && c.logger != nil {
		c.logger.Warn("bypass end audit", slog.Any("error", err))
	}
	c.metrics.ObserveBypass("end")
	return c.manager.codec.Mint(imp.OriginalSubjectID, ac.SessionID, imp.OriginalSubjectID, false, now)
}

// Status reports whether the session carries an active bypass.
func (c *Controller) Status(ctx context.Context, ac shared.AuthContext) (*Impersonation, error) {
	return c.manager.Impersonation(ctx, ac.SessionID)
}
