package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/worklane/worklane/internal/shared"
)

// ErrRoleNotFound indicates that the requested role does not exist.
var ErrRoleNotFound = errors.New("rbac: role not found")

// Store groups the persistence surface the service orchestrates.
type Store interface {
	Registry
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name string, active bool) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, key, label string) (Permission, error)
}

// IdentityCounter reports how many identities reference a role. Backed by the
// identity repository; used to enforce the referential delete invariant.
type IdentityCounter interface {
	CountWithRole(ctx context.Context, roleID int64) (int64, error)
}

// Service orchestrates role and grant administration.
type Service struct {
	store      Store
	identities IdentityCounter
}

// NewService constructs a Service.
func NewService(store Store, identities IdentityCounter) *Service {
	return &Service{store: store, identities: identities}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// GetRole fetches a role by id.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.CreateRole(ctx, name)
}

// UpdateRole renames a role or flips its activation switch.
func (s *Service) UpdateRole(ctx context.Context, id int64, name string, active bool) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	return s.store.UpdateRole(ctx, id, name, active)
}

// DeleteRole removes a role. Deletion is rejected while any identity still
// references it.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	if s.identities != nil {
		n, err := s.identities.CountWithRole(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.ErrRoleInUse
		}
	}
	return s.store.DeleteRole(ctx, id)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// SetGrant records a grant for the role. Normalization of write-implies-read
// happens in the store.
func (s *Service) SetGrant(ctx context.Context, roleID int64, key string, canRead, canWrite bool) error {
	return s.store.SetGrant(ctx, roleID, key, canRead, canWrite)
}

// RevokeGrant removes a grant.
func (s *Service) RevokeGrant(ctx context.Context, roleID int64, key string) error {
	return s.store.RevokeGrant(ctx, roleID, key)
}

// GrantsFor returns the role's grants.
func (s *Service) GrantsFor(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.store.GrantsFor(ctx, roleID)
}
