package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/worklane/worklane/internal/shared"
)

type memoryStore struct {
	*MemoryRegistry
	deleted []int64
}

func (s *memoryStore) ListRoles(ctx context.Context) ([]Role, error) { return nil, nil }

func (s *memoryStore) CreateRole(ctx context.Context, name string) (Role, error) {
	return Role{ID: 99, Name: name, IsActive: true}, nil
}

func (s *memoryStore) UpdateRole(ctx context.Context, id int64, name string, active bool) (Role, error) {
	return Role{ID: id, Name: name, IsActive: active}, nil
}

func (s *memoryStore) DeleteRole(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryStore) ListPermissions(ctx context.Context) ([]Permission, error) { return nil, nil }

func (s *memoryStore) EnsurePermission(ctx context.Context, key, label string) (Permission, error) {
	return Permission{ID: 1, Key: key, Label: label}, nil
}

type fixedCounter struct {
	n   int64
	err error
}

func (c fixedCounter) CountWithRole(ctx context.Context, roleID int64) (int64, error) {
	return c.n, c.err
}

func TestServiceDeleteRoleRejectedWhileReferenced(t *testing.T) {
	store := &memoryStore{MemoryRegistry: NewMemoryRegistry()}
	svc := NewService(store, fixedCounter{n: 3})

	err := svc.DeleteRole(context.Background(), 2)
	require.ErrorIs(t, err, shared.ErrRoleInUse)
	require.Empty(t, store.deleted, "store delete must not run while identities reference the role")
}

func TestServiceDeleteRoleUnreferenced(t *testing.T) {
	store := &memoryStore{MemoryRegistry: NewMemoryRegistry()}
	svc := NewService(store, fixedCounter{n: 0})

	require.NoError(t, svc.DeleteRole(context.Background(), 2))
	require.Equal(t, []int64{2}, store.deleted)
}

func TestServiceDeleteRoleCounterFailure(t *testing.T) {
	store := &memoryStore{MemoryRegistry: NewMemoryRegistry()}
	svc := NewService(store, fixedCounter{err: errors.New("db down")})

	err := svc.DeleteRole(context.Background(), 2)
	require.Error(t, err)
	require.Empty(t, store.deleted)
}

func TestServiceCreateRoleRequiresName(t *testing.T) {
	store := &memoryStore{MemoryRegistry: NewMemoryRegistry()}
	svc := NewService(store, fixedCounter{})

	_, err := svc.CreateRole(context.Background(), "   ")
	require.Error(t, err)

	role, err := svc.CreateRole(context.Background(), " Auditor ")
	require.NoError(t, err)
	require.Equal(t, "Auditor", role.Name)
}
