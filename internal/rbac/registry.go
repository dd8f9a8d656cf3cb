package rbac

import (
	"context"
	"sync"
)

// Registry answers grant queries for the role matrix. Implementations must be
// safe for concurrent reads while a single administrator mutates grants;
// readers observe each key's grant atomically, old or new, never torn.
type Registry interface {
	// GrantsFor returns every grant held by the role. Unknown roles yield an
	// empty set, not an error.
	GrantsFor(ctx context.Context, roleID int64) ([]Grant, error)
	// IsGranted reports whether the role holds the requested access on key.
	// Missing grants deny.
	IsGranted(ctx context.Context, roleID int64, key string, access Access) (bool, error)
	// SetGrant records or updates a grant. canWrite without canRead is
	// normalized to canRead=true. Idempotent.
	SetGrant(ctx context.Context, roleID int64, key string, canRead, canWrite bool) error
	// RevokeGrant removes a grant. Revoking an absent grant is a no-op.
	RevokeGrant(ctx context.Context, roleID int64, key string) error
}

// MemoryRegistry keeps the matrix in process memory. It backs tests and seed
// tooling; production traffic goes through the PostgreSQL store.
type MemoryRegistry struct {
	mu     sync.RWMutex
	grants map[int64]map[string]Grant
	roles  map[int64]Role
}

// NewMemoryRegistry constructs an empty in-memory matrix.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		grants: make(map[int64]map[string]Grant),
		roles:  make(map[int64]Role),
	}
}

// AddRole registers a role so GetRole can resolve it.
func (m *MemoryRegistry) AddRole(role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[role.ID] = role
}

// GetRole resolves a role by id.
func (m *MemoryRegistry) GetRole(ctx context.Context, id int64) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return role, nil
}

// GrantsFor returns a copy of the role's grants.
func (m *MemoryRegistry) GrantsFor(ctx context.Context, roleID int64) ([]Grant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byKey := m.grants[roleID]
	out := make([]Grant, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, g)
	}
	return out, nil
}

// IsGranted reports the grant state for a single key. Default-deny.
func (m *MemoryRegistry) IsGranted(ctx context.Context, roleID int64, key string, access Access) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grants[roleID][key]
	if !ok {
		return false, nil
	}
	return g.Allows(access), nil
}

// SetGrant stores the grant, forcing read on when write is requested.
func (m *MemoryRegistry) SetGrant(ctx context.Context, roleID int64, key string, canRead, canWrite bool) error {
	if canWrite {
		canRead = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey := m.grants[roleID]
	if byKey == nil {
		byKey = make(map[string]Grant)
		m.grants[roleID] = byKey
	}
	byKey[key] = Grant{Key: key, CanRead: canRead, CanWrite: canWrite}
	return nil
}

// RevokeGrant deletes the grant for key.
func (m *MemoryRegistry) RevokeGrant(ctx context.Context, roleID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants[roleID], key)
	return nil
}

var _ Registry = (*MemoryRegistry)(nil)
