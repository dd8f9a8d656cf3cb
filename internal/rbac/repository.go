package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/worklane/worklane/internal/shared"
)

// PGStore implements Registry plus role and permission persistence on PostgreSQL.
type PGStore struct {
	pool   *pgxpool.Pool
	flight singleflight.Group
}

// NewPGStore constructs a store backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GrantsFor returns every grant the role holds. Concurrent identical lookups
// are collapsed into one query; results are not cached across requests, so
// matrix edits take effect on the next call.
func (s *PGStore) GrantsFor(ctx context.Context, roleID int64) ([]Grant, error) {
	ch := s.flight.DoChan(fmt.Sprintf("grants:%d", roleID), func() (interface{}, error) {
		return s.queryGrants(context.WithoutCancel(ctx), roleID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Grant), nil
	}
}

func (s *PGStore) queryGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `SELECT p.key, rp.can_read, rp.can_write
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.key`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	grants := make([]Grant, 0)
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Key, &g.CanRead, &g.CanWrite); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// IsGranted reports the grant state for one key. Missing rows deny.
func (s *PGStore) IsGranted(ctx context.Context, roleID int64, key string, access Access) (bool, error) {
	var g Grant
	err := s.pool.QueryRow(ctx, `SELECT p.key, rp.can_read, rp.can_write
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1 AND p.key = $2`, roleID, key).Scan(&g.Key, &g.CanRead, &g.CanWrite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return g.Allows(access), nil
}

// SetGrant upserts a grant in one statement so concurrent readers never see a
// torn pair. Write without read is normalized, not rejected.
func (s *PGStore) SetGrant(ctx context.Context, roleID int64, key string, canRead, canWrite bool) error {
	if canWrite {
		canRead = true
	}
	tag, err := s.pool.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id, can_read, can_write)
SELECT $1, p.id, $3, $4 FROM permissions p WHERE p.key = $2
ON CONFLICT (role_id, permission_id) DO UPDATE SET can_read = EXCLUDED.can_read, can_write = EXCLUDED.can_write`,
		roleID, key, canRead, canWrite)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RevokeGrant deletes a grant. Absent grants are a no-op.
func (s *PGStore) RevokeGrant(ctx context.Context, roleID int64, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM role_permissions rp
USING permissions p
WHERE rp.role_id = $1 AND rp.permission_id = p.id AND p.key = $2`, roleID, key)
	return err
}

// ListRoles returns all roles ordered by name.
func (s *PGStore) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, is_active, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (s *PGStore) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `SELECT id, name, is_active, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (s *PGStore) CreateRole(ctx context.Context, name string) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `INSERT INTO roles (name, is_active, created_at, updated_at)
VALUES ($1, TRUE, NOW(), NOW()) RETURNING id, name, is_active, created_at, updated_at`, name).
		Scan(&role.ID, &role.Name, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, shared.ErrRoleExists
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole renames a role and flips its activation switch.
func (s *PGStore) UpdateRole(ctx context.Context, id int64, name string, active bool) (Role, error) {
	var role Role
	err := s.pool.QueryRow(ctx, `UPDATE roles SET name = $2, is_active = $3, updated_at = NOW()
WHERE id = $1 RETURNING id, name, is_active, created_at, updated_at`, id, name, active).
		Scan(&role.ID, &role.Name, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrRoleNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, shared.ErrRoleExists
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role and its grants. The foreign key from identities
// keeps a referenced role alive; that surfaces as ErrRoleInUse.
func (s *PGStore) DeleteRole(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return shared.ErrRoleInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// ListPermissions returns all permissions ordered by key.
func (s *PGStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, key, label FROM permissions ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Label); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// EnsurePermission upserts a permission by key.
func (s *PGStore) EnsurePermission(ctx context.Context, key, label string) (Permission, error) {
	key = strings.TrimSpace(key)
	var p Permission
	err := s.pool.QueryRow(ctx, `INSERT INTO permissions (key, label) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET label = EXCLUDED.label
RETURNING id, key, label`, key, strings.TrimSpace(label)).Scan(&p.ID, &p.Key, &p.Label)
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var _ Registry = (*PGStore)(nil)
