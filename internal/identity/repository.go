package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/worklane/worklane/internal/shared"
)

// Repository defines persistence operations for identities.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Identity, error)
	FindByAccount(ctx context.Context, account string) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	SetActive(ctx context.Context, id int64, active bool) error
	AssignRole(ctx context.Context, id int64, roleID *int64) error
	SetApproval(ctx context.Context, id int64, approvedAt, rejectedAt *time.Time) error
	CountWithRole(ctx context.Context, roleID int64) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const identityColumns = `id, name, account, is_active, role_id, approved_at, rejected_at, created_at, updated_at`

func scanIdentity(row pgx.Row) (*Identity, error) {
	var id Identity
	if err := row.Scan(&id.ID, &id.Name, &id.Account, &id.IsActive, &id.RoleID, &id.ApprovedAt, &id.RejectedAt, &id.CreatedAt, &id.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &id, nil
}

// FindByID fetches an identity by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
}

// FindByAccount fetches an identity by its account handle.
func (r *PGRepository) FindByAccount(ctx context.Context, account string) (*Identity, error) {
	return scanIdentity(r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE account = $1`, account))
}

// List returns all identities ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Identity
	for rows.Next() {
		var id Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Account, &id.IsActive, &id.RoleID, &id.ApprovedAt, &id.RejectedAt, &id.CreatedAt, &id.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetActive flips the activation switch.
func (r *PGRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AssignRole sets or clears the role reference.
func (r *PGRepository) AssignRole(ctx context.Context, id int64, roleID *int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET role_id = $2, updated_at = NOW() WHERE id = $1`, id, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetApproval records the approval decision timestamps.
func (r *PGRepository) SetApproval(ctx context.Context, id int64, approvedAt, rejectedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE identities SET approved_at = $2, rejected_at = $3, updated_at = NOW() WHERE id = $1`, id, approvedAt, rejectedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CountWithRole reports how many identities still reference the role.
func (r *PGRepository) CountWithRole(ctx context.Context, roleID int64) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ Repository = (*PGRepository)(nil)
