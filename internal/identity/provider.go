package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/worklane/worklane/internal/shared"
)

// Provider verifies base credentials. Credential storage and hashing belong to
// the identity provider, not to the authorization subsystem itself.
type Provider interface {
	VerifyCredentials(ctx context.Context, account, secret string) (*Identity, error)
}

// PGProvider is the default provider backed by the identities table.
type PGProvider struct {
	pool *pgxpool.Pool
}

// NewProvider constructs a PGProvider.
func NewProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{pool: pool}
}

// VerifyCredentials validates account/secret. Every failure collapses into
// ErrInvalidCredentials so callers cannot distinguish an unknown account from
// a wrong secret.
func (p *PGProvider) VerifyCredentials(ctx context.Context, account, secret string) (*Identity, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+identityColumns+`, password_hash FROM identities WHERE account = $1`, account)
	var id Identity
	var hash string
	if err := row.Scan(&id.ID, &id.Name, &id.Account, &id.IsActive, &id.RoleID, &id.ApprovedAt, &id.RejectedAt, &id.CreatedAt, &id.UpdatedAt, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !id.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return &id, nil
}

var _ Provider = (*PGProvider)(nil)
