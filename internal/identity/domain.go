package identity

import "time"

// Identity represents a member account as seen by the authorization subsystem.
// Identities are never deleted, only deactivated.
type Identity struct {
	ID         int64
	Name       string
	Account    string
	IsActive   bool
	RoleID     *int64
	ApprovedAt *time.Time
	RejectedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
