package identity

import (
	"context"
	"time"
)

// Service wraps administrative identity operations.
type Service struct {
	repo Repository
	gate *Gate
}

// NewService constructs a new Service.
func NewService(repo Repository, gate *Gate) *Service {
	return &Service{repo: repo, gate: gate}
}

// Get fetches a single identity.
func (s *Service) Get(ctx context.Context, id int64) (*Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// GetByAccount fetches an identity by account handle.
func (s *Service) GetByAccount(ctx context.Context, account string) (*Identity, error) {
	return s.repo.FindByAccount(ctx, account)
}

// List returns all identities.
func (s *Service) List(ctx context.Context) ([]Identity, error) {
	return s.repo.List(ctx)
}

// Classify exposes the approval gate for the identity.
func (s *Service) Classify(id *Identity) Status {
	return s.gate.Classify(id)
}

// Activate re-enables a deactivated identity.
func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}

// Deactivate switches an identity off. Takes effect on the next request.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

// AssignRole sets the member's role. A nil roleID returns the identity to the
// pending state.
func (s *Service) AssignRole(ctx context.Context, id int64, roleID *int64) error {
	return s.repo.AssignRole(ctx, id, roleID)
}

// Approve records an approval decision and clears any prior rejection.
func (s *Service) Approve(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.repo.SetApproval(ctx, id, &now, nil)
}

// Reject records a rejection decision and clears any prior approval.
func (s *Service) Reject(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return s.repo.SetApproval(ctx, id, nil, &now)
}
