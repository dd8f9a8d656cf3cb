package identity

// Status classifies an identity's activation and approval state.
type Status string

const (
	// StatusActive identities may be authorized by the role matrix.
	StatusActive Status = "active"
	// StatusPending identities are role-less or awaiting an approval decision.
	StatusPending Status = "pending"
	// StatusDeactivated identities have been switched off by an administrator.
	StatusDeactivated Status = "deactivated"
)

// Gate classifies identities for the approval check. Any status other than
// StatusActive must short-circuit authorization to deny.
type Gate struct {
	pendingRoles map[int64]struct{}
}

// NewGate builds a Gate. pendingRoleIDs are sentinel role ids that mark an
// identity as still awaiting approval even though a role is set.
func NewGate(pendingRoleIDs ...int64) *Gate {
	pending := make(map[int64]struct{}, len(pendingRoleIDs))
	for _, id := range pendingRoleIDs {
		pending[id] = struct{}{}
	}
	return &Gate{pendingRoles: pending}
}

// Classify returns the approval status for id. The result is computed from the
// identity attributes alone and is re-evaluated on every request, so an
// administrator deactivating a member takes effect mid-session.
func (g *Gate) Classify(id *Identity) Status {
	if id == nil || !id.IsActive {
		return StatusDeactivated
	}
	if id.RoleID == nil {
		return StatusPending
	}
	if _, ok := g.pendingRoles[*id.RoleID]; ok {
		return StatusPending
	}
	if id.ApprovedAt == nil && id.RejectedAt == nil {
		return StatusPending
	}
	return StatusActive
}
