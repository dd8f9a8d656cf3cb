package rbac

import "time"

// Access distinguishes the two independent grant dimensions of a permission key.
type Access string

const (
	// AccessRead guards viewing a resource category.
	AccessRead Access = "read"
	// AccessWrite guards mutating a resource category.
	AccessWrite Access = "write"
)

// Role represents a high-level permission grouping. IsActive is a master
// switch: grants of an inactive role never authorize anything.
type Role struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission represents a protected capability addressed by a dot-namespaced key.
type Permission struct {
	ID    int64
	Key   string
	Label string
}

// Grant is the (read, write) pair a role holds for a permission key.
// CanWrite implies CanRead; mutation paths normalize rather than reject.
type Grant struct {
	Key      string
	CanRead  bool
	CanWrite bool
}

// Allows reports whether the grant covers the requested access.
func (g Grant) Allows(access Access) bool {
	switch access {
	case AccessRead:
		return g.CanRead
	case AccessWrite:
		return g.CanWrite
	default:
		return false
	}
}
