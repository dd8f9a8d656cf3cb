package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates a missing, invalid, or expired token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the actor is authenticated but not authorized.
	ErrForbidden = errors.New("forbidden")
	// ErrPendingApproval indicates the identity is awaiting approval or deactivated.
	ErrPendingApproval = errors.New("approval pending")
	// ErrInvalidTarget indicates a bypass target that is missing or equal to the initiator.
	ErrInvalidTarget = errors.New("invalid bypass target")
	// ErrAuditFailure indicates a bypass could not be durably logged.
	ErrAuditFailure = errors.New("audit write failed")
	// ErrBypassActive indicates the session already carries an impersonation.
	ErrBypassActive = errors.New("bypass already active")
	// ErrSessionExpired marks a session revoked by the idle-timeout check.
	ErrSessionExpired = errors.New("session expired")
	// ErrRoleInUse rejects role deletion while identities still reference it.
	ErrRoleInUse = errors.New("role is still assigned")
	// ErrRoleExists rejects a duplicate role name.
	ErrRoleExists = errors.New("role name already taken")
)
