package shared

import "context"

// AuthContext identifies the actor behind a verified request.
type AuthContext struct {
	SessionID string
	// SubjectID is the acting identity. During a bypass this is the target.
	SubjectID int64
	// OriginalSubjectID is the identity that authenticated the session.
	OriginalSubjectID int64
	Bypass            bool
}

type authContextKey struct{}

// ContextWithAuth stores the auth context in ctx.
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext extracts the auth context. ok is false for anonymous requests.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}
