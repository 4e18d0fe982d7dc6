// Package auth carries the authenticated family session through a request
// context.
package auth

import "context"

type contextKey struct{}

// Session identifies the family a request was authenticated for.
type Session struct {
	FamilyID  int64
	SessionID int64
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// FamilyID returns 0 when the context carries no session.
func FamilyID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.FamilyID
}

// Allows reports whether the session may act on familyID.
func Allows(ctx context.Context, familyID int64) bool {
	id := FamilyID(ctx)
	return id != 0 && id == familyID
}
