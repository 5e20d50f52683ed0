// Package session carries the authenticated account through a request.
// The account travels in context.Context instead of process-wide state, so
// every lookup that falls back to "the current account" receives it
// explicitly.
package session

import "context"

type ctxKey struct{}

// Session identifies the account a request acts on behalf of.
type Session struct {
	AccountID int64
	Token     string
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// WithAccount is WithSession for callers that only know the account id.
func WithAccount(ctx context.Context, accountID int64) context.Context {
	return WithSession(ctx, Session{AccountID: accountID})
}

// FromContext returns the session stored in ctx. ok is false when the
// request is anonymous.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || s.AccountID <= 0 {
		return Session{}, false
	}
	return s, true
}

// CurrentAccountID returns the authenticated account id or 0.
func CurrentAccountID(ctx context.Context) int64 {
	s, _ := FromContext(ctx)
	return s.AccountID
}
