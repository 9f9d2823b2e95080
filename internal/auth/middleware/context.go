package auth

import "context"

type ctxKey string

const ctxKeySub ctxKey = "sub"

// WithSubject stores the authenticated user id (the JWT "sub" claim) on the
// context. The role travels separately via rbac.WithRole so AttachRoleFromDB
// can refresh it without touching the subject.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

// SubjectFromContext returns the requester's user id, or "" for anonymous
// requests.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySub).(string)
	return s
}
