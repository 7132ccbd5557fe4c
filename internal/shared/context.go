package shared

import "context"

type principalContextKey struct{}

// ContextWithPrincipal stores the acting principal id in context. The id
// feeds created_by fields and audit records; who supplies it is outside the
// ledger core.
func ContextWithPrincipal(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, principalContextKey{}, id)
}

// PrincipalFromContext extracts the acting principal id, zero when absent.
func PrincipalFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(principalContextKey{}).(int64)
	return id
}
