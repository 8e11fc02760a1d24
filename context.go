package sessionkit

import "context"

// ContextKey is a collision-free key for context values. Create one as a
// package-level variable.
type ContextKey struct{ name string }

// NewContextKey creates a new context key. The name should be unique within
// the application.
func NewContextKey(name string) *ContextKey {
	return &ContextKey{name}
}

// ContextValue retrieves a typed value from the context, returning the zero
// value of T when the key is absent or holds a different type.
func ContextValue[T any](ctx context.Context, key any) T {
	val, _ := ctx.Value(key).(T)
	return val
}

var kitKey = NewContextKey("sessionkit")

// WithContext returns a context carrying the Kit, so request handlers deep
// in an application can reach the session stack without globals.
func WithContext(ctx context.Context, k *Kit) context.Context {
	return context.WithValue(ctx, kitKey, k)
}

// FromContext returns the Kit carried by the context, or nil.
func FromContext(ctx context.Context) *Kit {
	return ContextValue[*Kit](ctx, kitKey)
}
