package shared

import "context"

// Notifier reports the outcome of a mutating operation to the user.
// Implementations must not fail.
type Notifier interface {
	NotifySuccess(ctx context.Context, message string)
	NotifyError(ctx context.Context, message string)
}

// Confirmer asks the user to approve an irreversible operation.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to the Confirmer interface
type ConfirmFunc func(ctx context.Context, message string) bool

// Confirm calls f
func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool {
	return f(ctx, message)
}

// StaticConfirmer answers every confirmation with the same value
type StaticConfirmer bool

// Confirm returns the static answer
func (s StaticConfirmer) Confirm(context.Context, string) bool {
	return bool(s)
}

// NopNotifier discards notifications
type NopNotifier struct{}

// NotifySuccess does nothing
func (NopNotifier) NotifySuccess(context.Context, string) {}

// NotifyError does nothing
func (NopNotifier) NotifyError(context.Context, string) {}

type confirmerKey struct{}

// WithConfirmer attaches a request-scoped Confirmer to ctx.
func WithConfirmer(ctx context.Context, c Confirmer) context.Context {
	return context.WithValue(ctx, confirmerKey{}, c)
}

// ConfirmerFromContext returns the request-scoped Confirmer, or fallback when none is set.
func ConfirmerFromContext(ctx context.Context, fallback Confirmer) Confirmer {
	if c, ok := ctx.Value(confirmerKey{}).(Confirmer); ok && c != nil {
		return c
	}
	return fallback
}
