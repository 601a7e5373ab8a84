package hostfuncs

import "context"

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var bindingKey = &contextKey{name: "binding"}

// WithBinding attaches an invocation's Binding to ctx. Host functions
// exported to the guest look it up with BindingFromContext, which lets one
// host module registration serve every invocation.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingKey, b)
}

// BindingFromContext retrieves the Binding attached by WithBinding.
func BindingFromContext(ctx context.Context) (*Binding, bool) {
	b, ok := ctx.Value(bindingKey).(*Binding)
	return b, ok && b != nil
}
