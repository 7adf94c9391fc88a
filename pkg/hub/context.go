package hub

import (
	"context"
)

type invocationKey struct{}

// NewContextWithInvocation attaches the invocation being handled to ctx.
func NewContextWithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFromContext returns the invocation a handler was called for.
func InvocationFromContext(ctx context.Context) (*Invocation, bool) {
	v := ctx.Value(invocationKey{})
	if v != nil {
		inv, ok := v.(*Invocation)
		if ok {
			return inv, true
		}
	}
	return nil, false
}
