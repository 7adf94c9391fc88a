package hub

import (
	"context"
	"fmt"
	"runtime/debug"
)

type Handler func(context.Context, *Invocation) error
type Middleware func(context.Context, *Invocation, Handler) error

func buildHandlerFunction(middleware []Middleware, final Handler) Handler {

	// start with the final handler
	chain := final

	// loop backwards through the middleware slice
	for i := len(middleware) - 1; i >= 0; i-- {
		// capture the current middleware handler
		m := middleware[i]

		// wrap the current chain with the current middleware
		next := chain
		chain = func(ctx context.Context, inv *Invocation) error {
			return m(ctx, inv, next)
		}
	}

	// return the fully chained handler
	return chain
}

func ApplyHandlerChain(ctx context.Context, inv *Invocation, middleware []Middleware, final Handler) error {
	fn := buildHandlerFunction(middleware, final)
	return fn(ctx, inv)
}

// Recover converts a handler panic into an error wrapping ErrHandlerPanic.
func Recover(ctx context.Context, inv *Invocation, next Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v\n%s", ErrHandlerPanic, inv.Target, r, debug.Stack())
		}
	}()
	return next(ctx, inv)
}
