package hub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyHandlerChainOrder(t *testing.T) {
	var calls []string

	record := func(name string) Middleware {
		return func(ctx context.Context, inv *Invocation, next Handler) error {
			calls = append(calls, name+":before")
			err := next(ctx, inv)
			calls = append(calls, name+":after")
			return err
		}
	}

	final := func(ctx context.Context, inv *Invocation) error {
		calls = append(calls, "handler")
		return nil
	}

	err := ApplyHandlerChain(context.Background(), invocation("EndGame"), []Middleware{record("a"), record("b")}, final)
	require.NoError(t, err)

	assert.Equal(t, []string{"a:before", "b:before", "handler", "b:after", "a:after"}, calls)
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	called := false
	deny := func(ctx context.Context, inv *Invocation, next Handler) error {
		return ErrUnknownMethod
	}
	final := func(ctx context.Context, inv *Invocation) error {
		called = true
		return nil
	}

	err := ApplyHandlerChain(context.Background(), invocation("EndGame"), []Middleware{deny}, final)
	assert.ErrorIs(t, err, ErrUnknownMethod)
	assert.False(t, called)
}

func TestRecoverConvertsPanics(t *testing.T) {
	final := func(ctx context.Context, inv *Invocation) error {
		panic("kaboom")
	}

	err := ApplyHandlerChain(context.Background(), invocation("ReceiveBotState"), []Middleware{Recover}, final)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Contains(t, err.Error(), "ReceiveBotState")
	assert.Contains(t, err.Error(), "kaboom")
}

func TestInvocationFromContext(t *testing.T) {
	inv := invocation("Registered", `"P7"`)

	_, ok := InvocationFromContext(context.Background())
	assert.False(t, ok)

	got, ok := InvocationFromContext(NewContextWithInvocation(context.Background(), inv))
	require.True(t, ok)
	assert.Same(t, inv, got)
}
