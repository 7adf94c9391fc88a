package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbirk/runnerbot/pkg/wire"
)

// Registry maps method names to handlers. Lookups are exact and
// case-sensitive.
type Registry struct {
	mu       *sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		mu:       &sync.RWMutex{},
		handlers: make(map[string]Handler),
	}
}

// Register associates a method name with a handler. Registering the same name
// twice is a programming error.
func (r *Registry) Register(name string, handler Handler) {
	if name == "" {
		panic("method name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("method %q already registered", name))
	}
	r.handlers[name] = handler
}

func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Dispatch routes an invocation to its handler.
func (r *Registry) Dispatch(ctx context.Context, inv *Invocation) error {
	h, ok := r.Lookup(inv.Target)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, inv.Target)
	}
	return h(ctx, inv)
}

func checkArgs(inv *Invocation, least int, most int) error {
	n := len(inv.Arguments)
	if n < least || n > most {
		if least == most {
			return fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, inv.Target, least, n)
		}
		return fmt.Errorf("%w: %s expects %d to %d, got %d", ErrArgumentCount, inv.Target, least, most, n)
	}
	return nil
}

// Argument decodes the i-th argument of an invocation.
func Argument[A any](inv *Invocation, i int) (A, error) {
	var arg A
	if i < 0 || i >= len(inv.Arguments) {
		return arg, fmt.Errorf("%w: %s has no argument %d", ErrArgumentCount, inv.Target, i)
	}
	if err := wire.Decode(inv.Arguments[i], &arg); err != nil {
		return arg, fmt.Errorf("%s argument %d: %w", inv.Target, i, err)
	}
	return arg, nil
}

// Handle0 registers a handler for a method without arguments.
func Handle0(r *Registry, name string, fn func(context.Context) error) {
	r.Register(name, func(ctx context.Context, inv *Invocation) error {
		if err := checkArgs(inv, 0, 0); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// Handle1 registers a handler for a method with one typed argument.
func Handle1[A any](r *Registry, name string, fn func(context.Context, A) error) {
	r.Register(name, func(ctx context.Context, inv *Invocation) error {
		if err := checkArgs(inv, 1, 1); err != nil {
			return err
		}
		arg, err := Argument[A](inv, 0)
		if err != nil {
			return err
		}
		return fn(ctx, arg)
	})
}

// HandleOptional1 registers a handler for a method whose single argument may
// be omitted. The flag reports whether it was present.
func HandleOptional1[A any](r *Registry, name string, fn func(context.Context, A, bool) error) {
	r.Register(name, func(ctx context.Context, inv *Invocation) error {
		if err := checkArgs(inv, 0, 1); err != nil {
			return err
		}
		var arg A
		if len(inv.Arguments) == 0 {
			return fn(ctx, arg, false)
		}
		arg, err := Argument[A](inv, 0)
		if err != nil {
			return err
		}
		return fn(ctx, arg, true)
	})
}
