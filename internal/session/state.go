package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of a session.
type State int

const (
	Connecting State = iota
	Registering
	Active
	Disconnected
	Completed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Registering:
		return "Registering"
	case Active:
		return "Active"
	case Disconnected:
		return "Disconnected"
	case Completed:
		return "Completed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Disconnected || s == Completed
}

var (
	ErrIllegalTransition = errors.New("session: illegal state transition")
	ErrInvalidState      = errors.New("session: invalid state")
)

// InvalidStateError is returned when an operation is attempted outside the
// state it requires.
type InvalidStateError struct {
	Op      string
	Want    State
	Current State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session: %s requires state %s, current state is %s", e.Op, e.Want, e.Current)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

var transitions = map[State][]State{
	Connecting:  {Registering, Disconnected},
	Registering: {Active, Completed, Disconnected},
	Active:      {Completed, Disconnected},
}

// Machine guards the session state. Done is closed on entering a terminal
// state.
type Machine struct {
	mu    *sync.Mutex
	state State
	done  chan struct{}
}

func NewMachine() *Machine {
	return &Machine{
		mu:    &sync.Mutex{},
		state: Connecting,
		done:  make(chan struct{}),
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, next := range transitions[m.state] {
		if next == to {
			m.state = to
			if to.Terminal() {
				close(m.done)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, m.state, to)
}

// Require fails with an InvalidStateError unless the machine is in want.
func (m *Machine) Require(op string, want State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != want {
		return &InvalidStateError{Op: op, Want: want, Current: m.state}
	}
	return nil
}

func (m *Machine) Done() <-chan struct{} {
	return m.done
}
