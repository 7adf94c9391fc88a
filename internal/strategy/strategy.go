// Package strategy decides which action a bot takes for each state snapshot.
package strategy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kbirk/runnerbot/internal/model"
)

// Strategy picks the next action for a snapshot. It is called once per
// snapshot, in arrival order.
type Strategy interface {
	Next(state *model.BotState) model.Action
}

const (
	FixedName  = "fixed"
	SquareName = "square"
)

// Options configures the strategy built by New.
type Options struct {
	Action     model.Action
	SquareSize int
}

// New builds the strategy registered under name.
func New(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(name) {
	case FixedName, "":
		if !opts.Action.Valid() {
			return nil, fmt.Errorf("strategy %s: invalid action %s", FixedName, opts.Action)
		}
		return Fixed{Action: opts.Action}, nil
	case SquareName:
		if opts.SquareSize < 1 {
			return nil, fmt.Errorf("strategy %s: side length must be positive, got %d", SquareName, opts.SquareSize)
		}
		return NewSquare(opts.SquareSize), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// Fixed always answers with the same action.
type Fixed struct {
	Action model.Action
}

func (f Fixed) Next(*model.BotState) model.Action {
	return f.Action
}

var squareOrder = [...]model.Action{model.Up, model.Right, model.Down, model.Left}

// Square walks the outline of a square, Side steps per edge.
type Square struct {
	Side  int
	mu    *sync.Mutex
	edge  int
	steps int
}

func NewSquare(side int) *Square {
	return &Square{
		Side: side,
		mu:   &sync.Mutex{},
	}
}

func (s *Square) Next(*model.BotState) model.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.steps >= s.Side {
		s.edge = (s.edge + 1) % len(squareOrder)
		s.steps = 0
	}
	s.steps++
	return squareOrder[s.edge]
}
