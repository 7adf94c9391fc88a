package session

import (
	"context"

	"github.com/kbirk/runnerbot/internal/model"
	"github.com/kbirk/runnerbot/pkg/hub"
)

// Hub method names.
const (
	MethodRegister               = "Register"
	MethodSendPlayerCommand      = "SendPlayerCommand"
	MethodRegistered             = "Registered"
	MethodReceiveGameInformation = "ReceiveGameInformation"
	MethodReceiveBotState        = "ReceiveBotState"
	MethodDisconnect             = "Disconnect"
	MethodReceiveGameComplete    = "ReceiveGameComplete"
	MethodEndGame                = "EndGame"
)

// Event is an inbound hub call. The set is closed: every implementation is
// declared here and handled in Session.apply.
type Event interface {
	event()
}

type Registered struct {
	ID string
}

type GameStarted struct {
	Info *model.GameInfo
}

type StateReceived struct {
	State *model.BotState
}

type DisconnectNotice struct {
	Reason string
}

// GameCompleted ends the game. EndGame may carry the seed and final tick.
type GameCompleted struct {
	Method string
	Seed   int
	Tick   int
}

func (Registered) event()       {}
func (GameStarted) event()      {}
func (StateReceived) event()    {}
func (DisconnectNotice) event() {}
func (GameCompleted) event()    {}

// registerEvents decodes each inbound method into its Event and hands it to
// apply.
func registerEvents(r *hub.Registry, apply func(context.Context, Event) error) {
	hub.Handle1(r, MethodRegistered, func(ctx context.Context, id string) error {
		return apply(ctx, Registered{ID: id})
	})
	hub.Handle1(r, MethodReceiveGameInformation, func(ctx context.Context, info model.GameInfo) error {
		return apply(ctx, GameStarted{Info: &info})
	})
	hub.Handle1(r, MethodReceiveBotState, func(ctx context.Context, state model.BotState) error {
		return apply(ctx, StateReceived{State: &state})
	})
	hub.HandleOptional1(r, MethodDisconnect, func(ctx context.Context, reason string, _ bool) error {
		return apply(ctx, DisconnectNotice{Reason: reason})
	})
	hub.Handle0(r, MethodReceiveGameComplete, func(ctx context.Context) error {
		return apply(ctx, GameCompleted{Method: MethodReceiveGameComplete})
	})
	// the engine sends EndGame(seed, tick), older runners send it bare
	r.Register(MethodEndGame, func(ctx context.Context, inv *hub.Invocation) error {
		ev := GameCompleted{Method: MethodEndGame}
		if len(inv.Arguments) >= 2 {
			seed, seedErr := hub.Argument[int](inv, 0)
			tick, tickErr := hub.Argument[int](inv, 1)
			if seedErr == nil && tickErr == nil {
				ev.Seed = seed
				ev.Tick = tick
			}
		}
		return apply(ctx, ev)
	})
}
