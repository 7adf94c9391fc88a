// Package session drives one bot through a game: it registers with the runner
// hub, answers every state snapshot with a command, and ends on the hub's
// terminal notices.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kbirk/runnerbot/internal/model"
	"github.com/kbirk/runnerbot/internal/strategy"
	"github.com/kbirk/runnerbot/pkg/hub"
)

const failureBuffer = 64

// Client is the hub connection a session runs over. *hub.Client implements
// it.
type Client interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, method string, args ...any) error
	Run(ctx context.Context) error
	Close() error
	Registry() *hub.Registry
	Middleware(hub.Middleware)
}

type Config struct {
	Token    string
	Nickname string
	Strategy strategy.Strategy
	Reporter Reporter
	Logger   *zap.Logger
}

// Outcome is how a session ended.
type Outcome struct {
	State           State
	Reason          string
	Method          string
	HandlerFailures int
}

// ExitCode is 0 when the game completed and 1 otherwise.
func (o Outcome) ExitCode() int {
	if o.State == Completed {
		return 0
	}
	return 1
}

func (o Outcome) String() string {
	switch {
	case o.State == Completed:
		return "Game complete (" + o.Method + ")"
	case o.Reason != "":
		return o.State.String() + ": " + o.Reason
	}
	return o.State.String()
}

type handlerFailure struct {
	method string
	err    error
}

type Session struct {
	conf     Config
	client   Client
	logger   *zap.Logger
	machine  *Machine
	identity *Identity
	failures chan handlerFailure
	failed   *atomic.Int64
	mu       *sync.Mutex
	reason   string
	method   string
}

// New builds a session over client and registers its handlers on the
// client's registry.
func New(client Client, conf Config) *Session {
	if conf.Strategy == nil {
		conf.Strategy = strategy.Fixed{Action: model.Right}
	}
	if conf.Reporter == nil {
		conf.Reporter = nopReporter{}
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	s := &Session{
		conf:     conf,
		client:   client,
		logger:   conf.Logger,
		machine:  NewMachine(),
		identity: &Identity{},
		failures: make(chan handlerFailure, failureBuffer),
		failed:   &atomic.Int64{},
		mu:       &sync.Mutex{},
	}

	registerEvents(client.Registry(), s.apply)
	client.Middleware(s.supervise)
	return s
}

func (s *Session) State() State {
	return s.machine.State()
}

// Identity returns the id assigned by the hub, once registered.
func (s *Session) Identity() (string, bool) {
	return s.identity.Get()
}

// Run connects, registers and processes hub calls until the game ends or the
// connection is lost. A returned error means the session did not reach a
// terminal notice from the hub.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	stop := make(chan struct{})
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		s.superviseFailures(stop)
	}()
	defer func() {
		close(stop)
		<-supervised
	}()

	s.logger.Info("connecting to hub")
	err := s.client.Connect(ctx)
	if err != nil {
		return s.fail(err)
	}

	err = s.machine.Transition(Registering)
	if err != nil {
		s.client.Close()
		return s.fail(err)
	}

	s.logger.Info("registering", zap.String("nickname", s.conf.Nickname))
	err = s.Invoke(ctx, MethodRegister, s.conf.Token, s.conf.Nickname)
	if err != nil {
		s.client.Close()
		return s.fail(err)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- s.client.Run(ctx)
	}()

	select {
	case <-s.machine.Done():
		s.client.Close()
		<-runErr
		return s.finish(), nil
	case err := <-runErr:
		// Run returns after every queued handler has run
		if s.machine.State().Terminal() {
			return s.finish(), nil
		}
		return s.fail(err)
	}
}

// Invoke sends an outbound call. Register is only accepted while registering,
// every other method only once active; a rejected call writes nothing.
func (s *Session) Invoke(ctx context.Context, method string, args ...any) error {
	want := Active
	if method == MethodRegister {
		want = Registering
	}
	err := s.machine.Require(method, want)
	if err != nil {
		return err
	}
	return s.client.Send(ctx, method, args...)
}

func (s *Session) apply(ctx context.Context, ev Event) error {
	switch ev := ev.(type) {
	case Registered:
		return s.onRegistered(ev)
	case GameStarted:
		s.logger.Info("game information received",
			zap.Int("rows", ev.Info.Rows),
			zap.Int("cols", ev.Info.Cols),
			zap.Int("maxTicks", ev.Info.MaxTicks))
		s.conf.Reporter.GameStarted(ev.Info)
		return nil
	case StateReceived:
		return s.onState(ctx, ev)
	case DisconnectNotice:
		return s.terminate(Disconnected, ev.Reason, MethodDisconnect)
	case GameCompleted:
		if ev.Method == MethodEndGame && ev.Tick > 0 {
			s.logger.Info("game ended", zap.Int("seed", ev.Seed), zap.Int("tick", ev.Tick))
		}
		return s.terminate(Completed, "", ev.Method)
	}
	return fmt.Errorf("session: unhandled event %T", ev)
}

func (s *Session) onRegistered(ev Registered) error {
	err := s.identity.Set(ev.ID)
	if errors.Is(err, ErrEmptyIdentity) && s.machine.State() == Registering {
		// no command can be addressed without an id
		return errors.Join(err, s.terminate(Disconnected, "hub assigned an empty id", MethodRegistered))
	}
	if err != nil {
		current, _ := s.identity.Get()
		return fmt.Errorf("registered as %q, already %q: %w", ev.ID, current, err)
	}
	err = s.machine.Transition(Active)
	if err != nil {
		return err
	}

	s.logger.Info("registered", zap.String("id", ev.ID))
	s.conf.Reporter.Registered(ev.ID)
	return nil
}

func (s *Session) onState(ctx context.Context, ev StateReceived) error {
	err := s.machine.Require(MethodReceiveBotState, Active)
	if err != nil {
		s.logger.Warn("ignoring state snapshot", zap.Error(err))
		return nil
	}

	s.logger.Debug("state received",
		zap.Int("x", ev.State.X),
		zap.Int("y", ev.State.Y),
		zap.Int("gameTick", ev.State.GameTick))
	s.conf.Reporter.StateUpdated(ev.State)

	cmd := model.NewCommand(s.conf.Strategy.Next(ev.State), s.identity.MustGet())
	err = s.Invoke(ctx, MethodSendPlayerCommand, cmd)
	if err != nil {
		s.logger.Warn("sending command failed",
			zap.Stringer("action", cmd.Action),
			zap.Int("gameTick", ev.State.GameTick),
			zap.Error(err))
	}
	return nil
}

func (s *Session) terminate(state State, reason string, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.machine.Transition(state)
	if err != nil {
		return err
	}
	s.reason = reason
	s.method = method
	return nil
}

// supervise is hub middleware that forwards handler failures to the
// supervisor.
func (s *Session) supervise(ctx context.Context, inv *hub.Invocation, next hub.Handler) error {
	err := next(ctx, inv)
	if err == nil || errors.Is(err, hub.ErrUnknownMethod) {
		return err
	}

	s.failed.Add(1)
	select {
	case s.failures <- handlerFailure{method: inv.Target, err: err}:
	default:
		s.logger.Warn("handler failure not supervised, queue full", zap.String("method", inv.Target))
	}
	return err
}

func (s *Session) superviseFailures(stop <-chan struct{}) {
	for {
		select {
		case f := <-s.failures:
			s.logFailure(f)
		case <-stop:
			for {
				select {
				case f := <-s.failures:
					s.logFailure(f)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) logFailure(f handlerFailure) {
	s.logger.Error("handler failed", zap.String("method", f.method), zap.Error(f.err))
}

func (s *Session) fail(err error) (Outcome, error) {
	s.terminate(Disconnected, err.Error(), "")
	return s.finish(), err
}

func (s *Session) finish() Outcome {
	s.mu.Lock()
	outcome := Outcome{
		State:           s.machine.State(),
		Reason:          s.reason,
		Method:          s.method,
		HandlerFailures: int(s.failed.Load()),
	}
	s.mu.Unlock()

	s.logger.Info("session ended",
		zap.Stringer("state", outcome.State),
		zap.String("reason", outcome.Reason),
		zap.Int("exitCode", outcome.ExitCode()))
	s.conf.Reporter.Terminated(outcome)
	return outcome
}
