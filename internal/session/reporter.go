package session

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kbirk/runnerbot/internal/model"
)

// Reporter receives the user-facing milestones of a session.
type Reporter interface {
	Registered(id string)
	GameStarted(info *model.GameInfo)
	StateUpdated(state *model.BotState)
	Terminated(outcome Outcome)
}

type nopReporter struct{}

func (nopReporter) Registered(string) {}
func (nopReporter) GameStarted(*model.GameInfo) {}
func (nopReporter) StateUpdated(*model.BotState) {}
func (nopReporter) Terminated(Outcome) {}

type TextReporterConfig struct {
	Out io.Writer
	// Window prints the hero window below each status line
	Window bool
	// Optional styling, e.g. color SprintFuncs
	Info    func(a ...any) string
	Success func(a ...any) string
	Failure func(a ...any) string
}

// TextReporter writes one status line per milestone.
type TextReporter struct {
	conf TextReporterConfig
	mu   *sync.Mutex
}

func NewTextReporter(conf TextReporterConfig) *TextReporter {
	if conf.Info == nil {
		conf.Info = fmt.Sprint
	}
	if conf.Success == nil {
		conf.Success = fmt.Sprint
	}
	if conf.Failure == nil {
		conf.Failure = fmt.Sprint
	}
	return &TextReporter{
		conf: conf,
		mu:   &sync.Mutex{},
	}
}

func (r *TextReporter) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.conf.Out, line)
}

func (r *TextReporter) Registered(id string) {
	r.println(r.conf.Info("Registered with id ", id))
}

func (r *TextReporter) GameStarted(info *model.GameInfo) {
	r.println(r.conf.Info(info.Summary()))
}

func (r *TextReporter) StateUpdated(state *model.BotState) {
	line := state.Summary()
	if r.conf.Window {
		if window := state.Window(); window != "" {
			line += "\n" + strings.TrimSuffix(window, "\n")
		}
	}
	r.println(line)
}

func (r *TextReporter) Terminated(outcome Outcome) {
	if outcome.ExitCode() == 0 {
		r.println(r.conf.Success(outcome.String()))
		return
	}
	r.println(r.conf.Failure(outcome.String()))
}
