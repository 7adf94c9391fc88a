package model

import (
	"fmt"
	"strings"
)

// Action is a movement command. Its integer values are fixed by the hub.
type Action int

const (
	Idle Action = iota
	Up
	Down
	Left
	Right
)

var actionNames = [...]string{
	Idle:  "Idle",
	Up:    "Up",
	Down:  "Down",
	Left:  "Left",
	Right: "Right",
}

func (a Action) Valid() bool {
	return a >= Idle && a <= Right
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// ActionFromInt maps a wire integer to an action. Values outside 0..4 are
// rejected.
func ActionFromInt(v int64) (Action, error) {
	a := Action(v)
	if int64(a) != v || !a.Valid() {
		return Idle, fmt.Errorf("action %d out of range", v)
	}
	return a, nil
}

func (a *Action) UnmarshalInt(v int64) error {
	action, err := ActionFromInt(v)
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// ParseAction looks an action up by name, ignoring case.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if strings.EqualFold(n, name) {
			return Action(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown action %q", name)
}

// Command is the payload of SendPlayerCommand.
type Command struct {
	Action Action `json:"action"`
	BotID  string `json:"botId"`
}

func NewCommand(action Action, botID string) Command {
	return Command{
		Action: action,
		BotID:  botID,
	}
}
