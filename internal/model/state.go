package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kbirk/runnerbot/pkg/wire"
)

type Location struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PowerUpLocation struct {
	Location Location    `json:"location"`
	Type     PowerUpType `json:"type"`
}

// BotState is the snapshot pushed with every ReceiveBotState. A new snapshot
// replaces the previous one. Fields the hub adds later are kept in the
// embedded Extensions.
type BotState struct {
	X                int               `json:"x"`
	Y                int               `json:"y"`
	DirectionState   int               `json:"directionState"`
	ElapsedTime      string            `json:"elapsedTime"`
	GameTick         int               `json:"gameTick"`
	PowerUp          PowerUpType       `json:"powerUp"`
	SuperPowerUp     SuperPowerUpType  `json:"superPowerUp"`
	LeaderBoard      map[string]int    `json:"leaderBoard"`
	Weeds            [][]bool          `json:"weeds"`
	HeroWindow       [][]CellType      `json:"heroWindow"`
	ConnectionID     string            `json:"connectionId,omitempty"`
	BotPositions     []Location        `json:"botPositions,omitempty"`
	PowerUpLocations []PowerUpLocation `json:"powerUpLocations,omitempty"`

	wire.Extensions `json:"-"`
}

// Summary is the one-line status printed for each snapshot.
func (s *BotState) Summary() string {
	return fmt.Sprintf("Position: (%d, %d), Game Tick: %d", s.X, s.Y, s.GameTick)
}

// Window renders the hero window with the top row first. The window is
// indexed [x][y].
func (s *BotState) Window() string {
	if len(s.HeroWindow) == 0 || len(s.HeroWindow[0]) == 0 {
		return ""
	}

	var b strings.Builder
	for y := len(s.HeroWindow[0]) - 1; y >= 0; y-- {
		for x := range s.HeroWindow {
			if y < len(s.HeroWindow[x]) {
				b.WriteByte(s.HeroWindow[x][y].Glyph())
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Elapsed parses ElapsedTime, which the hub formats as [-][d.]hh:mm:ss[.fffffff].
func (s *BotState) Elapsed() (time.Duration, error) {
	return ParseTimeSpan(s.ElapsedTime)
}

func ParseTimeSpan(text string) (time.Duration, error) {
	invalid := func() (time.Duration, error) {
		return 0, fmt.Errorf("invalid time span %q", text)
	}

	v := strings.TrimSpace(text)
	negative := strings.HasPrefix(v, "-")
	v = strings.TrimPrefix(v, "-")
	if strings.ContainsAny(v, "+-") {
		return invalid()
	}

	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return invalid()
	}

	var days int64
	hours := parts[0]
	if d, h, ok := strings.Cut(parts[0], "."); ok {
		n, err := strconv.ParseInt(d, 10, 64)
		if err != nil {
			return invalid()
		}
		days = n
		hours = h
	}

	h, err := strconv.ParseInt(hours, 10, 64)
	if err != nil || h > 23 {
		return invalid()
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || m > 59 {
		return invalid()
	}

	secs, frac, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil || sec > 59 {
		return invalid()
	}

	var nanos int64
	if frac != "" {
		if len(frac) > 9 {
			return invalid()
		}
		n, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err != nil {
			return invalid()
		}
		nanos = n
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(nanos)
	if negative {
		d = -d
	}
	return d, nil
}

// GameInfo describes the match, sent with ReceiveGameInformation before the
// first snapshot.
type GameInfo struct {
	MaxTicks         int               `json:"maxTicks"`
	TickRate         int               `json:"tickRate"`
	Rows             int               `json:"rows"`
	Cols             int               `json:"cols"`
	RandomSeed       int               `json:"randomSeed"`
	PlayerWindowSize int               `json:"playerWindowSize"`
	Bots             map[string]string `json:"bots,omitempty"`

	wire.Extensions `json:"-"`
}

func (g *GameInfo) Summary() string {
	return fmt.Sprintf("Map: %dx%d, Bots: %d, Max Ticks: %d", g.Cols, g.Rows, len(g.Bots), g.MaxTicks)
}
