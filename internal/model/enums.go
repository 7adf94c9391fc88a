package model

import "fmt"

// PowerUpType is the power-up a bot currently holds. Values are passed
// through without validation.
type PowerUpType int

const (
	NoPowerUp PowerUpType = iota
	TerritoryImmunity
	Unprunable
	Freeze
)

func (p PowerUpType) String() string {
	switch p {
	case NoPowerUp:
		return "None"
	case TerritoryImmunity:
		return "TerritoryImmunity"
	case Unprunable:
		return "Unprunable"
	case Freeze:
		return "Freeze"
	}
	return fmt.Sprintf("PowerUpType(%d)", int(p))
}

// SuperPowerUpType is the super power-up a bot currently holds. The engine
// numbers these 4 and 5, the starter bots 1 and 2; both are accepted.
type SuperPowerUpType int

const (
	NoSuperPowerUp  SuperPowerUpType = 0
	TrailProtection SuperPowerUpType = 4
	SuperFertilizer SuperPowerUpType = 5
)

func (s SuperPowerUpType) String() string {
	switch s {
	case NoSuperPowerUp:
		return "None"
	case TrailProtection, 1:
		return "TrailProtection"
	case SuperFertilizer, 2:
		return "SuperFertilizer"
	}
	return fmt.Sprintf("SuperPowerUpType(%d)", int(s))
}

// CellType is one cell of the hero window.
type CellType int

const (
	Bot0Territory CellType = iota
	Bot1Territory
	Bot2Territory
	Bot3Territory
	Bot0Trail
	Bot1Trail
	Bot2Trail
	Bot3Trail

	OutOfBounds CellType = 254
	Unclaimed   CellType = 255
)

func (c CellType) Territory() bool {
	return c >= Bot0Territory && c <= Bot3Territory
}

func (c CellType) Trail() bool {
	return c >= Bot0Trail && c <= Bot3Trail
}

// Owner returns the bot slot a territory or trail cell belongs to.
func (c CellType) Owner() (int, bool) {
	switch {
	case c.Territory():
		return int(c - Bot0Territory), true
	case c.Trail():
		return int(c - Bot0Trail), true
	}
	return 0, false
}

// Glyph is the single character used when rendering a window.
func (c CellType) Glyph() byte {
	switch {
	case c.Territory():
		return byte('0' + (c - Bot0Territory))
	case c.Trail():
		return byte('a' + (c - Bot0Trail))
	case c == OutOfBounds:
		return '#'
	case c == Unclaimed:
		return '.'
	}
	return '?'
}

func (c CellType) String() string {
	switch {
	case c.Territory():
		return fmt.Sprintf("Bot%dTerritory", int(c-Bot0Territory))
	case c.Trail():
		return fmt.Sprintf("Bot%dTrail", int(c-Bot0Trail))
	case c == OutOfBounds:
		return "OutOfBounds"
	case c == Unclaimed:
		return "Unclaimed"
	}
	return fmt.Sprintf("CellType(%d)", int(c))
}
