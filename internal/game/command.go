// internal/game/command.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/pongarena/internal/arena"
)

// CommandKind distinguishes the inputs a player can queue for the next tick.
type CommandKind int

const (
	// CommandMove holds a direction on an axis until changed.
	CommandMove CommandKind = iota
	// CommandNudge moves for a single tick.
	CommandNudge
	// CommandStop clears all movement.
	CommandStop
	// CommandAbility fires the paddle's special ability.
	CommandAbility
)

// Command is one queued player input.
type Command struct {
	Kind      CommandKind
	Axis      int
	Direction float64
}

// LeftMove and RightMove are the one-tick lateral nudges sent by simple clients.
func LeftMove() Command  { return Command{Kind: CommandNudge, Axis: arena.AxisX, Direction: -1} }
func RightMove() Command { return Command{Kind: CommandNudge, Axis: arena.AxisX, Direction: 1} }

// Hold builds a held movement command from the wire form of a paddle-command.
func Hold(axis string, direction float64) (Command, error) {
	a, err := ParseAxis(axis)
	if err != nil {
		return Command{}, err
	}
	if direction < -1 || direction > 1 {
		return Command{}, fmt.Errorf("direction %v out of range [-1, 1]", direction)
	}
	return Command{Kind: CommandMove, Axis: a, Direction: direction}, nil
}

// ParseAxis maps "x"/"y" to an arena axis. Paddles never move along z.
func ParseAxis(s string) (int, error) {
	switch s {
	case "x", "X":
		return arena.AxisX, nil
	case "y", "Y":
		return arena.AxisY, nil
	default:
		return 0, fmt.Errorf("invalid axis %q", s)
	}
}

type queuedCommand struct {
	player int
	cmd    Command
}
