// Package turn implements the turn order and the phase cycle of one game.
package turn

import (
	"encoding/json"
	"fmt"
)

// Phase is a sub-step of the active player's turn.
type Phase uint8

const (
	Untap Phase = iota
	Loot
	Action
	End
)

// Phases lists the cycle in order. Its length is the number of TurnPass
// actions that hand the turn to the next player.
var Phases = []Phase{Untap, Loot, Action, End}

var phaseNames = [...]string{
	Untap:  "Untap",
	Loot:   "Loot",
	Action: "Action",
	End:    "End",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", p)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// next returns the following phase and whether the cycle wrapped.
func (p Phase) next() (Phase, bool) {
	if p == End {
		return Untap, true
	}
	return p + 1, false
}
