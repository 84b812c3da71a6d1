package turn

import (
	"souls/internal/apperr"
)

// Transition describes what one successful Pass changed.
type Transition struct {
	From        Phase
	To          Phase
	Player      string
	TurnChanged bool
	Turn        int
}

// Machine is the (active index, phase) state of a session. It is owned by
// one session goroutine. Rejected actions leave it untouched.
type Machine struct {
	order  Order
	active int
	phase  Phase
	turn   int
}

// NewMachine starts at the first seat in the first phase.
func NewMachine(order Order) *Machine {
	return &Machine{order: order, phase: Phases[0], turn: 1}
}

func (m *Machine) Order() Order     { return m.order }
func (m *Machine) Phase() Phase     { return m.phase }
func (m *Machine) Turn() int        { return m.turn }
func (m *Machine) ActiveIndex() int { return m.active }

func (m *Machine) Active() string {
	return m.order.At(m.active)
}

// Pass advances the phase for the active player. Wrapping past End hands
// the turn to the next seat.
func (m *Machine) Pass(player string) (Transition, error) {
	if err := m.checkActive(player); err != nil {
		return Transition{}, err
	}

	next, wrapped := m.phase.next()
	t := Transition{From: m.phase, To: next}
	if wrapped {
		m.active = (m.active + 1) % m.order.Len()
		m.turn++
		t.TurnChanged = true
	}
	m.phase = next
	t.Player = m.Active()
	t.Turn = m.turn
	return t, nil
}

// Require checks that player may act in phase right now.
func (m *Machine) Require(player string, phase Phase) error {
	if err := m.checkActive(player); err != nil {
		return err
	}
	if m.phase != phase {
		return apperr.New(apperr.InvalidPhase, "action requires %s phase, current phase is %s", phase, m.phase)
	}
	return nil
}

func (m *Machine) checkActive(player string) error {
	if !m.order.Contains(player) {
		return apperr.New(apperr.UnknownPlayer, "player %s is not seated in this game", player)
	}
	if m.Active() != player {
		return apperr.New(apperr.NotYourTurn, "it is %s's turn", m.Active())
	}
	return nil
}
