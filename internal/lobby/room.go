package lobby

import (
	"time"

	"souls/internal/session"
)

// State is the lifecycle stage of a room.
type State string

const (
	StateLobby    State = "Lobby"
	StateStarting State = "Starting"
	StateInGame   State = "InGame"
	StateFinished State = "Finished"
)

type member struct {
	playerID  string
	name      string
	connID    string
	connected bool
}

// Room is only touched with the Manager's lock held.
type Room struct {
	id        string
	name      string
	members   []*member
	ready     map[string]bool
	state     State
	session   *session.Session
	winner    string
	createdAt time.Time
	touchedAt time.Time
}

func (r *Room) find(playerID string) (int, *member) {
	for i, m := range r.members {
		if m.playerID == playerID {
			return i, m
		}
	}
	return -1, nil
}

func (r *Room) remove(playerID string) *member {
	i, m := r.find(playerID)
	if m == nil {
		return nil
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	delete(r.ready, playerID)
	return m
}

// sessionMembers returns members in join order as seen by the game.
func (r *Room) sessionMembers() []session.Member {
	out := make([]session.Member, 0, len(r.members))
	for _, m := range r.members {
		connID := m.connID
		if !m.connected {
			connID = ""
		}
		out = append(out, session.Member{PlayerID: m.playerID, Name: m.name, ConnID: connID})
	}
	return out
}

func (r *Room) readyList() []string {
	out := make([]string, 0, len(r.ready))
	for _, m := range r.members {
		if r.ready[m.playerID] {
			out = append(out, m.playerID)
		}
	}
	return out
}

func (r *Room) allReady() bool {
	for _, m := range r.members {
		if !r.ready[m.playerID] {
			return false
		}
	}
	return true
}

func (r *Room) anyConnected() bool {
	for _, m := range r.members {
		if m.connected {
			return true
		}
	}
	return false
}

// Summary is a read-only snapshot of a room.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Players   []string  `json:"players"`
	Ready     []string  `json:"ready"`
	WinnerID  string    `json:"winner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Room) summary() Summary {
	players := make([]string, 0, len(r.members))
	for _, m := range r.members {
		players = append(players, m.playerID)
	}
	return Summary{
		ID:        r.id,
		Name:      r.name,
		State:     r.state,
		Players:   players,
		Ready:     r.readyList(),
		WinnerID:  r.winner,
		CreatedAt: r.createdAt,
	}
}
