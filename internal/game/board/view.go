package board

import (
	"souls/internal/game/card"
	"souls/internal/game/turn"
)

type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Resources
}

// PublicState is what every member of the room may see.
type PublicState struct {
	ActivePlayer string         `json:"active_player"`
	Phase        turn.Phase     `json:"phase"`
	Turn         int            `json:"turn"`
	DeckSize     int            `json:"deck_size"`
	DiscardSize  int            `json:"discard_size"`
	HandSizes    map[string]int `json:"hand_sizes"`
	Players      []PlayerView   `json:"players"`
	TopDiscard   *card.View     `json:"top_discard,omitempty"`
}

// PrivateState is one player's own hand.
type PrivateState struct {
	PlayerID string      `json:"player_id"`
	Hand     []card.View `json:"hand"`
}

func (b *Board) Public(m *turn.Machine) PublicState {
	s := PublicState{
		ActivePlayer: m.Active(),
		Phase:        m.Phase(),
		Turn:         m.Turn(),
		DeckSize:     b.deck.Size(),
		DiscardSize:  b.deck.DiscardSize(),
		HandSizes:    make(map[string]int, len(b.players)),
		Players:      make([]PlayerView, 0, len(b.seats)),
	}
	if top := b.deck.TopDiscard(); top != nil {
		v := top.View()
		s.TopDiscard = &v
	}
	for _, id := range b.seats {
		p := b.players[id]
		s.HandSizes[id] = p.hand.Size()
		s.Players = append(s.Players, PlayerView{
			ID:        id,
			Name:      p.name,
			Connected: p.connected,
			Resources: p.res,
		})
	}
	return s
}

func (b *Board) Private(playerID string) (PrivateState, error) {
	p, err := b.Player(playerID)
	if err != nil {
		return PrivateState{}, err
	}
	hand := make([]card.View, 0, p.hand.Size())
	for _, c := range p.hand {
		hand = append(hand, c.View())
	}
	return PrivateState{PlayerID: playerID, Hand: hand}, nil
}
