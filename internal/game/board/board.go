// Package board holds the state of one running game: the loot deck, the
// discard, every player's hand and resources. A Board belongs to a single
// session goroutine and does no locking of its own.
package board

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"souls/internal/apperr"
	"souls/internal/game/card"
	"souls/internal/game/deck"
)

// Seat identifies a player taking part in the game.
type Seat struct {
	PlayerID string
	Name     string
}

type Settings struct {
	HandSize int
	Coins    int
	Health   int
	MaxCoins int
}

func DefaultSettings() Settings {
	return Settings{HandSize: 3, Coins: 3, Health: 2, MaxCoins: 99}
}

type Resources struct {
	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Coins     int `json:"coins"`
	Souls     int `json:"souls"`
}

type Player struct {
	id        string
	name      string
	res       Resources
	hand      deck.Pile
	connected bool
}

func (p *Player) ID() string           { return p.id }
func (p *Player) Name() string         { return p.name }
func (p *Player) Resources() Resources { return p.res }
func (p *Player) HandSize() int        { return p.hand.Size() }
func (p *Player) Connected() bool      { return p.connected }

type Board struct {
	deck     *deck.Deck
	players  map[string]*Player
	seats    []string
	settings Settings
	total    int
}

// New shuffles a full loot deck from catalog and deals every seat its
// opening hand.
func New(seats []Seat, catalog *card.Catalog, rng *rand.Rand, s Settings) (*Board, error) {
	if len(seats) == 0 {
		return nil, errors.New("board needs at least one seat")
	}
	cards := catalog.NewLootDeck()
	b := &Board{
		deck:     deck.New(cards, rng),
		players:  make(map[string]*Player, len(seats)),
		settings: s,
		total:    len(cards),
	}
	for _, seat := range seats {
		if seat.PlayerID == "" {
			return nil, errors.New("seat without player id")
		}
		if _, dup := b.players[seat.PlayerID]; dup {
			return nil, fmt.Errorf("player %s seated twice", seat.PlayerID)
		}
		b.players[seat.PlayerID] = &Player{
			id:        seat.PlayerID,
			name:      seat.Name,
			res:       Resources{Health: s.Health, MaxHealth: s.Health, Coins: s.Coins},
			connected: true,
		}
		b.seats = append(b.seats, seat.PlayerID)
	}

	for i := 0; i < s.HandSize; i++ {
		for _, id := range b.seats {
			if _, err := b.Draw(id); err != nil {
				return nil, fmt.Errorf("deal opening hands: %w", err)
			}
		}
	}
	return b, nil
}

func (b *Board) Player(id string) (*Player, error) {
	p, ok := b.players[id]
	if !ok {
		return nil, apperr.New(apperr.UnknownPlayer, "player %s is not on this board", id)
	}
	return p, nil
}

// Seats returns player ids in seating order.
func (b *Board) Seats() []string {
	return append([]string(nil), b.seats...)
}

// Draw moves the top loot card into the player's hand. A nil card with a
// nil error means the deck and discard are both exhausted.
func (b *Board) Draw(playerID string) (*card.Instance, error) {
	p, err := b.Player(playerID)
	if err != nil {
		return nil, err
	}
	c, err := b.deck.Draw()
	if errors.Is(err, deck.ErrEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.hand.Add(c)
	return c, nil
}

// Play moves a card from the player's hand to the discard and applies its
// effect.
func (b *Board) Play(playerID, cardID string) (*card.Instance, error) {
	p, err := b.Player(playerID)
	if err != nil {
		return nil, err
	}
	c, err := p.hand.Remove(cardID)
	if err != nil {
		return nil, apperr.New(apperr.CardNotInHand, "card %s is not in your hand", cardID)
	}
	b.deck.Discard(c)
	b.apply(p, c.Template().Effect())
	return c, nil
}

func (b *Board) apply(p *Player, e card.Effect) {
	p.res.Coins = min(p.res.Coins+e.Coins, b.settings.MaxCoins)
	p.res.Souls += e.Souls
	p.res.Health = min(p.res.Health+e.Heal, p.res.MaxHealth)
}

func (b *Board) SetConnected(playerID string, connected bool) error {
	p, err := b.Player(playerID)
	if err != nil {
		return err
	}
	p.connected = connected
	return nil
}

// Winner returns the first seat, in seating order, holding at least
// threshold souls.
func (b *Board) Winner(threshold int) (string, bool) {
	for _, id := range b.seats {
		if b.players[id].res.Souls >= threshold {
			return id, true
		}
	}
	return "", false
}

// CardCount is the number of cards across deck, discard and hands. It
// stays equal to TotalCards for the life of the board.
func (b *Board) CardCount() int {
	n := b.deck.Size() + b.deck.DiscardSize()
	for _, p := range b.players {
		n += p.hand.Size()
	}
	return n
}

func (b *Board) TotalCards() int { return b.total }
