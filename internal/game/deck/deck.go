// Package deck holds the loot deck of one game: a draw pile and its discard.
// A Deck is owned by a single session goroutine and is not safe for
// concurrent use.
package deck

import (
	"math/rand/v2"

	"souls/internal/game/card"
)

type Deck struct {
	draw    Pile
	discard Pile
	rng     *rand.Rand
}

// New shuffles cards into a fresh draw pile.
func New(cards []*card.Instance, rng *rand.Rand) *Deck {
	d := &Deck{draw: append(Pile(nil), cards...), rng: rng}
	d.draw.Shuffle(rng)
	return d
}

// Draw removes the top card. An empty draw pile is refilled from the
// discard pile first; ErrEmpty means both are exhausted.
func (d *Deck) Draw() (*card.Instance, error) {
	if d.draw.Size() == 0 {
		d.Reshuffle()
	}
	return d.draw.DrawTop()
}

// Reshuffle moves the discard pile under the draw pile and shuffles it.
func (d *Deck) Reshuffle() {
	if d.discard.Size() == 0 {
		return
	}
	returned := Pile(d.discard.TakeAll())
	returned.Shuffle(d.rng)
	d.draw = append(d.draw, returned...)
}

func (d *Deck) Discard(c *card.Instance) {
	d.discard.Add(c)
}

func (d *Deck) Size() int        { return d.draw.Size() }
func (d *Deck) DiscardSize() int { return d.discard.Size() }

// TopDiscard is the last discarded card, nil when the discard is empty.
func (d *Deck) TopDiscard() *card.Instance {
	if n := d.discard.Size(); n > 0 {
		return d.discard[n-1]
	}
	return nil
}
