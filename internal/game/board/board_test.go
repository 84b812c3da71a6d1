package board

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souls/internal/apperr"
	"souls/internal/game/card"
	"souls/internal/game/turn"
)

const testCatalog = `[
  {"id":"coin","name":"Coin","card_type":"Loot","count":10,"effect":{"coins":2}},
  {"id":"soul","name":"Soul","card_type":"Loot","count":4,"effect":{"souls":1}},
  {"id":"heart","name":"Heart","card_type":"Loot","count":2,"effect":{"heal":1}}
]`

func newBoard(t *testing.T, s Settings) *Board {
	t.Helper()
	c, err := card.Parse([]byte(testCatalog))
	require.NoError(t, err)
	b, err := New([]Seat{{"p1", "Alice"}, {"p2", "Bob"}}, c, rand.New(rand.NewPCG(11, 1)), s)
	require.NoError(t, err)
	return b
}

func TestOpeningDeal(t *testing.T) {
	b := newBoard(t, DefaultSettings())

	for _, id := range []string{"p1", "p2"} {
		p, err := b.Player(id)
		require.NoError(t, err)
		assert.Equal(t, 3, p.HandSize())
		assert.Equal(t, Resources{Health: 2, MaxHealth: 2, Coins: 3}, p.Resources())
	}
	assert.Equal(t, 16, b.TotalCards())
	assert.Equal(t, 16, b.CardCount())
	assert.Equal(t, []string{"p1", "p2"}, b.Seats())
}

func TestPlayMovesCardAndAppliesEffect(t *testing.T) {
	b := newBoard(t, Settings{HandSize: 0, Coins: 98, Health: 1, MaxCoins: 99})

	var played int
	for b.deck.Size() > 0 {
		c, err := b.Draw("p1")
		require.NoError(t, err)
		_, err = b.Play("p1", c.ID())
		require.NoError(t, err)
		played++
		assert.Equal(t, b.TotalCards(), b.CardCount())
	}

	p, _ := b.Player("p1")
	assert.Equal(t, 16, played)
	assert.Equal(t, 99, p.Resources().Coins, "coins are capped")
	assert.Equal(t, 4, p.Resources().Souls)
	assert.Equal(t, 1, p.Resources().Health, "heal is capped at max health")
	assert.Equal(t, 16, b.deck.DiscardSize())

	winner, ok := b.Winner(4)
	assert.True(t, ok)
	assert.Equal(t, "p1", winner)
	_, ok = b.Winner(5)
	assert.False(t, ok)
}

func TestPlayRejectsForeignCard(t *testing.T) {
	b := newBoard(t, DefaultSettings())
	p2, _ := b.Private("p2")

	_, err := b.Play("p1", p2.Hand[0].ID)
	assert.Equal(t, apperr.CardNotInHand, apperr.KindOf(err))

	_, err = b.Play("ghost", p2.Hand[0].ID)
	assert.Equal(t, apperr.UnknownPlayer, apperr.KindOf(err))
	assert.Equal(t, b.TotalCards(), b.CardCount())
}

func TestDrawReshufflesDiscard(t *testing.T) {
	b := newBoard(t, Settings{HandSize: 8, MaxCoins: 99})
	require.Equal(t, 0, b.deck.Size())

	c, err := b.Draw("p1")
	require.NoError(t, err)
	assert.Nil(t, c, "nothing left to draw")

	priv, _ := b.Private("p2")
	_, err = b.Play("p2", priv.Hand[0].ID)
	require.NoError(t, err)

	c, err = b.Draw("p1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, priv.Hand[0].ID, c.ID())
	assert.Equal(t, b.TotalCards(), b.CardCount())
}

func TestViews(t *testing.T) {
	b := newBoard(t, DefaultSettings())
	m := turn.NewMachine(turn.FixedOrder([]string{"p2", "p1"}))

	pub := b.Public(m)
	assert.Equal(t, "p2", pub.ActivePlayer)
	assert.Equal(t, turn.Untap, pub.Phase)
	assert.Equal(t, map[string]int{"p1": 3, "p2": 3}, pub.HandSizes)
	assert.Equal(t, 10, pub.DeckSize)
	assert.Nil(t, pub.TopDiscard)
	require.Len(t, pub.Players, 2)
	assert.Equal(t, "Alice", pub.Players[0].Name)

	priv, err := b.Private("p1")
	require.NoError(t, err)
	assert.Len(t, priv.Hand, 3)

	require.NoError(t, b.SetConnected("p1", false))
	assert.False(t, b.Public(m).Players[0].Connected)
}

func TestNewRejectsBadSeats(t *testing.T) {
	c, err := card.Parse([]byte(testCatalog))
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(1, 1))

	_, err = New(nil, c, rng, DefaultSettings())
	assert.Error(t, err)
	_, err = New([]Seat{{"p1", "A"}, {"p1", "B"}}, c, rng, DefaultSettings())
	assert.Error(t, err)
}
