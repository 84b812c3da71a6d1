package deck

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souls/internal/game/card"
)

func testCards(t *testing.T) []*card.Instance {
	t.Helper()
	c, err := card.Parse([]byte(`[{"id":"a","name":"A","count":3},{"id":"b","name":"B","count":2}]`))
	require.NoError(t, err)
	return c.NewLootDeck()
}

func ids(cards []*card.Instance) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID()
	}
	return out
}

func TestShuffleIsDeterministicForSeed(t *testing.T) {
	cards := testCards(t)
	a := Pile(append([]*card.Instance(nil), cards...))
	b := Pile(append([]*card.Instance(nil), cards...))

	a.Shuffle(rand.New(rand.NewPCG(7, 1)))
	b.Shuffle(rand.New(rand.NewPCG(7, 1)))

	assert.Equal(t, ids(a), ids(b))
	assert.ElementsMatch(t, ids(cards), ids(a))
}

func TestDrawAndDiscardConserveCards(t *testing.T) {
	cards := testCards(t)
	d := New(cards, rand.New(rand.NewPCG(1, 1)))
	require.Equal(t, 5, d.Size())

	var hand []*card.Instance
	for i := 0; i < 5; i++ {
		c, err := d.Draw()
		require.NoError(t, err)
		hand = append(hand, c)
	}
	assert.Equal(t, 0, d.Size())
	assert.ElementsMatch(t, ids(cards), ids(hand))

	_, err := d.Draw()
	assert.ErrorIs(t, err, ErrEmpty)

	d.Discard(hand[0])
	d.Discard(hand[1])
	assert.Equal(t, 2, d.DiscardSize())
	assert.Same(t, hand[1], d.TopDiscard())

	c, err := d.Draw()
	require.NoError(t, err)
	assert.Contains(t, []string{hand[0].ID(), hand[1].ID()}, c.ID())
	assert.Equal(t, 1, d.Size())
	assert.Equal(t, 0, d.DiscardSize())
}

func TestPileRemove(t *testing.T) {
	cards := testCards(t)
	p := Pile(append([]*card.Instance(nil), cards...))

	got, err := p.Remove(cards[2].ID())
	require.NoError(t, err)
	assert.Same(t, cards[2], got)
	assert.False(t, p.Contains(cards[2].ID()))
	assert.Equal(t, 4, p.Size())

	_, err = p.Remove("missing")
	assert.Error(t, err)
}
