package turn

import (
	"math/rand/v2"
	"slices"
)

// Order is the fixed cyclic seating of a session. It never changes after
// construction.
type Order struct {
	ids []string
}

// NewOrder returns a uniform random permutation of players drawn from rng.
func NewOrder(players []string, rng *rand.Rand) Order {
	ids := slices.Clone(players)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	return Order{ids: ids}
}

// FixedOrder keeps players in the given order.
func FixedOrder(players []string) Order {
	return Order{ids: slices.Clone(players)}
}

func (o Order) Len() int { return len(o.ids) }

func (o Order) At(i int) string { return o.ids[i] }

// IDs returns a copy of the seating.
func (o Order) IDs() []string { return slices.Clone(o.ids) }

func (o Order) Contains(id string) bool {
	return slices.Contains(o.ids, id)
}
