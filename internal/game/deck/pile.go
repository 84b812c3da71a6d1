package deck

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"souls/internal/game/card"
)

var ErrEmpty = errors.New("pile is empty")

// Pile is an ordered sequence of cards. Index 0 is the top.
type Pile []*card.Instance

func (p *Pile) Size() int {
	if p == nil {
		return 0
	}
	return len(*p)
}

// Shuffle is a Fisher-Yates pass driven by r.
func (p *Pile) Shuffle(r *rand.Rand) {
	n := p.Size()
	for i := n - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		(*p)[i], (*p)[j] = (*p)[j], (*p)[i]
	}
}

func (p *Pile) DrawTop() (*card.Instance, error) {
	if p.Size() == 0 {
		return nil, ErrEmpty
	}
	top := (*p)[0]
	(*p)[0] = nil
	*p = (*p)[1:]
	return top, nil
}

func (p *Pile) Add(c *card.Instance) {
	*p = append(*p, c)
}

// Remove takes the card with the given instance id out of the pile.
func (p *Pile) Remove(id string) (*card.Instance, error) {
	for i, c := range *p {
		if c.ID() == id {
			*p = append((*p)[:i], (*p)[i+1:]...)
			return c, nil
		}
	}
	return nil, fmt.Errorf("card %s not found in pile", id)
}

func (p *Pile) Contains(id string) bool {
	for _, c := range *p {
		if c.ID() == id {
			return true
		}
	}
	return false
}

// TakeAll empties the pile and returns its former contents.
func (p *Pile) TakeAll() []*card.Instance {
	out := *p
	*p = nil
	return out
}

func (p *Pile) String() string {
	if p.Size() == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for i, c := range *p {
		fmt.Fprintf(&sb, "[%d]: %s\n", i, c)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
