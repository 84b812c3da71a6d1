package card

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

//go:embed data/loot.json
var defaultLoot []byte

// templateDef is the on-disk shape of a template.
type templateDef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CardType    string `json:"card_type"`
	Subtype     string `json:"subtype"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Effect      Effect `json:"effect"`
}

// Catalog is the read-only table of card templates. It is built once at
// startup and shared by every session without synchronization.
type Catalog struct {
	templates map[string]*Template
	order     []string
}

// Parse builds a catalog from a JSON array of templates.
func Parse(data []byte) (*Catalog, error) {
	var defs []templateDef
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode card catalog: %w", err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("card catalog is empty")
	}

	c := &Catalog{templates: make(map[string]*Template, len(defs))}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("card %d has no id", i)
		}
		if d.Name == "" {
			return nil, fmt.Errorf("card %s has no name", d.ID)
		}
		if d.Count < 1 {
			return nil, fmt.Errorf("card %s has invalid count %d", d.ID, d.Count)
		}
		if _, dup := c.templates[d.ID]; dup {
			return nil, fmt.Errorf("duplicate card id: %s", d.ID)
		}
		c.templates[d.ID] = &Template{
			id:          d.ID,
			name:        d.Name,
			cardType:    d.CardType,
			subtype:     d.Subtype,
			description: d.Description,
			count:       d.Count,
			effect:      d.Effect,
		}
		c.order = append(c.order, d.ID)
	}
	sort.Strings(c.order)
	return c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read card catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultLoot)
}

func (c *Catalog) Get(id string) (*Template, error) {
	if t, ok := c.templates[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("card not found: %s", id)
}

// Templates returns the templates ordered by id.
func (c *Catalog) Templates() []*Template {
	out := make([]*Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.templates[id])
	}
	return out
}

func (c *Catalog) Size() int { return len(c.order) }

// DeckSize is the number of physical cards a full loot deck holds.
func (c *Catalog) DeckSize() int {
	n := 0
	for _, t := range c.templates {
		n += t.count
	}
	return n
}

// NewLootDeck creates one instance per copy of every template, in catalog
// order. Callers shuffle it.
func (c *Catalog) NewLootDeck() []*Instance {
	out := make([]*Instance, 0, c.DeckSize())
	for _, id := range c.order {
		t := c.templates[id]
		for i := 0; i < t.count; i++ {
			out = append(out, NewInstance(t))
		}
	}
	return out
}
