package card

import (
	"fmt"

	"github.com/google/uuid"
)

// Effect is the resource change a loot card applies when played.
// Real card rules live outside this package; these are the trivial ones.
type Effect struct {
	Coins int `json:"coins,omitempty"`
	Souls int `json:"souls,omitempty"`
	Heal  int `json:"heal,omitempty"`
}

// Template is an immutable card definition from the catalog.
type Template struct {
	id          string
	name        string
	cardType    string
	subtype     string
	description string
	count       int
	effect      Effect
}

func (t *Template) ID() string          { return t.id }
func (t *Template) Name() string        { return t.name }
func (t *Template) Type() string        { return t.cardType }
func (t *Template) Subtype() string     { return t.subtype }
func (t *Template) Description() string { return t.description }
func (t *Template) Count() int          { return t.count }
func (t *Template) Effect() Effect      { return t.effect }

func (t *Template) String() string {
	return fmt.Sprintf("%s (%s/%s)", t.name, t.cardType, t.subtype)
}

// Instance is one physical copy of a template inside a game.
// Two copies of the same template are distinct cards.
type Instance struct {
	id       string
	template *Template
}

func NewInstance(t *Template) *Instance {
	return &Instance{id: uuid.NewString(), template: t}
}

func (c *Instance) ID() string          { return c.id }
func (c *Instance) Template() *Template { return c.template }

func (c *Instance) String() string {
	return fmt.Sprintf("%s#%s", c.template.id, c.id)
}

// View is the full card detail sent in private board states.
type View struct {
	ID          string `json:"id"`
	TemplateID  string `json:"template_id"`
	Name        string `json:"name"`
	CardType    string `json:"card_type"`
	Subtype     string `json:"subtype"`
	Description string `json:"description"`
}

func (c *Instance) View() View {
	t := c.template
	return View{
		ID:          c.id,
		TemplateID:  t.id,
		Name:        t.name,
		CardType:    t.cardType,
		Subtype:     t.subtype,
		Description: t.description,
	}
}
