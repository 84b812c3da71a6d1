package card

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 9, c.Size())
	assert.Equal(t, 36, c.DeckSize())

	penny, err := c.Get("penny")
	require.NoError(t, err)
	assert.Equal(t, "A Penny", penny.Name())
	assert.Equal(t, 1, penny.Effect().Coins)

	_, err = c.Get("nope")
	assert.EqualError(t, err, "card not found: nope")
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"empty", `[]`},
		{"missing id", `[{"name":"x","count":1}]`},
		{"missing name", `[{"id":"x","count":1}]`},
		{"zero count", `[{"id":"x","name":"X","count":0}]`},
		{"duplicate", `[{"id":"x","name":"X","count":1},{"id":"x","name":"Y","count":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestNewLootDeckCreatesDistinctInstances(t *testing.T) {
	c, err := Parse([]byte(`[{"id":"b","name":"B","count":2},{"id":"a","name":"A","count":1}]`))
	require.NoError(t, err)

	deck := c.NewLootDeck()
	require.Len(t, deck, 3)
	assert.Equal(t, "a", deck[0].Template().ID())
	assert.Equal(t, "b", deck[1].Template().ID())

	seen := map[string]bool{}
	for _, inst := range deck {
		assert.False(t, seen[inst.ID()], "duplicate instance id %s", inst.ID())
		seen[inst.ID()] = true
	}
	assert.Same(t, deck[1].Template(), deck[2].Template())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loot.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","name":"A","count":4}]`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.DeckSize())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
