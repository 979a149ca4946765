package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/errors"
)

// allExist is a lookup accepting every reference, for structural-only tests.
func allExist(string, string) bool { return true }

func testGraph() *Graph {
	return &Graph{Chains: []Chain{
		{Name: "chain1", Cards: []Card{
			{Actor: "monitor.static", Entities: []string{"producer1"}},
			{Actor: "filter.match", Entities: []string{"formatter"}},
			{Actor: "action.file", Entities: []string{"consumer1", "consumer2"}},
		}},
		{Name: "chain2", Cards: []Card{
			{Actor: "filter.match", Entities: []string{"formatter"}},
			{Actor: "action.file", Entities: []string{"consumer3"}},
		}},
	}}
}

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name      string
		graph     Graph
		exists    func(string, string) bool
		wantError error
	}{
		{
			name:   "valid graph",
			graph:  *testGraph(),
			exists: allExist,
		},
		{
			name: "empty graph is valid",
			graph: Graph{},
		},
		{
			name: "chain with zero cards is inert but valid",
			graph: Graph{Chains: []Chain{{Name: "empty"}}},
		},
		{
			name: "duplicate chain name",
			graph: Graph{Chains: []Chain{
				{Name: "chain1"},
				{Name: "chain1"},
			}},
			wantError: errors.ErrDuplicateChain,
		},
		{
			name: "card without entities",
			graph: Graph{Chains: []Chain{
				{Name: "chain1", Cards: []Card{{Actor: "action.file"}}},
			}},
			wantError: errors.ErrEmptyCard,
		},
		{
			name: "dangling entity reference",
			graph: Graph{Chains: []Chain{
				{Name: "chain1", Cards: []Card{
					{Actor: "action.file", Entities: []string{"ghost"}},
				}},
			}},
			exists:    func(string, string) bool { return false },
			wantError: errors.ErrDanglingRef,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate(tt.exists)
			if tt.wantError == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantError)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestIndexOccurrences(t *testing.T) {
	ix := NewIndex(testGraph())

	// formatter is shared between both chains.
	occs := ix.Occurrences("filter.match", "formatter")
	require.Len(t, occs, 2)
	assert.Equal(t, Occurrence{Chain: "chain1", Card: 1}, occs[0])
	assert.Equal(t, Occurrence{Chain: "chain2", Card: 0}, occs[1])

	occs = ix.Occurrences("monitor.static", "producer1")
	require.Len(t, occs, 1)
	assert.Equal(t, Occurrence{Chain: "chain1", Card: 0}, occs[0])

	assert.Empty(t, ix.Occurrences("action.file", "unknown"))
}

func TestIndexNextCard(t *testing.T) {
	ix := NewIndex(testGraph())

	next := ix.NextCard("chain1", 0)
	require.NotNil(t, next)
	assert.Equal(t, "filter.match", next.Actor)

	next = ix.NextCard("chain1", 1)
	require.NotNil(t, next)
	assert.Equal(t, []string{"consumer1", "consumer2"}, next.Entities)

	// Last card, unknown chain and out-of-range positions terminate silently.
	assert.Nil(t, ix.NextCard("chain1", 2))
	assert.Nil(t, ix.NextCard("gone", 0))
	assert.Nil(t, ix.NextCard("chain1", -2))
}

func TestIndexCard(t *testing.T) {
	ix := NewIndex(testGraph())

	card := ix.Card("chain2", 0)
	require.NotNil(t, card)
	assert.Equal(t, "filter.match", card.Actor)

	assert.Nil(t, ix.Card("chain2", 5))
	assert.Nil(t, ix.Card("gone", 0))
}
