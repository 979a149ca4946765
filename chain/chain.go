// Package chain defines the declarative routing graph: named chains of
// cards, each card referencing one actor and one or more of its entities,
// plus the occurrence index the delivery engine resolves next hops against.
//
// The graph is built once per configuration generation from validated
// configuration and is read-only at run time; a reload builds a fresh graph
// and index and swaps them in as a unit.
package chain

import (
	"fmt"

	"github.com/15532th/avtdl/errors"
)

// Card is a fan-out point in a chain: one actor and one or more of its
// entities. All listed entities receive the same input records in parallel.
type Card struct {
	Actor    string   `json:"actor"`
	Entities []string `json:"entities"`
}

// String renders the card as "actor[e1, e2]".
func (c Card) String() string {
	return fmt.Sprintf("%s%v", c.Actor, c.Entities)
}

// Chain is a named, ordered sequence of cards describing one data-flow path.
// A chain with zero cards is inert.
type Chain struct {
	Name  string `json:"name"`
	Cards []Card `json:"cards"`
}

// Graph is the ordered list of chains of one configuration generation.
type Graph struct {
	Chains []Chain `json:"chains"`
}

// Validate checks structural invariants: unique chain names, cards listing at
// least one entity, and every referenced (actor, entity) resolving through
// the given lookup. Violations are attributed to their position in the graph.
func (g *Graph) Validate(exists func(actor, entity string) bool) error {
	seen := make(map[string]bool, len(g.Chains))
	for _, ch := range g.Chains {
		if ch.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("chain with empty name"), "Graph", "Validate", "chain name")
		}
		if seen[ch.Name] {
			return errors.WrapInvalid(errors.ErrDuplicateChain, "Graph", "Validate", ch.Name)
		}
		seen[ch.Name] = true

		for i, card := range ch.Cards {
			pos := fmt.Sprintf("chains.%s[%d]", ch.Name, i)
			if card.Actor == "" {
				return errors.WrapInvalid(
					fmt.Errorf("card has no actor"), "Graph", "Validate", pos)
			}
			if len(card.Entities) == 0 {
				return errors.WrapInvalid(errors.ErrEmptyCard, "Graph", "Validate", pos)
			}
			for _, name := range card.Entities {
				if exists != nil && !exists(card.Actor, name) {
					return errors.WrapInvalid(errors.ErrDanglingRef, "Graph", "Validate",
						fmt.Sprintf("%s: %s/%s", pos, card.Actor, name))
				}
			}
		}
	}
	return nil
}
