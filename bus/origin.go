package bus

import "fmt"

// Origin is the routing metadata attached to a record as it travels through
// the bus. It is either fresh (not yet bound to a chain lineage, as when a
// monitor emits) or bound to the specific (chain, card position) the record
// is currently traversing. Origin is metadata, never a record field, and is
// re-derived per delivery edge rather than shared between branches.
type Origin struct {
	Chain string
	Card  int
	bound bool
}

// Fresh returns an origin not bound to any chain lineage. The delivery
// engine broadcasts fresh emissions to every occurrence of the source
// entity.
func Fresh() Origin {
	return Origin{}
}

// Bound returns an origin bound to a (chain, card position).
func Bound(chain string, card int) Origin {
	return Origin{Chain: chain, Card: card, bound: true}
}

// IsFresh reports whether the origin is not bound to a chain.
func (o Origin) IsFresh() bool {
	return !o.bound
}

// String renders the origin for logs.
func (o Origin) String() string {
	if o.IsFresh() {
		return "fresh"
	}
	return fmt.Sprintf("%s[%d]", o.Chain, o.Card)
}
