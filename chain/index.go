package chain

// Occurrence is one position of an entity in the graph.
type Occurrence struct {
	Chain string
	Card  int
}

// Index is the occurrence index derived from a Graph: for every entity, the
// set of (chain, card position) pairs where it appears, plus next-card
// resolution. Built once per configuration generation by scanning the graph;
// never mutated incrementally.
type Index struct {
	graph       *Graph
	chains      map[string]*Chain
	occurrences map[string][]Occurrence // keyed by "actor/entity"
}

// NewIndex builds the occurrence index for a graph. The graph is assumed to
// have passed Validate.
func NewIndex(g *Graph) *Index {
	ix := &Index{
		graph:       g,
		chains:      make(map[string]*Chain, len(g.Chains)),
		occurrences: make(map[string][]Occurrence),
	}
	for i := range g.Chains {
		ch := &g.Chains[i]
		ix.chains[ch.Name] = ch
		for cardIdx, card := range ch.Cards {
			for _, name := range card.Entities {
				key := card.Actor + "/" + name
				ix.occurrences[key] = append(ix.occurrences[key], Occurrence{Chain: ch.Name, Card: cardIdx})
			}
		}
	}
	return ix
}

// Graph returns the graph the index was built from.
func (ix *Index) Graph() *Graph {
	return ix.graph
}

// Occurrences returns every (chain, card position) where the entity appears,
// in graph declaration order. The returned slice must not be mutated.
func (ix *Index) Occurrences(actor, entity string) []Occurrence {
	return ix.occurrences[actor+"/"+entity]
}

// NextCard resolves the card following the given position in a chain. It
// returns nil when the chain is unknown (e.g. dropped by a reload) or the
// position is the chain's last card.
func (ix *Index) NextCard(chainName string, cardIdx int) *Card {
	ch, ok := ix.chains[chainName]
	if !ok {
		return nil
	}
	next := cardIdx + 1
	if next < 0 || next >= len(ch.Cards) {
		return nil
	}
	return &ch.Cards[next]
}

// Card returns the card at the given position, or nil.
func (ix *Index) Card(chainName string, cardIdx int) *Card {
	ch, ok := ix.chains[chainName]
	if !ok {
		return nil
	}
	if cardIdx < 0 || cardIdx >= len(ch.Cards) {
		return nil
	}
	return &ch.Cards[cardIdx]
}
