// Package bus implements the routing bus: the delivery engine that decides,
// for every record an entity emits, exactly which downstream entities receive
// it. Routing is driven by the chain graph's occurrence index plus per-record
// origin metadata; the same entity instance may be referenced from several
// unrelated chains without records leaking between them.
//
// Delivery is a synchronous call chain from the producing emission: Emit
// returns only after the complete downstream fan-out of the record has
// finished (or failed into error events). Sibling branches within a card are
// dispatched concurrently; a given entity instance still processes its
// inbound records one at a time.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/15532th/avtdl/chain"
	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/history"
	"github.com/15532th/avtdl/metric"
	"github.com/15532th/avtdl/record"
	"github.com/15532th/avtdl/tasks"
)

// Drop reasons used in metrics and debug logs.
const (
	dropChainEnd = "chain_end" // record reached the last card of its chain
	dropCycle    = "cycle"     // per-wave visited guard hit
	dropStale    = "stale"     // origin points into a graph replaced by reload
	dropMonitor  = "monitor"   // a chain routed a record into a monitor card
)

// Observer receives every delivery the engine performs, for live streaming
// surfaces. Observers must not block.
type Observer func(target, source, chainName string, rec record.Record)

// generation is one configuration generation: the occurrence index and the
// entity set built from one validated graph. Swapped atomically on reload;
// in-flight waves drain against the generation they started on.
type generation struct {
	number   uint64
	index    *chain.Index
	registry *entity.Registry
}

// Bus is the delivery engine. Construct with New, swap configurations with
// Reload, feed records with Emit.
type Bus struct {
	logger  *slog.Logger
	metrics *metric.Registry
	history *history.Store
	tasks   *tasks.Registry

	gen atomic.Pointer[generation]

	observerMu sync.RWMutex
	observers  []Observer
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithHistory sets the history store.
func WithHistory(h *history.Store) Option {
	return func(b *Bus) {
		b.history = h
	}
}

// WithTasks sets the task registry.
func WithTasks(t *tasks.Registry) Option {
	return func(b *Bus) {
		b.tasks = t
	}
}

// New creates a bus over the given occurrence index and entity set.
func New(index *chain.Index, registry *entity.Registry, opts ...Option) *Bus {
	b := &Bus{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "bus")
	}
	if b.metrics == nil {
		b.metrics = metric.NewRegistry()
	}
	if b.history == nil {
		b.history = history.NewStore(history.DefaultCapacity)
	}
	if b.tasks == nil {
		b.tasks = tasks.NewRegistry()
	}

	b.gen.Store(&generation{number: 1, index: index, registry: registry})
	b.metrics.Metrics.GenerationInfo.Set(1)
	return b
}

// History returns the bus's history store.
func (b *Bus) History() *history.Store {
	return b.history
}

// Tasks returns the bus's task registry.
func (b *Bus) Tasks() *tasks.Registry {
	return b.tasks
}

// Metrics returns the bus's metrics registry.
func (b *Bus) Metrics() *metric.Registry {
	return b.metrics
}

// Generation returns the current configuration generation number.
func (b *Bus) Generation() uint64 {
	return b.gen.Load().number
}

// Registry returns the current generation's entity registry.
func (b *Bus) Registry() *entity.Registry {
	return b.gen.Load().registry
}

// Graph returns the current generation's chain graph.
func (b *Bus) Graph() *chain.Graph {
	return b.gen.Load().index.Graph()
}

// AddObserver registers a delivery observer.
func (b *Bus) AddObserver(obs Observer) {
	b.observerMu.Lock()
	b.observers = append(b.observers, obs)
	b.observerMu.Unlock()
}

// Reload atomically swaps in a new occurrence index and entity set. In-flight
// emission waves drain against the generation they started on; new emissions
// route through the new graph. Task registry entries of the old generation
// are orphaned and dropped; history buffers of entities that still exist are
// kept untouched.
func (b *Bus) Reload(index *chain.Index, registry *entity.Registry) uint64 {
	old := b.gen.Load()
	next := &generation{number: old.number + 1, index: index, registry: registry}
	b.gen.Store(next)

	b.tasks.Clear()
	b.history.Retain(func(ref string) bool {
		actor, name, ok := strings.Cut(ref, "/")
		if !ok {
			return false
		}
		_, exists := registry.Lookup(actor, name)
		return exists
	})

	b.metrics.Metrics.GenerationInfo.Set(float64(next.number))
	b.metrics.Metrics.ReloadsTotal.WithLabelValues("success").Inc()
	b.logger.Info("configuration reloaded", "generation", next.number)
	return next.number
}

// wave tracks one emission wave: the generation it routes against and the set
// of (chain, card, target, record) deliveries already performed, so that a
// misconfigured cycle drops on revisit instead of recursing forever.
type wave struct {
	gen     *generation
	mu      sync.Mutex
	visited map[visitKey]struct{}
}

type visitKey struct {
	chain  string
	card   int
	target string
	hash   string
}

func newWave(gen *generation) *wave {
	return &wave{gen: gen, visited: make(map[visitKey]struct{})}
}

// visit marks a delivery edge and reports whether it was seen before.
func (w *wave) visit(chainName string, card int, target, hash string) bool {
	key := visitKey{chain: chainName, card: card, target: target, hash: hash}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, seen := w.visited[key]; seen {
		return false
	}
	w.visited[key] = struct{}{}
	return true
}

// Emit pushes a record emitted by source into the bus and blocks until its
// complete downstream fan-out has finished. The origin is fresh for monitor
// emissions; entities invoked by the bus re-emit with the bound origin the
// bus handed them.
func (b *Bus) Emit(ctx context.Context, source *entity.Entity, rec record.Record, origin Origin) {
	gen := b.gen.Load()
	w := newWave(gen)

	core := b.metrics.Metrics
	core.ActiveWaves.Inc()
	start := time.Now()
	defer func() {
		core.ActiveWaves.Dec()
		core.WaveDuration.Observe(time.Since(start).Seconds())
	}()

	b.emit(ctx, w, source, rec, origin)
}

// emit applies the origin resolution rules to one emission and delivers the
// record to the resolved next card(s).
func (b *Bus) emit(ctx context.Context, w *wave, source *entity.Entity, rec record.Record, origin Origin) {
	b.metrics.Metrics.EmissionsTotal.WithLabelValues(string(source.Category)).Inc()

	if source.Flags.ResetOrigin || origin.IsFresh() {
		// Fresh (or reset) emission: broadcast to the next card of every
		// chain referencing the source, regardless of which chain delivered
		// the triggering input.
		occs := w.gen.index.Occurrences(source.Actor, source.Name)
		if len(occs) == 0 {
			b.drop(dropStale, source, rec, origin)
			return
		}
		var g errgroup.Group
		for _, occ := range occs {
			occ := occ
			g.Go(func() error {
				b.deliverNext(ctx, w, source, rec, occ.Chain, occ.Card)
				return nil
			})
		}
		_ = g.Wait()
		return
	}

	// Bound origin: the single next card of the specific position the record
	// is traversing.
	b.deliverNext(ctx, w, source, rec, origin.Chain, origin.Card)
}

// deliverNext resolves the card after (chainName, cardIdx) and delivers the
// record to every entity it lists. Siblings receive the same value and run
// concurrently with respect to each other.
func (b *Bus) deliverNext(ctx context.Context, w *wave, source *entity.Entity, rec record.Record, chainName string, cardIdx int) {
	next := w.gen.index.NextCard(chainName, cardIdx)
	if next == nil {
		// End of chain, or a chain dropped by reload. Not an error.
		b.drop(dropChainEnd, source, rec, Bound(chainName, cardIdx))
		return
	}

	bound := Bound(chainName, cardIdx+1)
	var g errgroup.Group
	for _, name := range next.Entities {
		name := name
		g.Go(func() error {
			b.deliverTo(ctx, w, source, rec, next.Actor, name, bound)
			return nil
		})
	}
	_ = g.Wait()
}

// deliverTo invokes one target entity with the record and recursively emits
// the target's own outputs.
func (b *Bus) deliverTo(ctx context.Context, w *wave, source *entity.Entity, rec record.Record, actor, name string, origin Origin) {
	ref := actor + "/" + name
	if !w.visit(origin.Chain, origin.Card, ref, rec.Hash()) {
		b.drop(dropCycle, source, rec, origin)
		return
	}

	target, ok := w.gen.registry.Lookup(actor, name)
	if !ok {
		// The card references an entity the current wave's generation no
		// longer has. Terminate the branch silently.
		b.drop(dropStale, source, rec, origin)
		return
	}

	b.history.RecordDelivery(actor, name, source.Ref(), origin.Chain, rec)
	b.notifyObservers(ref, source.Ref(), origin.Chain, rec)
	b.metrics.Metrics.DeliveriesTotal.WithLabelValues(string(target.Category), origin.Chain).Inc()

	switch target.Category {
	case entity.CategoryFilter:
		outs, err := b.process(ctx, target, rec)
		if err != nil {
			b.emitError(ctx, w, target, origin, err)
			return
		}
		for _, out := range outs {
			b.emit(ctx, w, target, out, origin)
		}

	case entity.CategoryAction:
		if rec.IsEvent() && target.Flags.EventPassthrough {
			// The action does not see inbound events; they continue past it.
			b.emit(ctx, w, target, rec, origin)
			return
		}

		outs, err := b.process(ctx, target, rec)
		if err != nil {
			b.emitError(ctx, w, target, origin, err)
		} else {
			// Events the action emits on its own behalf.
			for _, out := range outs {
				b.emit(ctx, w, target, out, origin)
			}
		}
		if !target.Flags.ConsumeRecord {
			b.emit(ctx, w, target, rec, origin)
		}

	default:
		// Monitors produce records on their own schedule; they are not
		// delivery targets.
		b.logger.Warn("record routed into a monitor card",
			"target", ref, "origin", origin.String())
		b.drop(dropMonitor, source, rec, origin)
	}
}

// process invokes the target's processing operation, converting panics into
// errors so one misbehaving plugin cannot abort sibling deliveries.
func (b *Bus) process(ctx context.Context, target *entity.Entity, rec record.Record) (outs []record.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", target.Ref(), r, debug.Stack())
		}
	}()
	return target.Process(ctx, rec)
}

// emitError converts a processing failure into an error Event attributed to
// the failing entity and re-enters it as a normal emission from that entity,
// subject to the same origin rules.
func (b *Bus) emitError(ctx context.Context, w *wave, failed *entity.Entity, origin Origin, err error) {
	b.metrics.Metrics.EntityErrorsTotal.WithLabelValues(failed.Actor).Inc()
	b.logger.Error("entity processing failed",
		"entity", failed.Ref(), "origin", origin.String(), "error", err)

	ev := record.Errorf("%s: %v", failed.Ref(), err)
	b.emit(ctx, w, failed, ev, origin)
}

// drop terminates a delivery branch silently, counting the reason.
func (b *Bus) drop(reason string, source *entity.Entity, rec record.Record, origin Origin) {
	b.metrics.Metrics.DroppedTotal.WithLabelValues(reason).Inc()
	b.logger.Debug("record dropped",
		"reason", reason, "source", source.Ref(), "origin", origin.String(), "record", rec.TypeName())
}

func (b *Bus) notifyObservers(target, source, chainName string, rec record.Record) {
	b.observerMu.RLock()
	observers := b.observers
	b.observerMu.RUnlock()

	for _, obs := range observers {
		obs(target, source, chainName, rec)
	}
}
