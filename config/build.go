package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/15532th/avtdl/chain"
	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
)

// Runtime is one configuration generation ready to hand to the bus: the
// validated chain graph with its occurrence index, the instantiated entity
// set, and the per-monitor poll intervals for the scheduler.
type Runtime struct {
	Settings  Settings
	Graph     *chain.Graph
	Index     *chain.Index
	Registry  *entity.Registry
	Intervals map[string]time.Duration // keyed by entity ref, monitors only
}

// Build instantiates every declared entity through the factory registry and
// assembles the validated routing graph. All errors are attributed to their
// configuration path. The factory registry itself is not mutated; instances
// land on a clone, so a failed build leaves the previous generation intact.
func (f *File) Build(factories *entity.Registry, deps entity.Dependencies) (*Runtime, error) {
	instances := factories.Clone()
	intervals := make(map[string]time.Duration)

	// Deterministic instantiation order regardless of map iteration.
	actorNames := make([]string, 0, len(f.Actors))
	for name := range f.Actors {
		actorNames = append(actorNames, name)
	}
	sort.Strings(actorNames)

	for _, actor := range actorNames {
		reg, ok := factories.LookupFactory(actor)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrActorNotFound, "config", "Build",
				fmt.Sprintf("actors.%s", actor))
		}

		actorCfg := f.Actors[actor]
		for i, ec := range actorCfg.Entities {
			pos := fmt.Sprintf("actors.%s.entities[%d]", actor, i)
			if ec.Name == "" {
				return nil, errors.WrapInvalid(
					fmt.Errorf("entity has no name"), "config", "Build", pos)
			}

			flags, err := resolveFlags(reg.Category, ec)
			if err != nil {
				return nil, errors.WrapInvalid(err, "config", "Build", pos)
			}

			raw, err := mergeDefaults(actorCfg.Defaults, ec.Raw)
			if err != nil {
				return nil, errors.WrapInvalid(err, "config", "Build", pos)
			}

			ent, err := instances.Create(actor, ec.Name, flags, raw, deps)
			if err != nil {
				return nil, errors.WrapInvalid(err, "config", "Build", pos)
			}

			if reg.Category == entity.CategoryMonitor {
				interval := ec.PollInterval
				if interval == 0 {
					interval = time.Duration(f.Settings.PollInterval)
				}
				intervals[ent.Ref()] = interval
			}
		}
	}

	graph := &chain.Graph{Chains: make([]chain.Chain, 0, len(f.Chains))}
	for _, cc := range f.Chains {
		ch := chain.Chain{Name: cc.Name, Cards: make([]chain.Card, 0, len(cc.Cards))}
		for _, card := range cc.Cards {
			ch.Cards = append(ch.Cards, chain.Card{Actor: card.Actor, Entities: card.Entities})
		}
		graph.Chains = append(graph.Chains, ch)
	}

	exists := func(actor, name string) bool {
		_, ok := instances.Lookup(actor, name)
		return ok
	}
	if err := graph.Validate(exists); err != nil {
		return nil, err
	}

	return &Runtime{
		Settings:  f.Settings,
		Graph:     graph,
		Index:     chain.NewIndex(graph),
		Registry:  instances,
		Intervals: intervals,
	}, nil
}

// resolveFlags applies the category defaults and rejects flags on categories
// they don't apply to.
func resolveFlags(category entity.Category, ec EntityConfig) (entity.Flags, error) {
	flags := entity.Flags{ResetOrigin: ec.ResetOrigin}

	switch category {
	case entity.CategoryAction:
		flags.ConsumeRecord = true
		if ec.ConsumeRecord != nil {
			flags.ConsumeRecord = *ec.ConsumeRecord
		}
		flags.EventPassthrough = ec.EventPassthrough
	default:
		if ec.ConsumeRecord != nil {
			return entity.Flags{}, fmt.Errorf("consume_record is only valid for actions")
		}
		if ec.EventPassthrough {
			return entity.Flags{}, fmt.Errorf("event_passthrough is only valid for actions")
		}
	}

	if category != entity.CategoryMonitor && ec.PollInterval != 0 {
		return entity.Flags{}, fmt.Errorf("poll_interval is only valid for monitors")
	}
	return flags, nil
}
