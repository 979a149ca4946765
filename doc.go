// Package avtdl provides a chain-based record routing engine: monitors
// produce records, filters transform them, actions consume them, and named
// chains of cards decide which entity sees what.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           Scheduler                 │  One poll loop per monitor,
//	│      (timers, rate limit)           │  backoff on failures
//	└─────────────────────────────────────┘
//	           ↓ fresh emissions
//	┌─────────────────────────────────────┐
//	│              Bus                    │  Origin-tracked delivery,
//	│  (occurrence index, wave fan-out)   │  history, cycle guard
//	└─────────────────────────────────────┘
//	           ↓ deliveries
//	┌─────────────────────────────────────┐
//	│            Entities                 │  monitor / filter / action
//	│     (plugin factories, flags)       │  instances from config
//	└─────────────────────────────────────┘
//
// A record emitted by a monitor enters every chain the monitor occurs in
// and flows card to card. A record emitted mid-chain stays confined to the
// chain position it was produced at, unless the producing entity carries
// the reset_origin flag, which re-broadcasts its output as if fresh.
//
// Entities are instantiated from a YAML configuration document that names
// actors (plugin types), their entity instances, and the chains wiring
// them together. The configuration can be rebuilt and atomically swapped
// into the running bus; in-flight deliveries finish against the generation
// they started on.
//
// The engine is synchronous per wave: a monitor's emission returns only
// after the complete downstream fan-out has finished. Sibling entities on
// one card run concurrently; a single entity instance never processes two
// records at once.
//
// Package layout:
//
//   - record: the Record interface and builtin record types
//   - entity: entity instances, flags, and the factory registry
//   - chain: chain graph, validation, and the occurrence index
//   - bus: the delivery engine
//   - config: YAML loading, schema validation, and generation building
//   - scheduler: monitor poll loops
//   - history, tasks, metric: observability state
//   - server: the HTTP API surface
//   - monitor/..., filter/..., action/...: builtin plugins
package avtdl
