package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/bus"
	"github.com/15532th/avtdl/chain"
	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/pkg/retry"
	"github.com/15532th/avtdl/record"
)

func retryConfigForTest() retry.Config {
	return retry.Config{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
	}
}

type pollFunc func(ctx context.Context) ([]record.Record, error)

func (f pollFunc) Poll(ctx context.Context) ([]record.Record, error) { return f(ctx) }

// recordingSink collects the text rendering of everything delivered to it.
type recordingSink struct {
	mu   sync.Mutex
	seen []string
}

func (s *recordingSink) Handle(_ context.Context, r record.Record) ([]record.Record, error) {
	s.mu.Lock()
	s.seen = append(s.seen, r.String())
	s.mu.Unlock()
	return nil, nil
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// testBus wires one monitor into one action through a single chain.
func testBus(t *testing.T, poll pollFunc) (*bus.Bus, *entity.Entity, *recordingSink) {
	t.Helper()

	mon := entity.NewMonitor("monitor.test", "src", entity.Flags{}, poll)
	sink := &recordingSink{}
	act := entity.NewAction("action.test", "dst", entity.Flags{ConsumeRecord: true}, sink)

	registry := entity.NewRegistry()
	require.NoError(t, registry.Register(mon))
	require.NoError(t, registry.Register(act))

	graph := &chain.Graph{Chains: []chain.Chain{
		{Name: "main", Cards: []chain.Card{
			{Actor: "monitor.test", Entities: []string{"src"}},
			{Actor: "action.test", Entities: []string{"dst"}},
		}},
	}}
	exists := func(actor, name string) bool {
		_, ok := registry.Lookup(actor, name)
		return ok
	}
	require.NoError(t, graph.Validate(exists))

	return bus.New(chain.NewIndex(graph), registry), mon, sink
}

func TestSchedulerEmitsPolledRecords(t *testing.T) {
	polls := 0
	b, mon, sink := testBus(t, func(context.Context) ([]record.Record, error) {
		polls++
		return []record.Record{record.NewText(fmt.Sprintf("poll %d", polls))}, nil
	})

	s := New(b)
	require.NoError(t, s.Start(context.Background(), []Spec{
		{Entity: mon, Interval: 5 * time.Millisecond},
	}))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	seen := sink.snapshot()
	assert.Equal(t, "poll 1", seen[0])
	assert.Equal(t, "poll 2", seen[1])
}

func TestPollErrorBecomesErrorEvent(t *testing.T) {
	b, mon, sink := testBus(t, func(context.Context) ([]record.Record, error) {
		return nil, fmt.Errorf("boom")
	})

	s := New(b)
	require.NoError(t, s.Start(context.Background(), []Spec{
		{Entity: mon, Interval: time.Hour},
	}))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	seen := sink.snapshot()
	assert.Contains(t, seen[0], record.EventError)
	assert.Contains(t, seen[0], "boom")
	assert.Contains(t, seen[0], "monitor.test/src")
}

func TestPollFailureBacksOff(t *testing.T) {
	var mu sync.Mutex
	polls := 0
	b, mon, _ := testBus(t, func(context.Context) ([]record.Record, error) {
		mu.Lock()
		polls++
		mu.Unlock()
		return nil, fmt.Errorf("down")
	})

	// With backoff floor far above the interval, only the immediate first
	// poll runs within the observation window.
	s := New(b, WithBackoff(retryConfigForTest()))
	require.NoError(t, s.Start(context.Background(), []Spec{
		{Entity: mon, Interval: time.Millisecond},
	}))
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, polls)
}

func TestStartTwiceFails(t *testing.T) {
	b, mon, _ := testBus(t, func(context.Context) ([]record.Record, error) {
		return nil, nil
	})

	s := New(b)
	specs := []Spec{{Entity: mon, Interval: time.Hour}}
	require.NoError(t, s.Start(context.Background(), specs))
	defer s.Stop()

	err := s.Start(context.Background(), specs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))
}

func TestStopIsIdempotent(t *testing.T) {
	b, mon, _ := testBus(t, func(context.Context) ([]record.Record, error) {
		return nil, nil
	})

	s := New(b)
	require.NoError(t, s.Start(context.Background(), []Spec{
		{Entity: mon, Interval: time.Hour},
	}))
	s.Stop()
	s.Stop() // no-op on a stopped scheduler
}
