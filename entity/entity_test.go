package entity

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/errors"
	"github.com/15532th/avtdl/record"
)

type stubPoller struct{ out []record.Record }

func (p stubPoller) Poll(context.Context) ([]record.Record, error) { return p.out, nil }

type stubTransformer struct{}

func (stubTransformer) Process(_ context.Context, r record.Record) ([]record.Record, error) {
	return []record.Record{r}, nil
}

type stubSink struct{ handled int }

func (s *stubSink) Handle(context.Context, record.Record) ([]record.Record, error) {
	s.handled++
	return nil, nil
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryMonitor.Valid())
	assert.True(t, CategoryFilter.Valid())
	assert.True(t, CategoryAction.Valid())
	assert.False(t, Category("storage").Valid())
	assert.False(t, Category("").Valid())
}

func TestEntityDispatch(t *testing.T) {
	rec := record.NewText("x")

	mon := NewMonitor("monitor.test", "m", Flags{}, stubPoller{out: []record.Record{rec}})
	out, err := mon.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []record.Record{rec}, out)

	// Poll on a non-monitor is a programming error.
	fil := NewFilter("filter.test", "f", Flags{}, stubTransformer{})
	_, err = fil.Poll(context.Background())
	assert.ErrorIs(t, err, errors.ErrWrongCategory)

	out, err = fil.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{rec}, out)

	sink := &stubSink{}
	act := NewAction("action.test", "a", Flags{}, sink)
	_, err = act.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.handled)

	// Process on a monitor is likewise rejected.
	_, err = mon.Process(context.Background(), rec)
	assert.ErrorIs(t, err, errors.ErrWrongCategory)
}

func TestEntityRef(t *testing.T) {
	e := NewFilter("filter.match", "keywords", Flags{}, stubTransformer{})
	assert.Equal(t, "filter.match/keywords", e.Ref())
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	e := NewFilter("filter.test", "f1", Flags{}, stubTransformer{})
	require.NoError(t, r.Register(e))

	got, ok := r.Lookup("filter.test", "f1")
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = r.Lookup("filter.test", "missing")
	assert.False(t, ok)

	// Entity names are unique within their actor.
	dup := NewFilter("filter.test", "f1", Flags{}, stubTransformer{})
	err := r.Register(dup)
	assert.ErrorIs(t, err, errors.ErrDuplicateEntity)

	// The same name under another actor is fine.
	other := NewAction("action.test", "f1", Flags{}, &stubSink{})
	assert.NoError(t, r.Register(other))
	assert.Len(t, r.Entities(), 2)
}

func TestRegistryFactories(t *testing.T) {
	r := NewRegistry()

	factory := func(name string, flags Flags, _ json.RawMessage, _ Dependencies) (*Entity, error) {
		return NewFilter("filter.test", name, flags, stubTransformer{}), nil
	}
	require.NoError(t, r.RegisterFactory(&Registration{
		Name:     "filter.test",
		Category: CategoryFilter,
		Factory:  factory,
	}))

	// Duplicate factory names are rejected.
	err := r.RegisterFactory(&Registration{Name: "filter.test", Category: CategoryFilter, Factory: factory})
	assert.Error(t, err)

	// Unknown category is rejected.
	err = r.RegisterFactory(&Registration{Name: "bad", Category: "storage", Factory: factory})
	assert.Error(t, err)

	reg, ok := r.LookupFactory("filter.test")
	require.True(t, ok)
	assert.Equal(t, CategoryFilter, reg.Category)

	e, err := r.Create("filter.test", "f1", Flags{ResetOrigin: true}, nil, Dependencies{})
	require.NoError(t, err)
	assert.True(t, e.Flags.ResetOrigin)

	_, ok = r.Lookup("filter.test", "f1")
	assert.True(t, ok)

	// Creating through an unregistered actor fails.
	_, err = r.Create("filter.unknown", "x", Flags{}, nil, Dependencies{})
	assert.ErrorIs(t, err, errors.ErrActorNotFound)
}

func TestRegistryCategoryMismatch(t *testing.T) {
	r := NewRegistry()

	// Factory registered as filter but producing an action.
	factory := func(name string, flags Flags, _ json.RawMessage, _ Dependencies) (*Entity, error) {
		return NewAction("filter.test", name, flags, &stubSink{}), nil
	}
	require.NoError(t, r.RegisterFactory(&Registration{
		Name:     "filter.test",
		Category: CategoryFilter,
		Factory:  factory,
	}))

	_, err := r.Create("filter.test", "f1", Flags{}, nil, Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestRegistryClone(t *testing.T) {
	r := NewRegistry()
	factory := func(name string, flags Flags, _ json.RawMessage, _ Dependencies) (*Entity, error) {
		return NewFilter("filter.test", name, flags, stubTransformer{}), nil
	}
	require.NoError(t, r.RegisterFactory(&Registration{Name: "filter.test", Category: CategoryFilter, Factory: factory}))

	_, err := r.Create("filter.test", "f1", Flags{}, nil, Dependencies{})
	require.NoError(t, err)

	next := r.Clone()

	// Factories carry over, instances do not.
	_, ok := next.LookupFactory("filter.test")
	assert.True(t, ok)
	assert.Empty(t, next.Entities())
	assert.Len(t, r.Entities(), 1)
}
