package static

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/entity"
)

func TestPollEmitsConfiguredRecords(t *testing.T) {
	m, err := New(json.RawMessage(`{"records": ["one", "two"]}`), entity.Dependencies{})
	require.NoError(t, err)

	records, err := m.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "one", records[0].String())
	assert.Equal(t, "two", records[1].String())

	// Without once, every poll emits again.
	records, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestOnceLimitsToFirstPoll(t *testing.T) {
	m, err := New(json.RawMessage(`{"records": ["one"], "once": true}`), entity.Dependencies{})
	require.NoError(t, err)

	records, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = m.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConfigRequiresRecords(t *testing.T) {
	_, err := New(nil, entity.Dependencies{})
	require.Error(t, err)

	_, err = New(json.RawMessage(`{"records": []}`), entity.Dependencies{})
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := entity.NewRegistry()
	require.NoError(t, Register(registry))

	ent, err := registry.Create(ActorName, "producer", entity.Flags{},
		json.RawMessage(`{"records": ["one"]}`), entity.Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryMonitor, ent.Category)
	assert.Equal(t, ActorName+"/producer", ent.Ref())
}
