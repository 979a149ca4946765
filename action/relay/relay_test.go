package relay

import (
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/entity"
)

func TestConfigRequiresSubject(t *testing.T) {
	_, err := New(nil, entity.Dependencies{})
	require.Error(t, err)

	_, err = New(json.RawMessage(`{"url": "nats://example:4222"}`), entity.Dependencies{})
	require.Error(t, err)
}

func TestDefaultsToLocalURL(t *testing.T) {
	a, err := New(json.RawMessage(`{"subject": "records"}`), entity.Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, nats.DefaultURL, a.config.URL)
}

func TestCloseWithoutConnection(t *testing.T) {
	a, err := New(json.RawMessage(`{"subject": "records"}`), entity.Dependencies{})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestRegister(t *testing.T) {
	registry := entity.NewRegistry()
	require.NoError(t, Register(registry))

	ent, err := registry.Create(ActorName, "publisher", entity.Flags{ConsumeRecord: true},
		json.RawMessage(`{"subject": "records"}`), entity.Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryAction, ent.Category)
}
