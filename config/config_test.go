package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/errors"
)

const sampleConfig = `
settings:
  host: 127.0.0.1
  port: 8080
  log_level: debug
  history_size: 100
  poll_interval: 2m

actors:
  monitor.static:
    defaults:
      once: true
    entities:
      - name: producer1
        records: ["record1"]
      - name: producer2
        poll_interval: 30s
        records: ["record2"]
  filter.match:
    entities:
      - name: formatter
        keywords: ["record"]
  action.file:
    entities:
      - name: consumer1
        consume_record: false
        path: out.txt
      - name: consumer2
        reset_origin: true
        event_passthrough: true
        path: out2.txt

chains:
  chain1:
    - monitor.static: [producer1]
    - filter.match: [formatter]
    - action.file: [consumer1, consumer2]
  chain2:
    - filter.match: [formatter]
    - action.file: [consumer1]
`

func TestParseSettings(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", f.Settings.Host)
	assert.Equal(t, 8080, f.Settings.Port)
	assert.Equal(t, "debug", f.Settings.LogLevel)
	assert.Equal(t, 100, f.Settings.HistorySize)
	assert.Equal(t, 2*time.Minute, time.Duration(f.Settings.PollInterval))
}

func TestParseDefaultPollInterval(t *testing.T) {
	f, err := Parse([]byte("settings:\n  port: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, time.Duration(f.Settings.PollInterval))
}

func TestParseSplitsReservedKeys(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	actions := f.Actors["action.file"]
	require.Len(t, actions.Entities, 2)

	first := actions.Entities[0]
	assert.Equal(t, "consumer1", first.Name)
	require.NotNil(t, first.ConsumeRecord)
	assert.False(t, *first.ConsumeRecord)
	assert.False(t, first.ResetOrigin)
	// Reserved keys never leak into the plugin config.
	assert.Equal(t, map[string]any{"path": "out.txt"}, first.Raw)

	second := actions.Entities[1]
	assert.Nil(t, second.ConsumeRecord)
	assert.True(t, second.ResetOrigin)
	assert.True(t, second.EventPassthrough)

	monitors := f.Actors["monitor.static"]
	require.Len(t, monitors.Entities, 2)
	assert.Equal(t, 30*time.Second, monitors.Entities[1].PollInterval)
}

func TestParsePreservesChainOrder(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Len(t, f.Chains, 2)
	assert.Equal(t, "chain1", f.Chains[0].Name)
	assert.Equal(t, "chain2", f.Chains[1].Name)

	cards := f.Chains[0].Cards
	require.Len(t, cards, 3)
	assert.Equal(t, "monitor.static", cards[0].Actor)
	assert.Equal(t, []string{"producer1"}, cards[0].Entities)
	assert.Equal(t, []string{"consumer1", "consumer2"}, cards[2].Entities)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown settings type",
			doc:  "settings:\n  port: not-a-number\n",
		},
		{
			name: "invalid log level",
			doc:  "settings:\n  log_level: loud\n",
		},
		{
			name: "card with two actors",
			doc: `
actors:
  monitor.static:
    entities:
      - name: a
chains:
  broken:
    - monitor.static: [a]
      action.file: [b]
`,
		},
		{
			name: "chain as mapping instead of list",
			doc: `
chains:
  broken:
    monitor.static: [a]
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestParseRejectsInvalidDuration(t *testing.T) {
	_, err := Parse([]byte("settings:\n  poll_interval: fast\n"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMergeDefaults(t *testing.T) {
	raw, err := mergeDefaults(
		map[string]any{"once": true, "records": []any{"a"}},
		map[string]any{"records": []any{"b"}},
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"once": true, "records": ["b"]}`, string(raw))

	empty, err := mergeDefaults(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
