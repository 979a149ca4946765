package match

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/record"
)

func newFilter(t *testing.T, config string) *Filter {
	t.Helper()
	f, err := New(json.RawMessage(config), entity.Dependencies{})
	require.NoError(t, err)
	return f
}

func TestKeywordMatch(t *testing.T) {
	tests := []struct {
		name   string
		config string
		text   string
		passes bool
	}{
		{
			name:   "keyword present",
			config: `{"keywords": ["stream"]}`,
			text:   "stream started",
			passes: true,
		},
		{
			name:   "keyword absent",
			config: `{"keywords": ["stream"]}`,
			text:   "nothing here",
			passes: false,
		},
		{
			name:   "case folding by default",
			config: `{"keywords": ["STREAM"]}`,
			text:   "stream started",
			passes: true,
		},
		{
			name:   "case sensitive match",
			config: `{"keywords": ["STREAM"], "case_sensitive": true}`,
			text:   "stream started",
			passes: false,
		},
		{
			name:   "exclusion wins over keyword",
			config: `{"keywords": ["stream"], "exclude": ["rerun"]}`,
			text:   "stream rerun",
			passes: false,
		},
		{
			name:   "exclusion only passes the rest",
			config: `{"exclude": ["rerun"]}`,
			text:   "stream started",
			passes: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFilter(t, tt.config)
			out, err := f.Process(context.Background(), record.NewText(tt.text))
			require.NoError(t, err)
			if tt.passes {
				require.Len(t, out, 1)
				assert.Equal(t, tt.text, out[0].String())
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestFieldMatch(t *testing.T) {
	f := newFilter(t, `{"field": "event_type", "keywords": ["error"]}`)

	out, err := f.Process(context.Background(), record.Errorf("it broke"))
	require.NoError(t, err)
	assert.Len(t, out, 1)

	// Records without the field never match.
	out, err = f.Process(context.Background(), record.NewText("error"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConfigRequiresRules(t *testing.T) {
	_, err := New(json.RawMessage(`{}`), entity.Dependencies{})
	require.Error(t, err)
}
