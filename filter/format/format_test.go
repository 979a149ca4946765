package format

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/record"
)

func TestRendersFields(t *testing.T) {
	f, err := New(json.RawMessage(`{"template": "[{{.event_type}}] {{.text}}"}`), entity.Dependencies{})
	require.NoError(t, err)

	out, err := f.Process(context.Background(), record.Errorf("it broke"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, record.TypeText, out[0].TypeName())
	assert.Equal(t, "[error] it broke", out[0].String())
}

func TestConfigRequiresTemplate(t *testing.T) {
	_, err := New(nil, entity.Dependencies{})
	require.Error(t, err)
}

func TestMalformedTemplateFailsAtBuild(t *testing.T) {
	_, err := New(json.RawMessage(`{"template": "{{.unclosed"}`), entity.Dependencies{})
	require.Error(t, err)
}
