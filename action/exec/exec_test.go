package exec

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/entity"
	"github.com/15532th/avtdl/record"
	"github.com/15532th/avtdl/tasks"
)

func TestRunsCommandWithRenderedArgs(t *testing.T) {
	dir := t.TempDir()
	a, err := New("runner", json.RawMessage(`{
		"command": "touch",
		"args": ["{{.text}}"],
		"working_dir": "`+dir+`"
	}`), entity.Dependencies{})
	require.NoError(t, err)

	out, err := a.Handle(context.Background(), record.NewText("created-by-test"))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = os.Stat(filepath.Join(dir, "created-by-test"))
	assert.NoError(t, err)
}

func TestLifecycleEvents(t *testing.T) {
	a, err := New("runner", json.RawMessage(`{
		"command": "true",
		"report_started": true,
		"report_finished": true
	}`), entity.Dependencies{})
	require.NoError(t, err)

	out, err := a.Handle(context.Background(), record.NewText("x"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsEvent())
	assert.Contains(t, out[0].String(), record.EventStarted)
	assert.Contains(t, out[1].String(), record.EventFinished)
}

func TestCommandFailure(t *testing.T) {
	a, err := New("runner", json.RawMessage(`{"command": "false", "report_started": true}`), entity.Dependencies{})
	require.NoError(t, err)

	out, err := a.Handle(context.Background(), record.NewText("x"))
	require.Error(t, err)
	// The started Event was produced before the failure.
	assert.Len(t, out, 1)
}

func TestTracksTask(t *testing.T) {
	registry := tasks.NewRegistry()
	a, err := New("runner", json.RawMessage(`{"command": "true"}`), entity.Dependencies{Tasks: registry})
	require.NoError(t, err)

	_, err = a.Handle(context.Background(), record.NewText("x"))
	require.NoError(t, err)
	// The run finished, so the registry holds nothing afterwards.
	assert.Zero(t, registry.Len())
}

func TestConfigRequiresCommand(t *testing.T) {
	_, err := New("runner", nil, entity.Dependencies{})
	require.Error(t, err)
}

func TestMalformedArgTemplate(t *testing.T) {
	_, err := New("runner", json.RawMessage(`{"command": "true", "args": ["{{.broken"]}`), entity.Dependencies{})
	require.Error(t, err)
}
