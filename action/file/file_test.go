package file

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
)

func TestAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.txt")
	config, err := json.Marshal(Config{Path: path})
	require.NoError(t, err)

	a, err := New(config, entity.Dependencies{})
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	out, err := a.Handle(context.Background(), record.NewText("first"))
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = a.Handle(context.Background(), record.NewText("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestWritesJSONForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	a, err := New(json.RawMessage(`{"path": "`+path+`", "as_json": true}`), entity.Dependencies{})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	_, err = a.Handle(context.Background(), record.NewText("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text": "hello"}`, string(data))
}

func TestConfigRequiresPath(t *testing.T) {
	_, err := New(nil, entity.Dependencies{})
	require.Error(t, err)
}

func TestCloseWithoutWrites(t *testing.T) {
	a, err := New(json.RawMessage(`{"path": "unused.txt"}`), entity.Dependencies{})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}
