package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/15532th/avtdl/record"
)

func TestStoreRecordsAndQueries(t *testing.T) {
	s := NewStore(10)

	s.RecordDelivery("action.file", "consumer1", "monitor.static/producer1", "chain1", record.NewText("record1"))
	s.RecordDelivery("action.file", "consumer1", "monitor.static/producer1", "chain1", record.NewText("record2"))

	entries := s.Query("action.file", "consumer1", "")
	require.Len(t, entries, 2)
	assert.Equal(t, "record1", entries[0].Record.String())
	assert.Equal(t, "record2", entries[1].Record.String())
	assert.Equal(t, "chain1", entries[0].Chain)
	assert.Equal(t, "monitor.static/producer1", entries[0].Source)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestStoreChainFilter(t *testing.T) {
	s := NewStore(10)

	s.RecordDelivery("action.file", "consumer1", "src/a", "chain1", record.NewText("from chain1"))
	s.RecordDelivery("action.file", "consumer1", "src/b", "chain2", record.NewText("from chain2"))

	entries := s.Query("action.file", "consumer1", "chain2")
	require.Len(t, entries, 1)
	assert.Equal(t, "from chain2", entries[0].Record.String())

	assert.Len(t, s.Query("action.file", "consumer1", ""), 2)
	assert.Empty(t, s.Query("action.file", "consumer1", "chain3"))
}

func TestStoreEvictsOldestFirst(t *testing.T) {
	s := NewStore(3)

	for i := 1; i <= 5; i++ {
		s.RecordDelivery("a", "e", "src/s", "chain1", record.NewText(fmt.Sprintf("record%d", i)))
	}

	entries := s.Query("a", "e", "")
	require.Len(t, entries, 3)
	assert.Equal(t, "record3", entries[0].Record.String())
	assert.Equal(t, "record5", entries[2].Record.String())
}

func TestStoreUnknownEntityIsEmpty(t *testing.T) {
	s := NewStore(10)
	assert.Empty(t, s.Query("a", "nobody", ""))
}

func TestStoreRetain(t *testing.T) {
	s := NewStore(10)

	s.RecordDelivery("a", "kept", "src/s", "chain1", record.NewText("x"))
	s.RecordDelivery("a", "removed", "src/s", "chain1", record.NewText("y"))

	s.Retain(func(ref string) bool { return ref == "a/kept" })

	assert.Len(t, s.Query("a", "kept", ""), 1)
	assert.Empty(t, s.Query("a", "removed", ""))
	assert.Equal(t, []string{"a/kept"}, s.Entities())
}

func TestStoreDefaultCapacity(t *testing.T) {
	s := NewStore(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		s.RecordDelivery("a", "e", "src/s", "chain1", record.NewText("x"))
	}
	assert.Len(t, s.Query("a", "e", ""), DefaultCapacity)
}
