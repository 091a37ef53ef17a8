package accountdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openSubUIDTable(t *testing.T, seed string) *SubIDTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subuid")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0644))

	tbl := NewSubUIDTable()
	tbl.SetName(path)
	require.NoError(t, tbl.LockNoWait())
	t.Cleanup(func() { tbl.Unlock() })
	require.NoError(t, tbl.Open(ReadWrite))
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestSubIDAppendAllowsDuplicateOwners(t *testing.T) {
	tbl := openSubUIDTable(t, "alice:100000:65536\n")

	require.NoError(t, tbl.Append(&SubIDEntry{Owner: "alice", Start: 165536, Count: 65536}))
	ranges := tbl.RangesFor("alice")
	require.Len(t, ranges, 2)
	require.Equal(t, int64(100000), ranges[0].Start)
	require.Equal(t, int64(165536), ranges[1].Start)
}

func TestSubIDAllocateSkipsPastExistingRanges(t *testing.T) {
	tbl := openSubUIDTable(t, "alice:100000:65536\nbob:165536:65536\n")

	rec, err := tbl.Allocate("carol", 100000, 65536)
	require.NoError(t, err)
	require.Equal(t, int64(231072), rec.Start)
	require.Equal(t, int64(65536), rec.Count)

	got := tbl.RangesFor("carol")
	require.Len(t, got, 1)
	require.Equal(t, rec.Start, got[0].Start)
}

func TestSubIDAllocateOnEmptyTableStartsAtMin(t *testing.T) {
	tbl := openSubUIDTable(t, "")

	rec, err := tbl.Allocate("alice", 100000, 65536)
	require.NoError(t, err)
	require.Equal(t, int64(100000), rec.Start)
}

func TestSubIDAppendOnNonDuplicateTableRejectsRepeatedKey(t *testing.T) {
	tbl := openSubUIDTable(t, "alice:100000:65536\n")
	tbl.AllowDuplicates = false

	err := tbl.Append(&SubIDEntry{Owner: "alice", Start: 200000, Count: 1000})
	require.Error(t, err)
}
