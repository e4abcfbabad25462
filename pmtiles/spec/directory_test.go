package spec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/stretchr/testify/require"
)

func syntheticEntries(n int) []spec.Entry {
	entries := make([]spec.Entry, 0, n)
	offset := uint64(0)
	for i := range n {
		length := uint32(10 + i%7)
		runLength := uint32(1)
		if i%5 == 0 {
			runLength = uint32(1 + i%3)
		}
		entries = append(entries, spec.Entry{
			TileCode:  uint64(i*4 + 1),
			Offset:    offset,
			Length:    length,
			RunLength: runLength,
		})
		offset += uint64(length)
	}
	return entries
}

func TestDirectorySerializerRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 17, 500, 5000} {
		entries := syntheticEntries(n)

		deserialized, err := spec.DeserializeDirectory(spec.SerializeDirectory(entries))
		require.NoError(t, err)
		if diff := cmp.Diff(entries, deserialized); diff != "" {
			t.Errorf("n=%d: DeserializeDirectory(SerializeDirectory(input)) mismatch (-want+got):\n%v", n, diff)
		}
	}
}

func TestDirectorySerializerContiguousOffsets(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 1, Offset: 0, Length: 10, RunLength: 1},
		{TileCode: 2, Offset: 10, Length: 20, RunLength: 1},
		{TileCode: 3, Offset: 30, Length: 5, RunLength: 1},
	}
	deserialized, err := spec.DeserializeDirectory(spec.SerializeDirectory(entries))
	require.NoError(t, err)
	require.Equal(t, entries, deserialized)
}

func TestDirectoryTruncated(t *testing.T) {
	entries := syntheticEntries(10)
	data := spec.SerializeDirectory(entries)

	_, err := spec.DeserializeDirectory(data[:len(data)-1])
	require.ErrorIs(t, err, spec.ErrDirectoryTruncated)
}

func TestCompactEntriesCoalescesRuns(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 10, Offset: 0, Length: 4, RunLength: 1},
		{TileCode: 11, Offset: 0, Length: 4, RunLength: 1},
		{TileCode: 12, Offset: 0, Length: 4, RunLength: 1},
		{TileCode: 20, Offset: 100, Length: 4, RunLength: 1},
	}
	compacted := spec.CompactEntries(entries)
	require.Equal(t, []spec.Entry{
		{TileCode: 10, Offset: 0, Length: 4, RunLength: 3},
		{TileCode: 20, Offset: 100, Length: 4, RunLength: 1},
	}, compacted)
}

func TestFindEntry(t *testing.T) {
	entries := []spec.Entry{
		{TileCode: 0, Offset: 0, Length: 4, RunLength: 3},
		{TileCode: 10, Offset: 0, Length: 4, RunLength: 0}, // leaf pointer
		{TileCode: 20, Offset: 200, Length: 4, RunLength: 1},
	}

	e, ok := spec.FindEntry(entries, 2)
	require.True(t, ok)
	require.EqualValues(t, 0, e.TileCode)

	e, ok = spec.FindEntry(entries, 15)
	require.True(t, ok)
	require.EqualValues(t, 0, e.RunLength) // must descend into the leaf

	_, ok = spec.FindEntry(entries, 5000)
	require.False(t, ok)

	_, ok = spec.FindEntry(nil, 0)
	require.False(t, ok)
}

func TestSerializeAllSplitsLeaves(t *testing.T) {
	// syntheticEntries repeats a short pattern, so gzip would shrink the
	// whole directory below RootDirMaxLength; uncompressed it is ~80 KB.
	entries := syntheticEntries(20000)
	root, leaves, err := spec.SerializeAll(entries, spec.CompressionNone)
	require.NoError(t, err)
	require.LessOrEqual(t, len(root), spec.RootDirMaxLength)
	require.NotEmpty(t, leaves)

	rootData, err := spec.Decompress(root, spec.CompressionNone)
	require.NoError(t, err)
	rootEntries, err := spec.DeserializeDirectory(rootData)
	require.NoError(t, err)
	for _, e := range rootEntries {
		require.EqualValues(t, 0, e.RunLength, "root entries must be leaf pointers")
	}
}

func TestSerializeAllEmpty(t *testing.T) {
	root, leaves, err := spec.SerializeAll(nil, spec.CompressionNone)
	require.NoError(t, err)
	require.Empty(t, leaves)

	rootEntries, err := spec.DeserializeDirectory(root)
	require.NoError(t, err)
	require.Empty(t, rootEntries)
}
