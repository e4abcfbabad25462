package pmtiles_test

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/ozhernov/pmtiles/pmtiles"
	"github.com/ozhernov/pmtiles/pmtiles/backend"
	"github.com/ozhernov/pmtiles/pmtiles/cache"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/ozhernov/pmtiles/tile"
)

func syntheticTiles(maxZoom uint32, tilesPerZoom int) map[tile.ID][]byte {
	tiles := make(map[tile.ID][]byte)
	for z := range maxZoom + 1 {
		n := uint32(1) << z
		for i := range tilesPerZoom {
			x := uint32(i*7) % n
			y := uint32(i*13) % n
			id := tile.ID{Z: z, X: x, Y: y}
			// every third tile shares content with the first, to exercise dedup
			if i%3 == 0 {
				tiles[id] = []byte("shared-payload")
			} else {
				tiles[id] = fmt.Appendf(nil, "tile-%d-%d-%d", z, x, y)
			}
		}
	}
	return tiles
}

func writeArchive(t *testing.T, filePath string, tiles map[tile.ID][]byte, opts ...pmtiles.WriterOption) {
	t.Helper()
	writer, err := pmtiles.NewWriter(filePath, opts...)
	require.NoError(t, err)
	defer writer.Close()

	ids := make([]tile.ID, 0, len(tiles))
	for id := range tiles {
		ids = append(ids, id)
	}
	codes := make(map[tile.ID]uint64, len(ids))
	for _, id := range ids {
		code, err := spec.EncodeTileID(id)
		require.NoError(t, err)
		codes[id] = code
	}
	slices.SortFunc(ids, func(a, b tile.ID) int {
		return cmp.Compare(codes[a], codes[b])
	})

	for _, id := range ids {
		require.NoError(t, writer.WriteTile(id, tiles[id]))
	}
	require.NoError(t, writer.Finalize())
}

func TestWriterReaderRoundTrip(t *testing.T) {
	tiles := syntheticTiles(5, 11)
	filePath := filepath.Join(t.TempDir(), "archive.pmtiles")
	writerMetadata := []byte(`{"name":"synthetic"}`)

	writeArchive(t, filePath, tiles,
		pmtiles.WithMetadata(writerMetadata),
		pmtiles.WithHeaderMetadata(pmtiles.HeaderMetadata{
			TileType:        spec.TileTypeMvt,
			TileCompression: spec.CompressionNone,
		}),
	)

	fileBackend, err := backend.NewFile(filePath)
	require.NoError(t, err)
	defer fileBackend.Close()

	reader, err := pmtiles.Open(context.Background(), fileBackend)
	require.NoError(t, err)
	defer reader.Close()

	gotMetadata, err := reader.ReadMetadata(context.Background())
	require.NoError(t, err)
	require.True(t, gocmp.Equal(gotMetadata, writerMetadata))

	require.NoError(t, reader.Verify(context.Background()))

	got := maps.Collect(reader.Tiles(context.Background()))
	require.True(t, gocmp.Equal(got, tiles))

	for id, want := range tiles {
		data, err := reader.ReadTile(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, data)
	}

	_, found, err := reader.ReadLocation(context.Background(), tile.ID{Z: 10, X: 0, Y: 0})
	require.NoError(t, err)
	require.False(t, found)
}

func TestWriterReaderLeafDirectorySplit(t *testing.T) {
	const zoom = 8
	n := uint32(1) << zoom
	tiles := make(map[tile.ID][]byte)
	for x := range n {
		for y := uint32(0); y < n; y += 4 {
			tiles[tile.ID{Z: zoom, X: x, Y: y}] = fmt.Appendf(nil, "t-%d-%d", x, y)
		}
	}

	// Uncompressed directories put the 16384-entry root past
	// RootDirMaxLength, so the writer has to split it into leaves.
	filePath := filepath.Join(t.TempDir(), "large.pmtiles")
	writeArchive(t, filePath, tiles, pmtiles.WithHeaderMetadata(pmtiles.HeaderMetadata{
		TileCompression: spec.CompressionNone,
	}), pmtiles.WithInternalCompression(spec.CompressionNone))

	fileBackend, err := backend.NewFile(filePath)
	require.NoError(t, err)
	defer fileBackend.Close()

	singleFlight := cache.NewSingleFlightCache()
	reader, err := pmtiles.Open(context.Background(), fileBackend,
		pmtiles.WithDirectoryCache(singleFlight),
		pmtiles.WithArchiveID(filePath),
	)
	require.NoError(t, err)
	defer reader.Close()

	require.NoError(t, reader.Verify(context.Background()))

	count := 0
	require.NoError(t, reader.VisitTileLocations(context.Background(), func(tile.ID, pmtiles.Location) error {
		count++
		return nil
	}))
	require.Equal(t, len(tiles), count)

	sample := tile.ID{Z: zoom, X: 3, Y: 0}
	data, err := reader.ReadTile(context.Background(), sample)
	require.NoError(t, err)
	require.Equal(t, tiles[sample], data)
}

func TestWriterRejectsUnorderedTiles(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "unordered.pmtiles")
	writer, err := pmtiles.NewWriter(filePath)
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.WriteTile(tile.ID{Z: 4, X: 3, Y: 3}, []byte("a")))
	err = writer.WriteTile(tile.ID{Z: 2, X: 0, Y: 0}, []byte("b"))
	require.ErrorIs(t, err, spec.ErrUnorderedTile)
}

func TestWriterDerivesBoundsWhenNotSupplied(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "bounds.pmtiles")
	tiles := map[tile.ID][]byte{
		{Z: 2, X: 0, Y: 0}: []byte("a"),
		{Z: 2, X: 3, Y: 3}: []byte("b"),
	}
	writeArchive(t, filePath, tiles)

	fileBackend, err := backend.NewFile(filePath)
	require.NoError(t, err)
	defer fileBackend.Close()

	reader, err := pmtiles.Open(context.Background(), fileBackend)
	require.NoError(t, err)
	defer reader.Close()

	meta := reader.HeaderMetadata()
	require.EqualValues(t, 2, meta.MinZoom)
	require.EqualValues(t, 2, meta.MaxZoom)
	require.Less(t, meta.MinLonE7, meta.MaxLonE7)
	require.Less(t, meta.MinLatE7, meta.MaxLatE7)
}

func TestReaderRawModeSkipsDecompression(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "raw.pmtiles")
	tiles := map[tile.ID][]byte{
		{Z: 1, X: 0, Y: 0}: []byte("payload"),
	}
	writeArchive(t, filePath, tiles, pmtiles.WithHeaderMetadata(pmtiles.HeaderMetadata{
		TileCompression: spec.CompressionGzip,
	}))

	fileBackend, err := backend.NewFile(filePath)
	require.NoError(t, err)
	defer fileBackend.Close()

	reader, err := pmtiles.Open(context.Background(), fileBackend, pmtiles.RawTiles())
	require.NoError(t, err)
	defer reader.Close()

	// WriteTile never compresses payloads itself; with TileCompression
	// declared as gzip but raw bytes stored, RawTiles() must return them
	// untouched rather than attempt to gunzip plain text.
	data, err := reader.ReadTile(context.Background(), tile.ID{Z: 1, X: 0, Y: 0})
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}
