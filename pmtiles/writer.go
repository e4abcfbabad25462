package pmtiles

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/spaolacci/murmur3"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/ozhernov/pmtiles/tile"
)

type writerConfig struct {
	metadata       []byte
	headerMetadata HeaderMetadata
	compression    spec.Compression
	logger         *slog.Logger
}

// WriterOption configures NewWriter.
type WriterOption func(*writerConfig)

// WithMetadata sets the archive's opaque metadata blob.
func WithMetadata(metadata []byte) WriterOption {
	return func(c *writerConfig) { c.metadata = metadata }
}

// WithHeaderMetadata sets the header fields the Writer does not derive on
// its own (tile type/compression). MinZoom/MaxZoom and the bounding box are
// recomputed from the tiles actually written unless overridden here with
// nonzero values that Finalize then leaves untouched. The center is derived
// along with the bounding box unless a nonzero center is given here.
func WithHeaderMetadata(metadata HeaderMetadata) WriterOption {
	return func(c *writerConfig) { c.headerMetadata = metadata }
}

// WithInternalCompression sets the compression used for the directory
// sections. Defaults to CompressionGzip, matching the reference archives.
func WithInternalCompression(compression spec.Compression) WriterOption {
	return func(c *writerConfig) { c.compression = compression }
}

// WithWriterLogger installs a logger for write-progress diagnostics.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.logger = logger }
}

// Writer builds a PMTiles v3 archive by streaming tiles in strictly
// ascending TileID order, then finalizing the directory and header. A
// Writer is not safe for concurrent use.
type Writer struct {
	logger *slog.Logger
	file   *os.File
	header spec.Header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries   []spec.Entry
	locations map[uint64]uint32 // content fingerprint -> entry index

	haveLastTile   bool
	lastTileCode   uint64
	explicitBounds bool

	minZoom, maxZoom     uint8
	minLon, minLat       int32
	maxLon, maxLat       int32
	haveAnyTile          bool
	contentsCount        uint64
}

var _ tile.Writer = (*Writer)(nil)

// NewWriter creates filePath and prepares it to receive tiles. The root
// directory window (16 KiB) and any metadata blob are staked out up front;
// tile data follows immediately after.
func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	config := writerConfig{
		compression: spec.CompressionGzip,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	header := spec.Header{}
	offset := uint64(spec.HeaderRootDirMaxLength)

	if _, err := file.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}

	if config.metadata != nil {
		if _, err := file.Write(config.metadata); err != nil {
			return nil, fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
		}
		header.MetadataOffset = offset
		header.MetadataLength = uint64(len(config.metadata))
		offset += header.MetadataLength
	}

	header.HeaderMagic = spec.HeaderMagicV3
	header.Clustered = true
	header.InternalCompression = config.compression
	header.TileDataOffset = offset
	config.headerMetadata.copyToHeader(&header)

	explicitBounds := header.MinLonE7 != 0 || header.MinLatE7 != 0 ||
		header.MaxLonE7 != 0 || header.MaxLatE7 != 0 ||
		header.MinZoom != 0 || header.MaxZoom != 0

	return &Writer{
		logger:         config.logger,
		file:           file,
		header:         header,
		tileWriter:     bufio.NewWriter(file),
		locations:      make(map[uint64]uint32),
		explicitBounds: explicitBounds,
		minZoom:        255,
		minLon:         math.MaxInt32,
		minLat:         math.MaxInt32,
		maxLon:         math.MinInt32,
		maxLat:         math.MinInt32,
	}, nil
}

// WriteTile appends a tile's payload exactly as given -- it must already
// match the archive's intended TileCompression (set via
// WithHeaderMetadata). Tiles must be written in strictly ascending TileID
// order; an out-of-order call fails ErrUnorderedTile. An empty tileData is
// a no-op, matching an address with no content. Callers that have decoded
// tile bytes on hand and want the writer to apply TileCompression itself
// should use AddTile instead.
func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	return w.writeTileBytes(tileID, tileData)
}

// AddTile compresses decoded tile bytes per the archive's TileCompression
// (set via WithHeaderMetadata, defaulting to CompressionUnknown) and
// stores the result, so the bytes written always agree with the header's
// declared compression regardless of what the caller already applied.
// Ordering and dedup rules match WriteTile.
func (w *Writer) AddTile(tileID tile.ID, tileData []byte) error {
	if len(tileData) == 0 {
		return w.writeTileBytes(tileID, tileData)
	}
	compressed, err := spec.Compress(tileData, w.header.TileCompression)
	if err != nil {
		return err
	}
	return w.writeTileBytes(tileID, compressed)
}

func (w *Writer) writeTileBytes(tileID tile.ID, tileData []byte) error {
	if w.tileWriter == nil {
		panic("pmtiles: WriteTile called after Finalize")
	}
	if len(tileData) == 0 {
		return nil
	}

	tileCode, err := spec.EncodeTileID(tileID)
	if err != nil {
		return err
	}
	if w.haveLastTile && tileCode <= w.lastTileCode {
		return fmt.Errorf("%w: tileId %d after %d", spec.ErrUnorderedTile, tileCode, w.lastTileCode)
	}
	w.haveLastTile = true
	w.lastTileCode = tileCode

	w.trackBounds(tileID)

	fingerprint := murmur3.Sum64(tileData)
	if entryIdx, exists := w.locations[fingerprint]; exists {
		candidate := w.entries[entryIdx]
		if uint32(len(tileData)) == candidate.Length {
			entry := spec.Entry{
				TileCode:  tileCode,
				Offset:    candidate.Offset,
				Length:    candidate.Length,
				RunLength: 1,
			}
			w.entries = append(w.entries, entry)
			return nil
		}
		// Fingerprint collision on a different length: fall through and
		// store a fresh copy rather than risk aliasing distinct content.
	}

	entry := spec.Entry{
		TileCode:  tileCode,
		Offset:    w.tileOffset,
		Length:    uint32(len(tileData)),
		RunLength: 1,
	}

	if _, err := w.tileWriter.Write(tileData); err != nil {
		return fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
	}
	w.tileOffset += uint64(len(tileData))

	w.locations[fingerprint] = uint32(len(w.entries))
	w.entries = append(w.entries, entry)
	w.contentsCount++

	return nil
}

func (w *Writer) trackBounds(tileID tile.ID) {
	w.haveAnyTile = true
	z := uint8(tileID.Z)
	if z < w.minZoom {
		w.minZoom = z
	}
	if z > w.maxZoom {
		w.maxZoom = z
	}

	lon, lat := tileBoundsE7(tileID)
	if lon[0] < w.minLon {
		w.minLon = lon[0]
	}
	if lon[1] > w.maxLon {
		w.maxLon = lon[1]
	}
	if lat[0] < w.minLat {
		w.minLat = lat[0]
	}
	if lat[1] > w.maxLat {
		w.maxLat = lat[1]
	}
}

// tileBoundsE7 returns the [west,east] and [south,north] extent of a tile
// in degrees*1e7, using the standard web-mercator XYZ tiling scheme.
func tileBoundsE7(tileID tile.ID) (lonRange, latRange [2]int32) {
	n := float64(uint32(1) << tileID.Z)

	lonDeg := func(x uint32) int32 {
		return int32((float64(x)/n*360.0 - 180.0) * 1e7)
	}
	latDeg := func(y uint32) int32 {
		yf := float64(y) / n
		radians := math.Atan(math.Sinh(math.Pi * (1 - 2*yf)))
		return int32(radians * 180.0 / math.Pi * 1e7)
	}

	lonRange = [2]int32{lonDeg(tileID.X), lonDeg(tileID.X + 1)}
	north := latDeg(tileID.Y)
	south := latDeg(tileID.Y + 1)
	latRange = [2]int32{south, north}
	return lonRange, latRange
}

// Finalize writes the tile directory, metadata-derived header fields, and
// the fixed header, then closes the underlying file. Finalize must be
// called exactly once, after all tiles are written.
func (w *Writer) Finalize() error {
	if w.tileWriter == nil {
		panic("pmtiles: Finalize called twice")
	}

	w.logger.Debug("pmtiles: flush tiles")
	if err := w.tileWriter.Flush(); err != nil {
		return fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
	}
	w.header.TileDataLength = w.tileOffset
	w.tileWriter = nil

	w.logger.Debug("pmtiles: sort entries")
	slices.SortFunc(w.entries, func(a, b spec.Entry) int {
		return cmp.Compare(a.TileCode, b.TileCode)
	})

	w.logger.Debug("pmtiles: compact entries")
	w.entries = spec.CompactEntries(w.entries)

	w.header.AddressedTilesCount = 0
	for _, e := range w.entries {
		w.header.AddressedTilesCount += uint64(e.RunLength)
	}
	w.header.TileEntriesCount = uint64(len(w.entries))
	w.header.TileContentsCount = w.contentsCount

	if !w.explicitBounds && w.haveAnyTile {
		w.header.MinZoom = w.minZoom
		w.header.MaxZoom = w.maxZoom
		w.header.MinLonE7 = w.minLon
		w.header.MinLatE7 = w.minLat
		w.header.MaxLonE7 = w.maxLon
		w.header.MaxLatE7 = w.maxLat
		if w.header.CenterZoom == 0 && w.header.CenterLonE7 == 0 && w.header.CenterLatE7 == 0 {
			w.header.CenterZoom = w.minZoom
			w.header.CenterLonE7 = int32((int64(w.minLon) + int64(w.maxLon)) / 2)
			w.header.CenterLatE7 = int32((int64(w.minLat) + int64(w.maxLat)) / 2)
		}
	}

	w.logger.Debug("pmtiles: serialize directory")
	rootBytes, leavesBytes, err := spec.SerializeAll(w.entries, w.header.InternalCompression)
	if err != nil {
		return err
	}

	w.logger.Debug("pmtiles: write leaf directories")
	leavesOffset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(leavesBytes); err != nil {
		return fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
	}
	w.header.LeafDirectoryOffset = uint64(leavesOffset)
	w.header.LeafDirectoryLength = uint64(len(leavesBytes))

	if uint64(len(rootBytes)) > spec.RootDirMaxLength {
		return fmt.Errorf("%w: root directory %d bytes exceeds %d", spec.ErrTooLarge, len(rootBytes), spec.RootDirMaxLength)
	}

	w.logger.Debug("pmtiles: write root directory")
	if _, err := w.file.Seek(spec.RootDirOffset, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(rootBytes); err != nil {
		return fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
	}
	w.header.RootOffset = spec.RootDirOffset
	w.header.RootLength = uint64(len(rootBytes))

	w.logger.Debug("pmtiles: write header")
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(spec.SerializeHeader(&w.header)); err != nil {
		return fmt.Errorf("%w: %w", spec.ErrSinkIO, err)
	}

	w.logger.Debug("pmtiles: close")
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	return nil
}

// Close releases the underlying file without finalizing the archive. It is
// a no-op once Finalize has already run. Callers that abandon a Writer
// before Finalize should still call Close to avoid leaking the descriptor.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
