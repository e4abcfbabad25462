package pmtiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// ReadMode controls whether tile payloads are returned as stored or
// decompressed per the header's declared tile-compression algorithm.
type ReadMode int

const (
	// Decoded applies the header's tile-compression algorithm before
	// returning a tile payload. It fails ErrUnsupportedCompression if the
	// header declares CompressionUnknown.
	Decoded ReadMode = iota
	// Raw returns tile payloads exactly as stored, with no decompression.
	Raw
)

const defaultInitialWindow = spec.HeaderRootDirMaxLength

// maxDirectoryDepth bounds recursive directory descent at 3 directory
// reads total (the root plus at most two leaf levels), guarding against a
// malformed archive with a directory cycle or unbounded chain.
const maxDirectoryDepth = 3

type readerConfig struct {
	initialWindow uint64
	cache         DirectoryCache
	archiveID     ArchiveID
	readMode      ReadMode
	logger        *slog.Logger
}

// ReaderOption configures Open.
type ReaderOption func(*readerConfig)

// WithInitialWindow overrides the first-read window size (default 16
// KiB). A larger window can save a round trip fetching the root directory
// at the cost of reading more bytes upfront than strictly needed.
func WithInitialWindow(bytes uint64) ReaderOption {
	return func(c *readerConfig) { c.initialWindow = bytes }
}

// WithDirectoryCache installs a DirectoryCache; the default is NoCache().
func WithDirectoryCache(cache DirectoryCache) ReaderOption {
	return func(c *readerConfig) { c.cache = cache }
}

// WithArchiveID sets the opaque key used to disambiguate this archive
// within a DirectoryCache shared across archives. Defaults to the Reader
// pointer itself if not set explicitly.
func WithArchiveID(id ArchiveID) ReaderOption {
	return func(c *readerConfig) { c.archiveID = id }
}

// RawTiles makes ReadTile return stored bytes without decompression. The
// default applies the header's declared tile-compression and fails
// ErrUnsupportedCompression if it is CompressionUnknown.
func RawTiles() ReaderOption {
	return func(c *readerConfig) { c.readMode = Raw }
}

// WithReaderLogger installs a logger for cache/backend diagnostics.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(c *readerConfig) { c.logger = logger }
}

// Reader is a query engine over one PMTiles v3 archive, reachable through
// a pluggable Backend. After Open, a Reader holds only immutable state
// (the parsed header) and is safe for concurrent use by many callers.
type Reader struct {
	backend   Backend
	cache     DirectoryCache
	archiveID ArchiveID
	logger    *slog.Logger

	header   *spec.Header
	readMode ReadMode
}

// Open reads the initial window, parses the header, and (when it falls
// within that window) the root directory, from backend.
func Open(ctx context.Context, backend Backend, opts ...ReaderOption) (*Reader, error) {
	config := readerConfig{
		initialWindow: defaultInitialWindow,
		cache:         NoCache(),
		readMode:      Decoded,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	initialWindow := config.initialWindow
	if size, ok := backend.Size(ctx); ok && size < initialWindow {
		initialWindow = size
	}

	window, err := backend.ReadRange(ctx, 0, initialWindow)
	if err != nil {
		return nil, err
	}
	if uint64(len(window)) < spec.HeaderLength {
		return nil, fmt.Errorf("%w: initial window shorter than header", spec.ErrInvalidHeader)
	}

	header, err := spec.DeserializeHeader(window[:spec.HeaderLength])
	if err != nil {
		return nil, err
	}

	r := &Reader{
		backend:  backend,
		cache:    config.cache,
		logger:   config.logger,
		header:   header,
		readMode: config.readMode,
	}

	archiveID := config.archiveID
	if archiveID == nil {
		archiveID = r
	}
	r.archiveID = archiveID

	rootEnd := header.RootOffset + header.RootLength
	if rootEnd <= uint64(len(window)) {
		r.logger.Debug("pmtiles: root directory served from initial window")
		rootData := window[header.RootOffset:rootEnd]
		entries, err := decodeDirectory(rootData, header.InternalCompression)
		if err != nil {
			return nil, err
		}
		r.cache.Insert(archiveID, DirKey{Offset: header.RootOffset, Length: header.RootLength}, entries)
	}

	return r, nil
}

// readRange is the path through which the reader fetches archive bytes
// after Open's initial window read (which Open clamps to the backend's
// size itself): it applies the defensive checkRange bound check (when the
// backend's size is known) before delegating to backend.ReadRange.
func (r *Reader) readRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	if err := checkRange(ctx, r.backend, offset, length); err != nil {
		return nil, err
	}
	return r.backend.ReadRange(ctx, offset, length)
}

func decodeDirectory(compressed []byte, compression spec.Compression) ([]spec.Entry, error) {
	data, err := spec.Decompress(compressed, compression)
	if err != nil {
		return nil, err
	}
	return spec.DeserializeDirectory(data)
}

func (r *Reader) readDirectory(ctx context.Context, dirKey DirKey) ([]spec.Entry, error) {
	return r.cache.GetOrInsert(ctx, r.archiveID, dirKey, func(ctx context.Context) ([]spec.Entry, error) {
		compressed, err := r.readRange(ctx, dirKey.Offset, dirKey.Length)
		if err != nil {
			return nil, err
		}
		return decodeDirectory(compressed, r.header.InternalCompression)
	})
}

// Close releases the underlying backend if it implements io.Closer.
func (r *Reader) Close() error {
	if closer, ok := r.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// HeaderMetadata returns the caller-meaningful subset of the archive header.
func (r *Reader) HeaderMetadata() HeaderMetadata {
	result := HeaderMetadata{}
	result.copyFromHeader(r.header)
	return result
}

// ReadMetadata returns the archive's opaque metadata blob.
func (r *Reader) ReadMetadata(ctx context.Context) ([]byte, error) {
	if r.header.MetadataLength == 0 {
		return nil, nil
	}
	return r.readRange(ctx, r.header.MetadataOffset, r.header.MetadataLength)
}

// ReadLocation resolves tileID to its byte range within the tile-data
// section via the recursive directory lookup protocol. found is false if
// tileID is not addressed by the archive.
func (r *Reader) ReadLocation(ctx context.Context, tileID TileID) (location Location, found bool, err error) {
	tileCode, err := spec.EncodeTileID(tileID)
	if err != nil {
		return Location{}, false, err
	}

	dirKey := DirKey{Offset: r.header.RootOffset, Length: r.header.RootLength}
	for depth := 0; ; depth++ {
		if depth >= maxDirectoryDepth {
			return Location{}, false, spec.ErrDirectoryTooDeep
		}

		entries, err := r.readDirectory(ctx, dirKey)
		if err != nil {
			return Location{}, false, err
		}

		entry, ok := spec.FindEntry(entries, tileCode)
		if !ok {
			return Location{}, false, nil
		}

		if entry.RunLength > 0 {
			return Location{
				Offset: r.header.TileDataOffset + entry.Offset,
				Length: uint64(entry.Length),
			}, true, nil
		}

		dirKey = DirKey{
			Offset: r.header.LeafDirectoryOffset + entry.Offset,
			Length: uint64(entry.Length),
		}
	}
}

// ReadTile fetches a tile's payload. It returns (nil, nil) if tileID is
// not addressed by the archive.
func (r *Reader) ReadTile(ctx context.Context, tileID TileID) ([]byte, error) {
	location, found, err := r.ReadLocation(ctx, tileID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	data, err := r.readRange(ctx, location.Offset, location.Length)
	if err != nil {
		return nil, err
	}

	if r.readMode == Raw {
		return data, nil
	}
	if r.header.TileCompression == spec.CompressionUnknown {
		return nil, fmt.Errorf("%w: tile compression unknown, use RawTiles() to read undecoded bytes", spec.ErrUnsupportedCompression)
	}
	return spec.Decompress(data, r.header.TileCompression)
}

// VisitTileLocations streams every addressed Entry in ascending tileId
// order, descending into leaves as needed, calling visitor once per
// addressed tile coordinate.
func (r *Reader) VisitTileLocations(ctx context.Context, visitor func(TileID, Location) error) error {
	var traverse func(dirKey DirKey, depth int) error
	traverse = func(dirKey DirKey, depth int) error {
		if depth >= maxDirectoryDepth {
			return spec.ErrDirectoryTooDeep
		}
		entries, err := r.readDirectory(ctx, dirKey)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.RunLength > 0 {
				for i := range entry.RunLength {
					tileID := spec.DecodeTileID(entry.TileCode + uint64(i))
					location := Location{
						Offset: r.header.TileDataOffset + entry.Offset,
						Length: uint64(entry.Length),
					}
					if err := visitor(tileID, location); err != nil {
						return err
					}
				}
			} else {
				leafKey := DirKey{
					Offset: r.header.LeafDirectoryOffset + entry.Offset,
					Length: uint64(entry.Length),
				}
				if err := traverse(leafKey, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(DirKey{Offset: r.header.RootOffset, Length: r.header.RootLength}, 0)
}

var errVisitCancelled = errors.New("pmtiles: visit cancelled")

// TileLocations returns a lazy, single-pass, ascending-tileId iterator
// over every addressed (TileID, Location). It panics on any backend or
// format error encountered mid-iteration; wrap with VisitTileLocations
// directly if you need to distinguish that from early termination.
func (r *Reader) TileLocations(ctx context.Context) iter.Seq2[TileID, Location] {
	return func(yield func(TileID, Location) bool) {
		err := r.VisitTileLocations(ctx, func(tileID TileID, location Location) error {
			if !yield(tileID, location) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// VisitTiles is VisitTileLocations plus a backend fetch of each tile's
// payload, applying the Reader's configured ReadMode.
func (r *Reader) VisitTiles(ctx context.Context, visitor func(TileID, []byte) error) error {
	return r.VisitTileLocations(ctx, func(tileID TileID, location Location) error {
		data, err := r.readRange(ctx, location.Offset, location.Length)
		if err != nil {
			return err
		}
		if r.readMode != Raw {
			if r.header.TileCompression == spec.CompressionUnknown {
				return fmt.Errorf("%w: tile compression unknown, use RawTiles() to read undecoded bytes", spec.ErrUnsupportedCompression)
			}
			data, err = spec.Decompress(data, r.header.TileCompression)
			if err != nil {
				return err
			}
		}
		return visitor(tileID, data)
	})
}

// Tiles is the (TileID, []byte) analogue of TileLocations.
func (r *Reader) Tiles(ctx context.Context) iter.Seq2[TileID, []byte] {
	return func(yield func(TileID, []byte) bool) {
		err := r.VisitTiles(ctx, func(tileID TileID, data []byte) error {
			if !yield(tileID, data) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && err != errVisitCancelled {
			panic(err)
		}
	}
}

// Verify scans the directory tree top-down asserting that entries within
// every directory are strictly ascending by TileCode (DeserializeDirectory
// already enforces that on decode) and that every referenced byte range
// lies within its section.
func (r *Reader) Verify(ctx context.Context) error {
	size, sizeKnown := r.backend.Size(ctx)

	checkWithin := func(base, length, sectionLen uint64, kind string) error {
		if base+length > sectionLen {
			return fmt.Errorf("%w: %s range [%d,%d) exceeds section length %d", spec.ErrInvalidRange, kind, base, base+length, sectionLen)
		}
		return nil
	}

	var traverse func(dirKey DirKey, depth int) error
	traverse = func(dirKey DirKey, depth int) error {
		if depth >= maxDirectoryDepth {
			return spec.ErrDirectoryTooDeep
		}
		entries, err := r.readDirectory(ctx, dirKey)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.RunLength > 0 {
				if err := checkWithin(entry.Offset, uint64(entry.Length), r.header.TileDataLength, "tile data"); err != nil {
					return err
				}
			} else {
				if err := checkWithin(entry.Offset, uint64(entry.Length), r.header.LeafDirectoryLength, "leaf directory"); err != nil {
					return err
				}
				leafKey := DirKey{
					Offset: r.header.LeafDirectoryOffset + entry.Offset,
					Length: uint64(entry.Length),
				}
				if err := traverse(leafKey, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if sizeKnown {
		if r.header.RootOffset+r.header.RootLength > size ||
			r.header.MetadataOffset+r.header.MetadataLength > size ||
			r.header.LeafDirectoryOffset+r.header.LeafDirectoryLength > size ||
			r.header.TileDataOffset+r.header.TileDataLength > size {
			return fmt.Errorf("%w: a header section extends past archive length %d", spec.ErrInvalidRange, size)
		}
	}

	return traverse(DirKey{Offset: r.header.RootOffset, Length: r.header.RootLength}, 0)
}
