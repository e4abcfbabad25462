package spec

import "errors"

// Error kinds for the PMTiles v3 wire format, per the archive codec's
// error taxonomy. Callers use errors.Is against these sentinels; wrapping
// errors (via fmt.Errorf("%w: ...")) always preserve them.
var (
	ErrInvalidHeader      = errors.New("pmtiles: invalid file header")
	ErrInvalidVersion     = errors.New("pmtiles: unsupported version")
	ErrInvalidCompression = errors.New("pmtiles: invalid compression algorithm")
	ErrInvalidTileType    = errors.New("pmtiles: invalid tile type")
	ErrInvalidBoundingBox = errors.New("pmtiles: invalid bounding box")

	ErrVarintOverflow = errors.New("pmtiles: varint overflow")
	ErrUnexpectedEOF  = errors.New("pmtiles: unexpected end of input")

	ErrDirectoryTruncated = errors.New("pmtiles: directory truncated")
	ErrDirectoryTooDeep   = errors.New("pmtiles: directory recursion too deep")

	ErrInvalidRange      = errors.New("pmtiles: invalid byte range")
	ErrInvalidCoordinate = errors.New("pmtiles: invalid tile coordinate")

	ErrUnorderedTile         = errors.New("pmtiles: tile written out of order")
	ErrUnsupportedCompression = errors.New("pmtiles: unsupported compression")
	ErrSinkIO                = errors.New("pmtiles: sink write failed")
	ErrTooLarge              = errors.New("pmtiles: archive section exceeds addressable bounds")
)
