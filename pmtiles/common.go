// Package pmtiles reads and writes PMTiles v3 archives: a single-file,
// HTTP-range-friendly container of map tiles indexed by a recursive
// directory over the (zoom, x, y) coordinate triple.
package pmtiles

import (
	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/ozhernov/pmtiles/tile"
)

// TileID is the (z,x,y) coordinate triple used throughout this package.
type TileID = tile.ID

// Location is the absolute byte range of a tile's payload within an
// archive's tile-data section.
type Location struct {
	Offset uint64
	Length uint64
}

// HeaderMetadata is the subset of the archive header a caller sets or
// reads back, excluding the structural offsets/lengths/counts the
// Reader/Writer manage themselves.
type HeaderMetadata struct {
	TileCompression spec.Compression
	TileType        spec.TileType
	MinZoom         uint8
	MaxZoom         uint8
	MinLonE7        int32
	MinLatE7        int32
	MaxLonE7        int32
	MaxLatE7        int32
	CenterZoom      uint8
	CenterLonE7     int32
	CenterLatE7     int32
}

func (m *HeaderMetadata) copyFromHeader(header *spec.Header) {
	m.TileCompression = header.TileCompression
	m.TileType = header.TileType
	m.MinZoom = header.MinZoom
	m.MaxZoom = header.MaxZoom
	m.MinLonE7 = header.MinLonE7
	m.MinLatE7 = header.MinLatE7
	m.MaxLonE7 = header.MaxLonE7
	m.MaxLatE7 = header.MaxLatE7
	m.CenterZoom = header.CenterZoom
	m.CenterLonE7 = header.CenterLonE7
	m.CenterLatE7 = header.CenterLatE7
}

func (m *HeaderMetadata) copyToHeader(header *spec.Header) {
	header.TileCompression = m.TileCompression
	header.TileType = m.TileType
	header.MinZoom = m.MinZoom
	header.MaxZoom = m.MaxZoom
	header.MinLonE7 = m.MinLonE7
	header.MinLatE7 = m.MinLatE7
	header.MaxLonE7 = m.MaxLonE7
	header.MaxLatE7 = m.MaxLatE7
	header.CenterZoom = m.CenterZoom
	header.CenterLonE7 = m.CenterLonE7
	header.CenterLatE7 = m.CenterLatE7
}
