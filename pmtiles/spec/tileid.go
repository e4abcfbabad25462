package spec

import (
	"fmt"
	"math/bits"

	"github.com/ozhernov/pmtiles/tile"
	"github.com/google/hilbert"
)

// EncodeTileID maps (z,x,y) to its PMTiles tile ID: the cumulative tile
// count of all zooms below z, plus the Hilbert index of (x,y) at order z.
// It fails with ErrInvalidCoordinate if z > 31 or x,y are out of range for
// that zoom.
func EncodeTileID(tileID tile.ID) (uint64, error) {
	if !tileID.Valid() {
		return 0, fmt.Errorf("%w: z=%d x=%d y=%d", ErrInvalidCoordinate, tileID.Z, tileID.X, tileID.Y)
	}

	h, err := hilbert.NewHilbert(1 << tileID.Z)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)
	}
	tileCode, err := h.MapInverse(int(tileID.X), int(tileID.Y))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCoordinate, err)
	}

	tilesCount := (uint64(1)<<(tileID.Z*2) - 1) / 3
	return uint64(tileCode) + tilesCount, nil
}

// DecodeTileID is the inverse of EncodeTileID: it satisfies
// DecodeTileID(EncodeTileID(id)) == id for every valid id.
func DecodeTileID(tileCode uint64) tile.ID {
	z := (bits.Len64(3*tileCode+1) - 1) / 2
	tilesCount := (uint64(1)<<(uint(z)*2) - 1) / 3

	h, _ := hilbert.NewHilbert(1 << z)
	x, y, _ := h.Map(int(tileCode - tilesCount))

	return tile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
}
