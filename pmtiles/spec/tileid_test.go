package spec_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/ozhernov/pmtiles/tile"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTileID(t *testing.T) {
	for z := range 10 {
		for x := range 1 << z {
			for y := range 1 << z {
				tileID := tile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
				code, err := spec.EncodeTileID(tileID)
				require.NoError(t, err)
				if diff := cmp.Diff(tileID, spec.DecodeTileID(code)); diff != "" {
					t.Errorf("DecodeTileID(EncodeTileID(%v)) mismatch (-want+got):\n%v", tileID, diff)
				}
			}
		}
	}
	for z := range 31 {
		tileID := tile.ID{X: uint32(1<<z) - 1, Y: uint32(1<<z) - 1, Z: uint32(z)}
		code, err := spec.EncodeTileID(tileID)
		require.NoError(t, err)
		if diff := cmp.Diff(tileID, spec.DecodeTileID(code)); diff != "" {
			t.Errorf("DecodeTileID(EncodeTileID(%v)) mismatch (-want+got):\n%v", tileID, diff)
		}
	}
}

func TestEncodeTileIDZero(t *testing.T) {
	code, err := spec.EncodeTileID(tile.ID{X: 0, Y: 0, Z: 0})
	require.NoError(t, err)
	require.EqualValues(t, 0, code)
}

func TestEncodeTileIDInvalidCoordinate(t *testing.T) {
	cases := []tile.ID{
		{X: 0, Y: 0, Z: 32},
		{X: 4, Y: 0, Z: 2},
		{X: 0, Y: 4, Z: 2},
	}
	for _, tc := range cases {
		_, err := spec.EncodeTileID(tc)
		require.ErrorIsf(t, err, spec.ErrInvalidCoordinate, "%v", tc)
	}
}
