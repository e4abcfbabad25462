package spec_test

import (
	"encoding/binary"
	"testing"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/stretchr/testify/require"
)

func TestHeaderLength(t *testing.T) {
	require.Equal(t, binary.Size(spec.Header{}), spec.HeaderLength)
}

func TestHeaderSerializer(t *testing.T) {
	header1 := spec.Header{
		HeaderMagic:         spec.HeaderMagicV3,
		TileCompression:     spec.CompressionZstd,
		InternalCompression: spec.CompressionGzip,
		TileType:            spec.TileTypeMvt,
		MinZoom:             0,
		MaxZoom:             14,
		MinLonE7:            -1800000000,
		MaxLonE7:            1800000000,
		MinLatE7:            -850000000,
		MaxLatE7:            850000000,
	}
	headerData := spec.SerializeHeader(&header1)
	header2, err := spec.DeserializeHeader(headerData)
	require.NoError(t, err)
	require.Equal(t, header1, *header2)
}

func TestHeaderErrors(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		_, err := spec.DeserializeHeader([]byte("foobar"))
		require.ErrorIs(t, err, spec.ErrInvalidHeader)
	})

	t.Run("BadMagic", func(t *testing.T) {
		header := spec.Header{HeaderMagic: spec.HeaderMagicV3}
		data := spec.SerializeHeader(&header)
		data[0] ^= 0xFF
		_, err := spec.DeserializeHeader(data)
		require.ErrorIs(t, err, spec.ErrInvalidHeader)
	})

	t.Run("WrongVersion", func(t *testing.T) {
		header := spec.Header{HeaderMagic: spec.HeaderMagicV3&(1<<56-1) | (0x02 << 56)}
		data := spec.SerializeHeader(&header)
		_, err := spec.DeserializeHeader(data)
		require.ErrorIs(t, err, spec.ErrInvalidVersion)
	})

	t.Run("InvertedBoundingBox", func(t *testing.T) {
		header := spec.Header{
			HeaderMagic: spec.HeaderMagicV3,
			MinLonE7:    100,
			MaxLonE7:    -100,
		}
		data := spec.SerializeHeader(&header)
		_, err := spec.DeserializeHeader(data)
		require.ErrorIs(t, err, spec.ErrInvalidBoundingBox)
	})
}
