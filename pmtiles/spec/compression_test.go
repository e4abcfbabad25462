package spec_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

func TestCompression(t *testing.T) {
	dataCases := []struct {
		Name string
		Data []byte
	}{
		{Name: "Repeat", Data: bytes.Repeat([]byte{42}, 100500)},
		{Name: "Foobar", Data: []byte("foobar")},
		{Name: "Empty", Data: []byte{}},
	}
	compressionCases := []struct {
		Name        string
		Compression spec.Compression
	}{
		{Name: "None", Compression: spec.CompressionNone},
		{Name: "Gzip", Compression: spec.CompressionGzip},
		{Name: "Brotli", Compression: spec.CompressionBrotli},
		{Name: "Zstd", Compression: spec.CompressionZstd},
	}
	for _, dc := range dataCases {
		for _, cc := range compressionCases {
			t.Run(dc.Name+cc.Name, func(t *testing.T) {
				compressed, err := spec.Compress(dc.Data, cc.Compression)
				if err != nil {
					t.Fatalf("Compress failed: %v", err)
				}
				decompressed, err := spec.Decompress(compressed, cc.Compression)
				if err != nil {
					t.Fatalf("Decompress failed: %v", err)
				}
				if !cmp.Equal(dc.Data, decompressed, cmpEmptyAsNil) {
					t.Errorf("Decompress(Compress(input)) != input")
				}
			})
		}
	}
}

// cmpEmptyAsNil treats a nil slice and an empty non-nil slice as equal,
// since some codecs return nil for zero-length input.
var cmpEmptyAsNil = cmp.Comparer(func(a, b []byte) bool {
	return bytes.Equal(a, b)
})

func TestCompressionUnknownFails(t *testing.T) {
	_, err := spec.Compress([]byte("x"), spec.CompressionUnknown)
	if err == nil {
		t.Fatal("expected error for unknown compression")
	}
	_, err = spec.Decompress([]byte("x"), spec.CompressionUnknown)
	if err == nil {
		t.Fatal("expected error for unknown compression")
	}
}
