package spec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// AppendVarint appends the minimal-length unsigned LEB128 encoding of v to
// dst and returns the extended slice.
func AppendVarint(dst []byte, v uint64) []byte {
	return binary.AppendUvarint(dst, v)
}

// ReadVarint decodes a single unsigned LEB128 value from r. It fails with
// ErrVarintOverflow past the 10-byte limit for a 64-bit value, and
// ErrUnexpectedEOF on truncation.
func ReadVarint(r io.ByteReader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err == nil {
		return v, nil
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("%w: %w", ErrUnexpectedEOF, err)
	}
	// binary.ReadUvarint's only other failure mode is overflow past 10 bytes.
	return 0, fmt.Errorf("%w: %w", ErrVarintOverflow, err)
}
