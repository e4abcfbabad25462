// Package backend provides reference implementations of pmtiles.Backend:
// in-memory, local file, HTTP range requests, and S3 GetObject.
package backend

import (
	"context"
	"fmt"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// Memory is a Backend over an in-process byte slice. It never suspends and
// is the natural choice for tests and for archives already loaded whole
// into memory.
type Memory struct {
	data []byte
}

// NewMemory wraps data as a Backend. The slice is not copied; callers must
// not mutate it afterward.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) ReadRange(_ context.Context, offset, length uint64) ([]byte, error) {
	if offset+length > uint64(len(m.data)) {
		return nil, fmt.Errorf("%w: [%d,%d) exceeds archive length %d", spec.ErrInvalidRange, offset, offset+length, len(m.data))
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+length])
	return out, nil
}

func (m *Memory) Size(_ context.Context) (uint64, bool) {
	return uint64(len(m.data)), true
}
