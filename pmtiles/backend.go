package pmtiles

import (
	"context"
	"fmt"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// Backend abstracts the byte-range source an archive is read from: a local
// file, an HTTP object, an S3 object, memory, etc. Implementations must be
// safe for concurrent use; callers assume any call may suspend on I/O.
type Backend interface {
	// ReadRange returns exactly length bytes starting at offset, or fails.
	ReadRange(ctx context.Context, offset, length uint64) ([]byte, error)

	// Size returns the total archive length if known, and whether it is
	// known at all. A backend that cannot cheaply know its length (e.g. a
	// generic streaming source) returns ok=false; readers then skip
	// defensive offset+length bound checks against it.
	Size(ctx context.Context) (size uint64, ok bool)
}

func checkRange(ctx context.Context, b Backend, offset, length uint64) error {
	size, ok := b.Size(ctx)
	if !ok {
		return nil
	}
	if offset+length > size {
		return fmt.Errorf("%w: [%d,%d) exceeds archive length %d", spec.ErrInvalidRange, offset, offset+length, size)
	}
	return nil
}
