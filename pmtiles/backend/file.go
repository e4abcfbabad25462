package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/ozhernov/pmtiles/pmtiles/spec"
)

// File is a Backend over a local *os.File, grounded on the teacher's
// original FileAccessFunc closure in pm/reader.go (file.ReadAt).
type File struct {
	file *os.File
	size uint64
}

// NewFile opens filePath for reading. Close the returned File when done.
func NewFile(filePath string) (*File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &File{file: file, size: uint64(info.Size())}, nil
}

func (f *File) ReadRange(_ context.Context, offset, length uint64) ([]byte, error) {
	if offset+length > f.size {
		return nil, fmt.Errorf("%w: [%d,%d) exceeds archive length %d", spec.ErrInvalidRange, offset, offset+length, f.size)
	}
	buffer := make([]byte, length)
	if _, err := f.file.ReadAt(buffer, int64(offset)); err != nil {
		return nil, err
	}
	return buffer, nil
}

func (f *File) Size(_ context.Context) (uint64, bool) {
	return f.size, true
}

func (f *File) Close() error {
	return f.file.Close()
}
