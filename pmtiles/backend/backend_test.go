package backend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ozhernov/pmtiles/pmtiles/backend"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadRange(t *testing.T) {
	data := []byte("hello, pmtiles archive bytes")
	b := backend.NewMemory(data)

	got, err := b.ReadRange(context.Background(), 7, 8)
	require.NoError(t, err)
	require.Equal(t, []byte("pmtiles "), got)

	size, ok := b.Size(context.Background())
	require.True(t, ok)
	require.EqualValues(t, len(data), size)

	_, err = b.ReadRange(context.Background(), uint64(len(data)), 1)
	require.Error(t, err)
}

func TestFileReadRange(t *testing.T) {
	data := []byte("0123456789abcdef")
	filePath := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(filePath, data, 0644))

	f, err := backend.NewFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.ReadRange(context.Background(), 4, 6)
	require.NoError(t, err)
	require.Equal(t, []byte("456789"), got)

	size, ok := f.Size(context.Background())
	require.True(t, ok)
	require.EqualValues(t, len(data), size)

	_, err = f.ReadRange(context.Background(), 10, 100)
	require.Error(t, err)
}
