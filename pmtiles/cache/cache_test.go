package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ozhernov/pmtiles/pmtiles"
	"github.com/ozhernov/pmtiles/pmtiles/cache"
	"github.com/ozhernov/pmtiles/pmtiles/spec"
	"github.com/stretchr/testify/require"
)

func TestSingleFlightCacheCoalescesConcurrentMisses(t *testing.T) {
	c := cache.NewSingleFlightCache()

	var loaderCalls atomic.Int32
	loader := func(ctx context.Context) ([]spec.Entry, error) {
		loaderCalls.Add(1)
		return []spec.Entry{{TileCode: 1, Offset: 0, Length: 4, RunLength: 1}}, nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([][]spec.Entry, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir, err := c.GetOrInsert(context.Background(), "archive-a", pmtiles.DirKey{Offset: 100, Length: 50}, loader)
			require.NoError(t, err)
			results[i] = dir
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, loaderCalls.Load())
	for _, r := range results {
		require.Len(t, r, 1)
	}
}

func TestSingleFlightCacheRetriesAfterError(t *testing.T) {
	c := cache.NewSingleFlightCache()

	failing := true
	loader := func(ctx context.Context) ([]spec.Entry, error) {
		if failing {
			return nil, assertErr
		}
		return []spec.Entry{{TileCode: 1, Offset: 0, Length: 4, RunLength: 1}}, nil
	}

	_, err := c.GetOrInsert(context.Background(), "archive-b", pmtiles.DirKey{Offset: 0, Length: 10}, loader)
	require.ErrorIs(t, err, assertErr)

	failing = false
	dir, err := c.GetOrInsert(context.Background(), "archive-b", pmtiles.DirKey{Offset: 0, Length: 10}, loader)
	require.NoError(t, err)
	require.Len(t, dir, 1)
}

func TestSingleFlightCacheDisambiguatesArchives(t *testing.T) {
	c := cache.NewSingleFlightCache()
	key := pmtiles.DirKey{Offset: 0, Length: 10}

	c.Insert("archive-x", key, []spec.Entry{{TileCode: 1, Offset: 0, Length: 1, RunLength: 1}})
	c.Insert("archive-y", key, []spec.Entry{{TileCode: 2, Offset: 0, Length: 1, RunLength: 1}})

	dirX, err := c.GetOrInsert(context.Background(), "archive-x", key, failOnCall(t))
	require.NoError(t, err)
	require.EqualValues(t, 1, dirX[0].TileCode)

	dirY, err := c.GetOrInsert(context.Background(), "archive-y", key, failOnCall(t))
	require.NoError(t, err)
	require.EqualValues(t, 2, dirY[0].TileCode)
}

func failOnCall(t *testing.T) pmtiles.DirLoader {
	return func(ctx context.Context) ([]spec.Entry, error) {
		t.Fatal("loader should not be invoked for a pre-populated entry")
		return nil, nil
	}
}

var assertErr = errSentinel("loader failed")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
