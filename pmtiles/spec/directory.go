package spec

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"sort"
)

// Entry maps a run of tileIds, [TileCode, TileCode+RunLength), to a byte
// range. RunLength == 0 marks a leaf-directory pointer instead of a tile
// payload range.
type Entry struct {
	TileCode  uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

// SerializeDirectory encodes entries as five concatenated varint streams:
// count, tileId deltas, run lengths, lengths, then offsets (0 meaning
// "contiguous with the previous entry's end").
func SerializeDirectory(entries []Entry) []byte {
	buffer := make([]byte, 0)

	buffer = AppendVarint(buffer, uint64(len(entries)))

	lastCode := uint64(0)
	for _, entry := range entries {
		buffer = AppendVarint(buffer, entry.TileCode-lastCode)
		lastCode = entry.TileCode
	}

	for _, entry := range entries {
		buffer = AppendVarint(buffer, uint64(entry.RunLength))
	}

	for _, entry := range entries {
		buffer = AppendVarint(buffer, uint64(entry.Length))
	}

	nextOffset := uint64(0)
	for i, entry := range entries {
		if i > 0 && entry.Offset == nextOffset {
			buffer = AppendVarint(buffer, 0)
		} else {
			buffer = AppendVarint(buffer, entry.Offset+1)
		}
		nextOffset = entry.Offset + uint64(entry.Length)
	}

	return buffer
}

// DeserializeDirectory decodes a directory encoded by SerializeDirectory.
// It fails with ErrDirectoryTruncated if any of the five varint streams
// runs short, or if the reconstructed entries are not strictly ascending
// by TileCode.
func DeserializeDirectory(data []byte) ([]Entry, error) {
	byteReader := bytes.NewReader(data)

	readVarint := func() (uint64, error) {
		v, err := ReadVarint(byteReader)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrDirectoryTruncated, err)
		}
		return v, nil
	}

	numEntries, err := readVarint()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, numEntries)

	lastCode := uint64(0)
	for i := range entries {
		delta, err := readVarint()
		if err != nil {
			return nil, err
		}
		entries[i].TileCode = lastCode + delta
		if i > 0 && entries[i].TileCode <= lastCode {
			return nil, fmt.Errorf("%w: tile codes not strictly ascending", ErrDirectoryTruncated)
		}
		lastCode = entries[i].TileCode
	}

	for i := range entries {
		v, err := readVarint()
		if err != nil {
			return nil, err
		}
		entries[i].RunLength = uint32(v)
	}

	for i := range entries {
		v, err := readVarint()
		if err != nil {
			return nil, err
		}
		entries[i].Length = uint32(v)
	}

	for i := range entries {
		v, err := readVarint()
		if err != nil {
			return nil, err
		}
		if v == 0 && i > 0 {
			entries[i].Offset = entries[i-1].Offset + uint64(entries[i-1].Length)
		} else if v == 0 {
			entries[i].Offset = 0
		} else {
			entries[i].Offset = v - 1
		}
	}

	return entries, nil
}

// CompactEntries coalesces adjacent entries in entries (which must already
// be sorted ascending by TileCode) that share the same byte range and form
// a contiguous tileId run, incrementing RunLength instead of keeping a
// separate Entry. RunLength saturates at math.MaxUint32 rather than
// overflowing; a saturated run starts a fresh Entry for any further tiles.
func CompactEntries(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	wi := 0
	for ri := 1; ri < len(entries); ri++ {
		prev := &entries[wi]
		if entries[ri].Offset == prev.Offset &&
			entries[ri].TileCode == prev.TileCode+uint64(prev.RunLength) &&
			prev.RunLength < math.MaxUint32 {
			prev.RunLength++
		} else {
			wi++
			entries[wi] = entries[ri]
		}
	}
	return entries[:wi+1]
}

// FindEntry binary-searches entries (sorted ascending by TileCode) for the
// entry governing tileCode: the greatest entry E with E.TileCode <=
// tileCode, such that either E is a leaf pointer (RunLength == 0, caller
// must descend) or tileCode falls within E's run.
func FindEntry(entries []Entry, tileCode uint64) (Entry, bool) {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].TileCode > tileCode
	})

	if idx == 0 {
		return Entry{}, false
	}

	entry := &entries[idx-1]
	if entry.RunLength == 0 {
		return *entry, true
	}
	if tileCode < entry.TileCode+uint64(entry.RunLength) {
		return *entry, true
	}

	return Entry{}, false
}

// SerializeAll builds the compressed root directory and, if the root would
// exceed RootDirMaxLength, the compressed leaf-directories section too.
// entries must already be sorted ascending by TileCode. The split strategy
// minimizes depth (a single level of leaves) subject to the root fitting
// the bound.
func SerializeAll(entries []Entry, compression Compression) (root []byte, leaves []byte, err error) {
	rootEntries := entries
	rootData := SerializeDirectory(rootEntries)
	rootCompressed, err := Compress(rootData, compression)
	if err != nil {
		return nil, nil, err
	}
	leavesCompressed := make([]byte, 0)

	if len(entries) == 0 {
		return rootCompressed, leavesCompressed, nil
	}

	entriesCount := float64(len(entries))
	entriesSize := float64(len(rootCompressed))
	entrySize := entriesSize / entriesCount
	if entrySize <= 0 {
		entrySize = 1
	}
	targetRootSize := float64(RootDirMaxLength) * 0.9

	maxRootEntries := targetRootSize / entrySize
	minLeafEntries := max(entriesCount/max(maxRootEntries, 1), 4096)
	leafNumEntries := max(minLeafEntries, math.Sqrt(entriesCount))

	for len(rootCompressed) > RootDirMaxLength {
		rootEntries = rootEntries[:0]
		leavesCompressed = leavesCompressed[:0]

		for leafEntries := range slices.Chunk(entries, int(leafNumEntries)) {
			leafData := SerializeDirectory(leafEntries)
			leafCompressed, err := Compress(leafData, compression)
			if err != nil {
				return nil, nil, err
			}

			rootEntries = append(rootEntries, Entry{
				TileCode:  leafEntries[0].TileCode,
				Offset:    uint64(len(leavesCompressed)),
				Length:    uint32(len(leafCompressed)),
				RunLength: 0,
			})

			leavesCompressed = append(leavesCompressed, leafCompressed...)
		}

		rootData = SerializeDirectory(rootEntries)
		rootCompressed, err = Compress(rootData, compression)
		if err != nil {
			return nil, nil, err
		}

		leafNumEntries *= 1.1
	}

	return rootCompressed, leavesCompressed, nil
}
