package main

import (
	"context"

	"github.com/ozhernov/pmtiles/pmtiles"
	"github.com/ozhernov/pmtiles/pmtiles/backend"
	"github.com/ozhernov/pmtiles/tile"
)

// pmtilesReader adapts *pmtiles.Reader, whose methods take a context, to
// the context-free tile.Visitor/tile.LocationVisitor interfaces the rest
// of this CLI is written against. Every call runs against
// context.Background(): the CLI is a one-shot batch tool with no
// cancellation or deadline to propagate.
type pmtilesReader struct {
	backend *backend.File
	reader  *pmtiles.Reader
}

func newPMTilesReader(filePath string) (*pmtilesReader, error) {
	fileBackend, err := backend.NewFile(filePath)
	if err != nil {
		return nil, err
	}
	reader, err := pmtiles.Open(context.Background(), fileBackend)
	if err != nil {
		fileBackend.Close()
		return nil, err
	}
	return &pmtilesReader{backend: fileBackend, reader: reader}, nil
}

func (a *pmtilesReader) Close() error {
	return a.backend.Close()
}

func (a *pmtilesReader) ReadTile(tileID tile.ID) ([]byte, error) {
	return a.reader.ReadTile(context.Background(), tileID)
}

func (a *pmtilesReader) VisitTiles(visitor func(tile.ID, []byte) error) error {
	return a.reader.VisitTiles(context.Background(), visitor)
}

func (a *pmtilesReader) VisitLocations(visitor func(tile.ID, tile.Location) error) error {
	return a.reader.VisitTileLocations(context.Background(), func(tileID pmtiles.TileID, location pmtiles.Location) error {
		return visitor(tileID, tile.Location{Offset: location.Offset, Length: location.Length})
	})
}

var (
	_ tile.Reader          = (*pmtilesReader)(nil)
	_ tile.Visitor         = (*pmtilesReader)(nil)
	_ tile.LocationVisitor = (*pmtilesReader)(nil)
)

// pmtilesWriter adapts *pmtiles.Writer to tile.Writer.
type pmtilesWriter struct {
	writer *pmtiles.Writer
}

func newPMTilesWriter(filePath string, opts ...pmtiles.WriterOption) (*pmtilesWriter, error) {
	writer, err := pmtiles.NewWriter(filePath, opts...)
	if err != nil {
		return nil, err
	}
	return &pmtilesWriter{writer: writer}, nil
}

func (a *pmtilesWriter) WriteTile(tileID tile.ID, tileData []byte) error {
	return a.writer.WriteTile(tileID, tileData)
}

func (a *pmtilesWriter) Finalize() error {
	return a.writer.Finalize()
}

func (a *pmtilesWriter) Close() error {
	return a.writer.Close()
}

var _ tile.Writer = (*pmtilesWriter)(nil)
