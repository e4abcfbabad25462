package main

import (
	"context"
	"flag"
	"log"

	"github.com/google/subcommands"

	"github.com/ozhernov/pmtiles/pmtiles"
)

type verifyCmd struct {
	inputPath string
}

func (c *verifyCmd) Name() string     { return "verify" }
func (c *verifyCmd) Synopsis() string { return "check a pmtiles archive's directory structure" }
func (c *verifyCmd) Usage() string {
	return "tileutils verify -i <path>\n"
}
func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input pmtiles file path")
}

func (c *verifyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	reader, err := newPMTilesReader(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer reader.Close()

	if err := reader.reader.Verify(context.Background()); err != nil {
		log.Println("verify failed:", err)
		return subcommands.ExitFailure
	}

	count := 0
	err = reader.reader.VisitTileLocations(context.Background(), func(pmtiles.TileID, pmtiles.Location) error {
		count++
		return nil
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Printf("ok: %d addressed tiles", count)
	return subcommands.ExitSuccess
}
