package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"chess-tuner/config"
	"chess-tuner/dataset"
	"chess-tuner/features"
	"chess-tuner/schema"
)

// convert pre-builds the compressed feature cache for a dataset so later
// tuning runs with the same inputs skip extraction.
func main() {
	input := flag.String("in", "", "labelled positions (csv, tsv or epd)")
	output := flag.String("out", "", "feature cache file to write")
	schemaPath := flag.String("schema", "", "parameter source")
	backend := flag.String("backend", features.BackendReference, `feature backend: "reference" or "bridge"`)
	bridgeCmd := flag.String("bridge-cmd", "", "command line of the bridge process")
	maxRows := flag.Int("max", 0, "Maximum rows to convert (0 = all)")
	tables := flag.Bool("tune-tables", false, "include table columns")
	flag.Parse()

	if *input == "" || *output == "" || *schemaPath == "" {
		fmt.Println("Usage: convert -in <positions.csv> -schema <eval.c> -out <features.zst>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log, _ := config.NewLogger(os.Stderr, "info", false)

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output directory")
	}
	s, err := schema.ParseFile(*schemaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("schema")
	}
	ex, err := features.New(*backend, s, *bridgeCmd, log)
	if err != nil {
		log.Fatal().Err(err).Msg("backend")
	}
	opts := dataset.Options{
		Path:      *input,
		Limit:     *maxRows,
		Columns:   s.Columns(*tables),
		CachePath: *output,
	}
	m, stats, err := dataset.Build(context.Background(), opts, s, ex, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conversion failed")
	}
	cached, _, field, err := dataset.ReadCache(*output, opts.Key(s, ex))
	if err != nil || cached == nil {
		log.Fatal().Err(err).Str("mismatch", field).Msg("cache not written")
	}
	log.Info().Int("positions", m.Len()).Int("skipped", stats.Skipped).Str("out", *output).Msg("conversion complete")
}
