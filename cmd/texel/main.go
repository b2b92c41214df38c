// cmd/texel/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"

	"chess-tuner/config"
	"chess-tuner/dataset"
	"chess-tuner/features"
	"chess-tuner/schema"
	"chess-tuner/tuner"
)

func main() {
	cfg, err := config.Parse("texel", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "texel:", err)
		os.Exit(2)
	}
	log, err := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, "texel:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("tuning failed")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Tune, log zerolog.Logger) error {
	s, err := schema.ParseFile(cfg.Schema)
	if err != nil {
		return err
	}
	log.Info().Str("schema", cfg.Schema).Str("digest", s.Digest()[:12]).Bool("anchors", s.HasMaterialAnchors()).Msg("schema loaded")

	ex, err := features.New(cfg.Backend, s, cfg.BridgeCmd, log)
	if err != nil {
		return err
	}

	opts := dataset.Options{
		Path:      cfg.Dataset,
		Limit:     cfg.MaxPositions,
		Columns:   s.Columns(cfg.TuneTables),
		CachePath: cfg.Cache,
	}
	m, stats, err := dataset.Build(ctx, opts, s, ex, log)
	if err != nil {
		return err
	}
	log.Info().Int("positions", m.Len()).Int("skipped", stats.Skipped).Int("columns", len(m.Columns)).Msg("feature matrix ready")

	res, err := tuner.Train(ctx, m, cfg.Train, log, nil)
	if err != nil {
		return err
	}

	rec := tuner.NewRecord(res, s, tuner.Provenance{
		Dataset:   cfg.Dataset,
		Schema:    cfg.Schema,
		Backend:   ex.Identity(),
		Positions: m.Len(),
		Skipped:   stats.Skipped,
	}, cfg.Train)
	if dir := filepath.Dir(cfg.Out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := tuner.SaveRecord(cfg.Out, rec); err != nil {
		return err
	}
	log.Info().Str("out", cfg.Out).Str("run_id", rec.RunID).Float64("k", rec.K).
		Float64("best_val_mse", rec.Diagnostics.BestValMSE).Int("best_iter", rec.Diagnostics.BestIter).
		Msg("record saved")
	return nil
}
