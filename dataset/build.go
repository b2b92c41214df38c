package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"chess-tuner/features"
	"chess-tuner/schema"
)

// Options select what Build loads and how it caches.
type Options struct {
	Path      string
	Limit     int
	Columns   []string
	CachePath string // empty disables the cache
}

// Key returns the cache key for these options.
func (o Options) Key(s *schema.Schema, ex features.Extractor) CacheKey {
	path := o.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return CacheKey{
		Version:      cacheVersion,
		Dataset:      path,
		Limit:        o.Limit,
		Columns:      append([]string(nil), o.Columns...),
		SchemaDigest: s.Digest(),
		Backend:      ex.Identity(),
	}
}

// Build returns the feature matrix for the dataset, from the cache when the
// cache was built from identical inputs and by extraction otherwise.
func Build(ctx context.Context, o Options, s *schema.Schema, ex features.Extractor, log zerolog.Logger) (*features.Matrix, Stats, error) {
	key := o.Key(s, ex)
	if o.CachePath != "" {
		m, st, field, err := ReadCache(o.CachePath, key)
		switch {
		case err == nil && m != nil:
			log.Info().Str("cache", o.CachePath).Int("positions", m.Len()).Msg("feature cache hit")
			return m, st, nil
		case err == nil:
			log.Info().Str("cache", o.CachePath).Str("mismatch", field).Msg("feature cache stale, rebuilding")
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("cache", o.CachePath).Msg("no feature cache")
		default:
			log.Warn().Err(err).Str("cache", o.CachePath).Msg("feature cache unreadable, rebuilding")
		}
	}

	fens, labels, st, err := Load(o.Path, o.Limit)
	if err != nil {
		return nil, st, err
	}
	log.Info().Str("dataset", o.Path).Int("loaded", st.Loaded).Int("skipped", st.Skipped).Msg("dataset loaded")
	if len(fens) == 0 {
		return nil, st, fmt.Errorf("%s: no valid positions", o.Path)
	}

	start := time.Now()
	rows, err := ex.Extract(ctx, fens)
	if err != nil {
		return nil, st, err
	}
	m, err := features.Assemble(rows, labels, o.Columns)
	if err != nil {
		return nil, st, err
	}
	if dropped := len(fens) - m.Len(); dropped > 0 {
		st.Skipped += dropped
		st.Loaded = m.Len()
		log.Warn().Int("dropped", dropped).Msg("positions rejected by extractor")
	}
	if m.Len() == 0 {
		return nil, st, fmt.Errorf("%s: no positions survived extraction", o.Path)
	}
	log.Info().
		Str("backend", ex.Identity()).
		Int("rows", m.Len()).
		Int("columns", len(o.Columns)).
		Dur("took", time.Since(start)).
		Msg("features extracted")

	if o.CachePath != "" {
		if err := WriteCache(o.CachePath, key, st, m); err != nil {
			log.Warn().Err(err).Str("cache", o.CachePath).Msg("could not write feature cache")
		}
	}
	return m, st, nil
}
