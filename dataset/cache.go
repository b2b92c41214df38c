package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"

	"chess-tuner/features"
)

// cacheVersion changes whenever the cached layout or extraction semantics do.
const cacheVersion = 1

// CacheKey identifies the inputs a cached matrix was built from.
type CacheKey struct {
	Version      int      `json:"version"`
	Dataset      string   `json:"dataset"`
	Limit        int      `json:"limit"`
	Columns      []string `json:"columns"`
	SchemaDigest string   `json:"schema_digest"`
	Backend      string   `json:"backend"`
}

// mismatch names the first field that differs, or "" when the keys agree.
func (k CacheKey) mismatch(o CacheKey) string {
	switch {
	case k.Version != o.Version:
		return "version"
	case k.Dataset != o.Dataset:
		return "dataset"
	case k.Limit != o.Limit:
		return "limit"
	case !slices.Equal(k.Columns, o.Columns):
		return "columns"
	case k.SchemaDigest != o.SchemaDigest:
		return "schema"
	case k.Backend != o.Backend:
		return "backend"
	}
	return ""
}

type cacheFile struct {
	Key    CacheKey         `json:"key"`
	Stats  Stats            `json:"stats"`
	Matrix *features.Matrix `json:"matrix"`
}

// ReadCache returns the cached matrix if its key equals want. A stale cache
// returns a nil matrix and the name of the differing field.
func ReadCache(path string, want CacheKey) (*features.Matrix, Stats, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, "", err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, Stats{}, "", err
	}
	defer dec.Close()

	var cf cacheFile
	if err := json.NewDecoder(dec).Decode(&cf); err != nil {
		return nil, Stats{}, "", fmt.Errorf("decode cache: %w", err)
	}
	if field := want.mismatch(cf.Key); field != "" {
		return nil, Stats{}, field, nil
	}
	if cf.Matrix == nil || !slices.Equal(cf.Matrix.Columns, want.Columns) {
		return nil, Stats{}, "", fmt.Errorf("cache holds no usable matrix")
	}
	return cf.Matrix, cf.Stats, "", nil
}

// WriteCache stores m under key, replacing any previous cache atomically.
func WriteCache(path string, key CacheKey, st Stats, m *features.Matrix) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(cacheFile{Key: key, Stats: st, Matrix: m}); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
