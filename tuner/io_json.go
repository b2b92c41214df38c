// tuner/io_json.go
package tuner

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"chess-tuner/schema"
)

// RecordLayout tags the JSON layout written by SaveRecord.
const RecordLayout = "texel_scales_v1"

// FeatureBase is one feature with the base values the scales apply to.
type FeatureBase struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Phase  string `json:"phase"`
	Symbol string `json:"symbol"`
	Piece  *int   `json:"piece,omitempty"`
	Part   string `json:"part,omitempty"`
	Base   []int  `json:"base"`
}

// BaseTables are the combined tables and material anchors at tuning time.
type BaseTables struct {
	MG         [schema.NumPieces][64]int `json:"mg"`
	EG         [schema.NumPieces][64]int `json:"eg"`
	MaterialMG [schema.NumPieces]int     `json:"material_mg"`
	MaterialEG [schema.NumPieces]int     `json:"material_eg"`
	Declared   bool                      `json:"anchors_declared"`
}

// Provenance records where a fit came from.
type Provenance struct {
	Dataset      string `json:"dataset"`
	Schema       string `json:"schema"`
	SchemaDigest string `json:"schema_digest"`
	Backend      string `json:"backend"`
	Seed         int64  `json:"seed"`
	Positions    int    `json:"positions"`
	Skipped      int    `json:"skipped"`
}

// KSearch echoes the slope search bounds.
type KSearch struct {
	KMin  float64 `json:"k_min"`
	KMax  float64 `json:"k_max"`
	Iters int     `json:"iters"`
}

// Diagnostics summarise the fit.
type Diagnostics struct {
	NumPositions    int          `json:"num_positions"`
	NumTrain        int          `json:"num_train"`
	NumVal          int          `json:"num_val"`
	InitialTrainMSE float64      `json:"initial_train_mse"`
	InitialValMSE   float64      `json:"initial_val_mse"`
	BestTrainMSE    float64      `json:"best_train_mse"`
	BestValMSE      float64      `json:"best_val_mse"`
	BestIter        int          `json:"best_iter"`
	KMethod         string       `json:"k_method"`
	KSearch         KSearch      `json:"k_search"`
	Checkpoints     []Checkpoint `json:"checkpoints"`
}

// Record is the fitted-parameter file. It carries everything the writer
// needs, so a record can be applied without the dataset.
type Record struct {
	Layout      string             `json:"layout"`
	RunID       string             `json:"run_id"`
	Created     time.Time          `json:"created"`
	K           float64            `json:"k"`
	Scales      map[string]float64 `json:"scales"`
	ParamOrder  []string           `json:"param_order"`
	Features    []FeatureBase      `json:"features"`
	BaseTables  BaseTables         `json:"base_tables"`
	Provenance  Provenance         `json:"provenance"`
	Diagnostics Diagnostics        `json:"diagnostics"`
	Config      Config             `json:"config"`
}

// NewRecord packages a training result with the schema bases it was fitted against.
func NewRecord(res *Result, s *schema.Schema, prov Provenance, cfg Config) *Record {
	rec := &Record{
		Layout:     RecordLayout,
		RunID:      uuid.New().String(),
		Created:    time.Now().UTC(),
		K:          res.K,
		Scales:     make(map[string]float64, len(res.Columns)),
		ParamOrder: append([]string(nil), res.Columns...),
		Provenance: prov,
		Config:     cfg,
		Diagnostics: Diagnostics{
			NumPositions:    res.NumPositions,
			NumTrain:        res.NumTrain,
			NumVal:          res.NumVal,
			InitialTrainMSE: res.InitialTrainMSE,
			InitialValMSE:   res.InitialValMSE,
			BestTrainMSE:    res.BestTrainMSE,
			BestValMSE:      res.BestValMSE,
			BestIter:        res.BestIter,
			KMethod:         res.KMethod,
			KSearch:         KSearch{KMin: cfg.KMin, KMax: cfg.KMax, Iters: cfg.KSearchIters},
			Checkpoints:     res.Checkpoints,
		},
	}
	rec.Provenance.SchemaDigest = s.Digest()
	rec.Provenance.Seed = cfg.Seed
	for i, name := range res.Columns {
		rec.Scales[name] = res.Scales[i]
	}
	for _, f := range s.Features() {
		fb := FeatureBase{
			Name:   f.Name,
			Kind:   f.Kind.String(),
			Phase:  f.Phase.String(),
			Symbol: f.Symbol,
			Base:   s.Base(f.Name),
		}
		if f.Kind == schema.Table {
			piece := f.Piece
			fb.Piece = &piece
			fb.Part = "positional"
			if f.Part == schema.Material {
				fb.Part = "material"
			}
		}
		rec.Features = append(rec.Features, fb)
	}
	rec.BaseTables = BaseTables{
		MG:       s.Table(schema.Midgame),
		EG:       s.Table(schema.Endgame),
		Declared: s.HasMaterialAnchors(),
	}
	for p := 0; p < schema.NumPieces; p++ {
		rec.BaseTables.MaterialMG[p] = s.Material(p, schema.Midgame)
		rec.BaseTables.MaterialEG[p] = s.Material(p, schema.Endgame)
	}
	return rec
}

// Feature finds a feature entry by name.
func (r *Record) Feature(name string) (FeatureBase, bool) {
	for _, f := range r.Features {
		if f.Name == name {
			return f, true
		}
	}
	return FeatureBase{}, false
}

// SaveRecord writes rec as indented JSON via a temporary file and rename.
func SaveRecord(path string, rec *Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadRecord reads a record written by SaveRecord.
func LoadRecord(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rec.Layout != RecordLayout {
		return nil, fmt.Errorf("%s: unsupported layout %q", path, rec.Layout)
	}
	return &rec, nil
}
