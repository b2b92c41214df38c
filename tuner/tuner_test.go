package tuner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chess-tuner/dataset"
	"chess-tuner/features"
	"chess-tuner/schema"
)

// synthMatrix builds a one-column matrix whose labels are exactly
// sigmoid(c * sTrue * x), so the fit is realizable.
func synthMatrix(xs []float64, c, sTrue float64) *features.Matrix {
	m := &features.Matrix{Columns: []string{"tempo_mg"}}
	for i, x := range xs {
		side := 1
		if i%2 == 1 {
			side = -1
		}
		m.MGBase = append(m.MGBase, 0)
		m.EGBase = append(m.EGBase, 0)
		m.Phase = append(m.Phase, 24-i%25)
		m.SideSign = append(m.SideSign, side)
		m.MG = append(m.MG, []float64{x})
		m.EG = append(m.EG, []float64{x})
		m.Labels = append(m.Labels, sigmoid(c*sTrue*float64(side)*x))
	}
	return m
}

var synthXs = []float64{-260, -180, -90, -40, 30, 75, 140, 210, 320, -350}

func TestGoldenSection(t *testing.T) {
	got := GoldenSection(func(x float64) float64 { return (x - 0.3) * (x - 0.3) }, 0, 1, 60)
	if math.Abs(got-0.3) > 1e-6 {
		t.Fatalf("GoldenSection = %v, want 0.3", got)
	}
	got = GoldenSection(func(x float64) float64 { return -x }, 0.1, 2, 60)
	if math.Abs(got-2) > 1e-6 {
		t.Fatalf("monotone f should converge to upper bound, got %v", got)
	}
}

func TestSplit(t *testing.T) {
	tr, va, err := Split(10, 0.25, 42)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(va) != 2 || len(tr) != 8 {
		t.Fatalf("round half to even: got %d/%d", len(tr), len(va))
	}
	tr2, va2, _ := Split(10, 0.25, 42)
	for i := range tr {
		if tr[i] != tr2[i] {
			t.Fatalf("same seed gave different split")
		}
	}
	for i := range va {
		if va[i] != va2[i] {
			t.Fatalf("same seed gave different split")
		}
	}
	seen := map[int]bool{}
	for _, i := range append(tr, va...) {
		seen[i] = true
	}
	if len(seen) != 10 {
		t.Fatalf("split is not a partition")
	}

	if _, va, _ := Split(5, 0, 1); len(va) != 1 {
		t.Fatalf("val_frac 0 should still hold out one row")
	}
	var se *SplitError
	if _, _, err := Split(1, 0.1, 1); !errors.As(err, &se) {
		t.Fatalf("expected SplitError, got %v", err)
	}
	if _, _, err := Split(4, 0.9, 1); !errors.As(err, &se) {
		t.Fatalf("expected SplitError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cases := []struct {
		field string
		edit  func(*Config)
	}{
		{"k_min", func(c *Config) { c.KMin = 0 }},
		{"k_max", func(c *Config) { c.KMax = c.KMin }},
		{"scale_max", func(c *Config) { c.ScaleMin, c.ScaleMax = 2, 1 }},
		{"val_frac", func(c *Config) { c.ValFrac = 1 }},
		{"val_frac", func(c *Config) { c.ValFrac = -0.1 }},
		{"iters", func(c *Config) { c.Iters = 0 }},
		{"lr", func(c *Config) { c.LR = 0 }},
		{"l2", func(c *Config) { c.L2 = -1 }},
	}
	for _, c := range cases {
		cfg := DefaultConfig()
		c.edit(&cfg)
		var ce *ConfigError
		if err := cfg.Validate(); !errors.As(err, &ce) || ce.Field != c.field {
			t.Fatalf("%s: expected ConfigError, got %v", c.field, err)
		}
		// rejected before the (nil) matrix is touched
		if _, err := Train(context.Background(), nil, cfg, zerolog.Nop(), nil); !errors.As(err, &ce) {
			t.Fatalf("%s: Train should fail with ConfigError, got %v", c.field, err)
		}
	}
}

func TestAdamUpdatesZeroGradient(t *testing.T) {
	opt := NewAdam(2, 0.1)
	p := []float64{1, 1}
	opt.Step(p, []float64{1, 0})
	if p[1] != 1 {
		t.Fatalf("parameter with no history moved: %v", p[1])
	}
	if math.Abs(p[0]-0.9) > 1e-6 {
		t.Fatalf("first Adam step should move by lr, got %v", p[0])
	}
	before := p[0]
	opt.Step(p, []float64{0, 0})
	if p[0] >= before {
		t.Fatalf("momentum should keep moving a zero-gradient parameter: %v -> %v", before, p[0])
	}
}

func TestRecoverScaleFixedK(t *testing.T) {
	const c, sTrue = 0.01, 1.5
	m := synthMatrix(synthXs, c, sTrue)
	cfg := DefaultConfig()
	cfg.FixedK = c
	cfg.LR = 0.01
	cfg.Iters = 3000
	cfg.L2 = 0
	cfg.LogEvery = 1
	cfg.ValFrac = 0.2

	res, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.KMethod != KMethodFixed || res.K != c {
		t.Fatalf("fixed k not used: %v %v", res.KMethod, res.K)
	}
	if got := res.Scales[0]; math.Abs(got-sTrue)/sTrue > 0.01 {
		t.Fatalf("recovered scale %v, want %v within 1%%", got, sTrue)
	}
	if res.BestValMSE > res.InitialValMSE {
		t.Fatalf("best val MSE %v worse than initial %v", res.BestValMSE, res.InitialValMSE)
	}
}

// Colour-symmetric positions with full material: every term but tempo cancels.
var symmetricFENs = []string{
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
	"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1",
	"rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2",
	"rnbqkb1r/pppppppp/5n2/8/8/5N2/PPPPPPPP/RNBQKB1R w KQkq - 2 2",
}

func TestEndToEndFourPositions(t *testing.T) {
	// Labels come from a slope above k_max, so the search settles on k_max
	// and the optimum scale is kTrue*sTrue/k.
	const kTrue, sTrue = 0.015, 2.0
	columns := []string{"tempo_mg"}

	s, err := schema.ParseFile("../testdata/eval.c")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	ref, err := features.NewReference(s, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewReference: %v", err)
	}
	rows, err := ref.Extract(context.Background(), symmetricFENs)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	unit, err := features.Assemble(rows, make([]float64, len(rows)), columns)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	var csv strings.Builder
	csv.WriteString("fen,label\n")
	grad := make([]float64, 1)
	for i, fen := range symmetricFENs {
		if base := unit.Score(i, []float64{0}); base != 0 {
			t.Fatalf("%s: folded base %v, want 0", fen, base)
		}
		unit.ScoreGrad(i, grad)
		if grad[0] <= 0 {
			t.Fatalf("%s: tempo coefficient %v", fen, grad[0])
		}
		y := sigmoid(kTrue * unit.Score(i, []float64{sTrue}))
		fmt.Fprintf(&csv, "%s,%.17g\n", fen, y)
	}
	path := filepath.Join(t.TempDir(), "four.csv")
	if err := os.WriteFile(path, []byte(csv.String()), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	m, _, err := dataset.Build(context.Background(), dataset.Options{Path: path, Columns: columns}, s, ref, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ScaleMin, cfg.ScaleMax = 0, 3
	cfg.L2 = 0
	cfg.LR = 0.01
	cfg.Iters = 3000
	cfg.LogEvery = 10

	res, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.KMethod != KMethodGolden || res.NumVal != 1 || res.NumTrain != 3 {
		t.Fatalf("method %s, split %d/%d", res.KMethod, res.NumTrain, res.NumVal)
	}
	if math.Abs(res.K-cfg.KMax)/cfg.KMax > 1e-6 {
		t.Fatalf("k = %v, want k_max %v", res.K, cfg.KMax)
	}
	want := kTrue * sTrue / res.K
	if got := res.Scales[0]; math.Abs(got-want)/want > 0.01 {
		t.Fatalf("recovered scale %v, want %v within 1%%", got, want)
	}
}

func TestStartClippedIntoBounds(t *testing.T) {
	m := synthMatrix(synthXs, 0.01, 1.3)
	cfg := DefaultConfig()
	cfg.ScaleMin, cfg.ScaleMax = 1.2, 1.5
	cfg.Iters = 5
	cfg.LogEvery = 1

	trainIdx, _, err := Split(m.Len(), cfg.ValFrac, cfg.Seed)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	res, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// The slope is still calibrated on the unscaled evaluation.
	wantK := GoldenSection(func(k float64) float64 {
		return MSE(m, trainIdx, []float64{1}, k)
	}, cfg.KMin, cfg.KMax, cfg.KSearchIters)
	if res.K != wantK {
		t.Fatalf("k = %v, want %v", res.K, wantK)
	}
	if want := MSE(m, trainIdx, []float64{cfg.ScaleMin}, res.K); res.InitialTrainMSE != want {
		t.Fatalf("initial train MSE %v, want %v at the clipped start", res.InitialTrainMSE, want)
	}
	if s := res.Scales[0]; s < cfg.ScaleMin || s > cfg.ScaleMax {
		t.Fatalf("scale %v outside bounds", s)
	}
}

func TestCalibratedSlope(t *testing.T) {
	const c, sTrue = 0.004, 2.0
	m := synthMatrix(synthXs, c, sTrue)
	cfg := DefaultConfig()
	cfg.KMin, cfg.KMax = 1e-4, 0.05
	cfg.Iters = 200
	cfg.L2 = 0
	cfg.ValFrac = 0.2

	res, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.KMethod != KMethodGolden {
		t.Fatalf("k method = %s", res.KMethod)
	}
	if math.Abs(res.K-c*sTrue)/(c*sTrue) > 0.01 {
		t.Fatalf("k = %v, want %v", res.K, c*sTrue)
	}
	if got := res.K * res.Scales[0]; math.Abs(got-c*sTrue)/(c*sTrue) > 0.01 {
		t.Fatalf("k*s = %v, want %v", got, c*sTrue)
	}
}

func TestScalesStayClipped(t *testing.T) {
	m := synthMatrix(synthXs, 0.01, 2.5)
	cfg := DefaultConfig()
	cfg.FixedK = 0.01
	cfg.ScaleMin, cfg.ScaleMax = 0.9, 1.1
	cfg.LR = 0.05
	cfg.Iters = 100

	steps := 0
	hook := func(step int, scales []float64) {
		steps++
		for _, s := range scales {
			if s < cfg.ScaleMin || s > cfg.ScaleMax {
				t.Fatalf("step %d: scale %v outside bounds", step, s)
			}
		}
	}
	res, err := Train(context.Background(), m, cfg, zerolog.Nop(), hook)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if steps != cfg.Iters {
		t.Fatalf("hook ran %d times, want %d", steps, cfg.Iters)
	}
	if res.Scales[0] != 1.1 {
		t.Fatalf("scale should sit on the upper bound, got %v", res.Scales[0])
	}
}

func TestTrainReproducible(t *testing.T) {
	m := synthMatrix(synthXs, 0.006, 1.3)
	cfg := DefaultConfig()
	cfg.Iters = 50
	cfg.LogEvery = 5
	a, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	b, err := Train(context.Background(), m, cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if a.K != b.K || a.Scales[0] != b.Scales[0] || a.BestIter != b.BestIter {
		t.Fatalf("runs differ: %+v vs %+v", a, b)
	}
	// checkpoints at 1, 5, 10, ... 50
	if len(a.Checkpoints) != 11 || a.Checkpoints[0].Iter != 1 || a.Checkpoints[10].Iter != 50 {
		t.Fatalf("unexpected checkpoints: %+v", a.Checkpoints)
	}
}

func TestTrainHonoursContext(t *testing.T) {
	m := synthMatrix(synthXs, 0.01, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Train(ctx, m, DefaultConfig(), zerolog.Nop(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	s, err := schema.ParseFile("../testdata/eval.c")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	res := &Result{
		Columns: []string{"tempo_mg", "passed_eg"},
		Scales:  []float64{1.25, 0.5},
		K:       0.0071,
		KMethod: KMethodGolden,
	}
	rec := NewRecord(res, s, Provenance{Dataset: "d.csv", Schema: "eval.c", Backend: "reference/v1"}, DefaultConfig())
	path := filepath.Join(t.TempDir(), "params.json")
	if err := SaveRecord(path, rec); err != nil {
		t.Fatalf("SaveRecord: %v", err)
	}
	got, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if got.RunID == "" || got.RunID != rec.RunID {
		t.Fatalf("run id lost")
	}
	if got.Scales["passed_eg"] != 0.5 || got.K != 0.0071 {
		t.Fatalf("scales/k lost: %+v", got.Scales)
	}
	if got.Provenance.SchemaDigest != s.Digest() || got.Provenance.Seed != 42 {
		t.Fatalf("provenance incomplete: %+v", got.Provenance)
	}
	f, ok := got.Feature("passed_eg")
	if !ok || len(f.Base) != 6 || f.Base[5] != 229 {
		t.Fatalf("feature bases lost: %+v", f)
	}
	pf, ok := got.Feature("pst_knight_eg")
	if !ok || pf.Piece == nil || *pf.Piece != schema.Knight || pf.Part != "positional" || len(pf.Base) != 64 {
		t.Fatalf("table feature entry wrong: %+v", pf)
	}
	if got.BaseTables.MaterialMG[schema.Queen] != 1025 || got.BaseTables.Declared {
		t.Fatalf("base tables wrong")
	}
}
