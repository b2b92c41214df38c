package writer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chess-tuner/schema"
	"chess-tuner/tuner"
)

func readSource(t *testing.T) []byte {
	t.Helper()
	src, err := os.ReadFile("../testdata/eval.c")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return src
}

func record(t *testing.T, src []byte, scales map[string]float64) *tuner.Record {
	t.Helper()
	s, err := schema.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res := &tuner.Result{K: 0.01, KMethod: tuner.KMethodFixed}
	for name, v := range scales {
		res.Columns = append(res.Columns, name)
		res.Scales = append(res.Scales, v)
	}
	return tuner.NewRecord(res, s, tuner.Provenance{Dataset: "test"}, tuner.DefaultConfig())
}

func TestApplyScalarsAndVectors(t *testing.T) {
	src := readSource(t)
	rec := record(t, src, map[string]float64{
		"tempo_mg":  1.25,
		"tempo_eg":  1.5,
		"passed_eg": 2,
	})
	out, changes, err := Apply(rec, src, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s, err := schema.Parse(out)
	if err != nil {
		t.Fatalf("Parse output: %v", err)
	}
	// 12.5 and 13.5 round half to even.
	if got := s.Value("TEMPO_MG", 0); got != 12 {
		t.Fatalf("TEMPO_MG = %d, want 12", got)
	}
	if got := s.Value("TEMPO_EG", 0); got != 14 {
		t.Fatalf("TEMPO_EG = %d, want 14", got)
	}
	want := []int{26, 54, 80, 134, 270, 458}
	for i, w := range want {
		if got := s.Value("passed_eg", i); got != w {
			t.Fatalf("passed_eg[%d] = %d, want %d", i, got, w)
		}
	}
	if got := s.Value("DOUBLED_MG", 0); got != 12 {
		t.Fatalf("untuned DOUBLED_MG changed to %d", got)
	}
	if len(changes) != 2+len(want) {
		t.Fatalf("got %d changes, want %d", len(changes), 2+len(want))
	}
	for _, c := range changes {
		if c.Symbol == "TEMPO_MG" && (c.Old != 10 || c.New != 12 || c.Base != 10) {
			t.Fatalf("TEMPO_MG change = %+v", c)
		}
	}
}

func TestApplyIdempotent(t *testing.T) {
	src := readSource(t)
	scales := map[string]float64{"bishop_pair_eg": 0.8, "knight_mob_mg": 1.3}
	for _, f := range schema.Catalog() {
		if f.Kind == schema.Table {
			scales[f.Name] = 1.1
		}
	}
	rec := record(t, src, scales)
	once, _, err := Apply(rec, src, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	twice, changes, err := Apply(rec, once, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Fatalf("second application changed the source")
	}
	for _, c := range changes {
		if c.Old != c.New {
			t.Fatalf("second application reported a real change: %+v", c)
		}
	}
}

func TestApplyTables(t *testing.T) {
	src := readSource(t)
	base, _ := schema.Parse(src)
	rec := record(t, src, map[string]float64{
		"material_knight_mg": 2,
		"pst_knight_mg":      1,
	})
	var buf bytes.Buffer
	out, _, err := Apply(rec, src, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s, err := schema.Parse(out)
	if err != nil {
		t.Fatalf("Parse output: %v", err)
	}
	before, after := base.Table(schema.Midgame), s.Table(schema.Midgame)
	for sq := 0; sq < 64; sq++ {
		if after[schema.Knight][sq] != before[schema.Knight][sq]+337 {
			t.Fatalf("knight sq %d = %d, want %d", sq, after[schema.Knight][sq], before[schema.Knight][sq]+337)
		}
		if after[schema.Rook][sq] != before[schema.Rook][sq] {
			t.Fatalf("rook sq %d changed", sq)
		}
	}
	if s.Table(schema.Endgame) != base.Table(schema.Endgame) {
		t.Fatalf("endgame table changed")
	}
	if !strings.Contains(buf.String(), "no material anchors") {
		t.Fatalf("missing anchor log, got %q", buf.String())
	}
}

func TestApplyAnchors(t *testing.T) {
	src := append(readSource(t), []byte(`
const int16_t material_mg[6] = { 82, 337, 365, 477, 1025, 0 };
const int16_t material_eg[6] = { 94, 281, 297, 512, 936, 0 };
`)...)
	rec := record(t, src, map[string]float64{
		"material_pawn_eg": 1.5,
		"pst_pawn_eg":      1,
	})
	out, _, err := Apply(rec, src, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, err := schema.Values(out, schema.SymbolMaterialEG)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	want := []int{141, 281, 297, 512, 936, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("material_eg = %v, want %v", got, want)
		}
	}
	mg, _ := schema.Values(out, schema.SymbolMaterialMG)
	if mg[1] != 337 {
		t.Fatalf("material_mg = %v", mg)
	}
}

func TestApplyMergedFallback(t *testing.T) {
	src := readSource(t)
	rec := record(t, src, map[string]float64{"shield_mg": 3})
	merged := strings.Replace(string(src), "#define SHIELD_MG  6\n#define SHIELD_EG   0", "#define SHIELD  6", 1)
	if merged == string(src) {
		t.Fatalf("fixture layout changed")
	}
	var buf bytes.Buffer
	out, _, err := Apply(rec, []byte(merged), zerolog.New(&buf))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// shield_mg 6*3 = 18, shield_eg untuned 0; averaged to 9.
	got, err := schema.Values(out, "SHIELD")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if got[0] != 9 {
		t.Fatalf("SHIELD = %d, want 9", got[0])
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("merge fallback was not logged: %q", buf.String())
	}
}

func TestApplyMissingSymbol(t *testing.T) {
	src := readSource(t)
	rec := record(t, src, map[string]float64{"tempo_mg": 1.2})
	broken := []byte(strings.Replace(string(src), "#define TEMPO_MG", "#define TEMPO_XX", 1))
	_, _, err := Apply(rec, broken, zerolog.Nop())
	var pe *schema.PatternNotFoundError
	if !errors.As(err, &pe) || pe.Symbol != "TEMPO_MG" {
		t.Fatalf("err = %v, want PatternNotFoundError for TEMPO_MG", err)
	}
}

func TestWriteFileReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval.c")
	if err := os.WriteFile(path, []byte("#define TEMPO_MG 10\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, []byte("#define TEMPO_MG 12\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "#define TEMPO_MG 12\n" {
		t.Fatalf("content = %q, %v", got, err)
	}
	fi, err := os.Stat(path)
	if err != nil || fi.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, %v", fi.Mode(), err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %d entries", len(entries))
	}

	// A failed write leaves the target untouched.
	if err := WriteFile(filepath.Join(dir, "missing", "eval.c"), []byte("x")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
	if got, _ := os.ReadFile(path); string(got) != "#define TEMPO_MG 12\n" {
		t.Fatalf("target changed to %q", got)
	}
}
