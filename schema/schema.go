// schema/schema.go
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"golang.org/x/exp/slices"
)

// Schema holds the base values of every catalog feature as read from a parameter source.
type Schema struct {
	features []Feature

	values      map[string][]int // by symbol, scalars and vectors
	tables      [2][NumPieces][64]int
	material    [2][NumPieces]int
	phaseWeight [NumPieces]int
	anchors     bool

	digest string
}

// ParseFile reads and parses a parameter source from disk.
func ParseFile(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse extracts every catalog feature plus the structural arrays from src.
func Parse(src []byte) (*Schema, error) {
	masked := maskComments(src)
	s := &Schema{
		features: Catalog(),
		values:   make(map[string][]int),
	}

	for _, f := range s.features {
		if f.Kind == Table {
			continue
		}
		d, err := lookup(masked, f.Symbol)
		if err != nil {
			if mf, ok := err.(*MissingFeatureError); ok {
				mf.Feature = f.Name
			}
			return nil, err
		}
		if len(d.values) != f.Len {
			return nil, &ShapeError{Symbol: f.Symbol, Want: f.Len, Got: len(d.values)}
		}
		s.values[f.Symbol] = d.values
	}

	for ph, sym := range []string{SymbolMGTable, SymbolEGTable} {
		d, err := lookup(masked, sym)
		if err != nil {
			return nil, err
		}
		if len(d.values) != NumPieces*64 {
			return nil, &ShapeError{Symbol: sym, Want: NumPieces * 64, Got: len(d.values)}
		}
		for i, v := range d.values {
			s.tables[ph][i/64][i%64] = v
		}
	}

	d, err := lookup(masked, SymbolPhaseWeight)
	if err != nil {
		return nil, err
	}
	if len(d.values) != NumPieces {
		return nil, &ShapeError{Symbol: SymbolPhaseWeight, Want: NumPieces, Got: len(d.values)}
	}
	copy(s.phaseWeight[:], d.values)

	// Material anchors are optional; both or neither.
	s.material[0] = DefaultMaterial(Midgame)
	s.material[1] = DefaultMaterial(Endgame)
	mgHas, egHas := Has(src, SymbolMaterialMG), Has(src, SymbolMaterialEG)
	if mgHas != egHas {
		return nil, &SchemaParseError{Symbol: SymbolMaterialMG, Reason: "material anchors must be declared for both phases"}
	}
	if mgHas {
		for ph, sym := range []string{SymbolMaterialMG, SymbolMaterialEG} {
			d, err := lookup(masked, sym)
			if err != nil {
				return nil, err
			}
			if len(d.values) != NumPieces {
				return nil, &ShapeError{Symbol: sym, Want: NumPieces, Got: len(d.values)}
			}
			copy(s.material[ph][:], d.values)
		}
		s.anchors = true
	}

	s.digest = s.computeDigest()
	return s, nil
}

func phaseIndex(ph Phase) int {
	if ph == Endgame {
		return 1
	}
	return 0
}

// Features returns the feature list in column order.
func (s *Schema) Features() []Feature {
	return slices.Clone(s.features)
}

// Feature looks up one feature by name.
func (s *Schema) Feature(name string) (Feature, bool) {
	i := slices.IndexFunc(s.features, func(f Feature) bool { return f.Name == name })
	if i < 0 {
		return Feature{}, false
	}
	return s.features[i], true
}

// Columns returns the names of the trainable columns. Table features are
// included only when tables is set.
func (s *Schema) Columns(tables bool) []string {
	var out []string
	for _, f := range s.features {
		if f.Kind == Table && !tables {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

// Base returns a copy of the base values of a feature. For table features the
// material part is the single anchor and the positional part the 64 offsets.
func (s *Schema) Base(name string) []int {
	f, ok := s.Feature(name)
	if !ok {
		return nil
	}
	if f.Kind != Table {
		return slices.Clone(s.values[f.Symbol])
	}
	if f.Part == Material {
		return []int{s.Material(f.Piece, f.Phase)}
	}
	off := s.Offset(f.Piece, f.Phase)
	return off[:]
}

// Value returns the scalar base of a #define or a vector element.
func (s *Schema) Value(symbol string, i int) int { return s.values[symbol][i] }

// Table returns the combined material+PST table for a phase.
func (s *Schema) Table(ph Phase) [NumPieces][64]int { return s.tables[phaseIndex(ph)] }

// Material returns the material anchor of a piece.
func (s *Schema) Material(piece int, ph Phase) int { return s.material[phaseIndex(ph)][piece] }

// Offset returns the positional part of a piece's table: table - material.
func (s *Schema) Offset(piece int, ph Phase) [64]int {
	var out [64]int
	m := s.Material(piece, ph)
	for sq, v := range s.tables[phaseIndex(ph)][piece] {
		out[sq] = v - m
	}
	return out
}

// PhaseWeights returns the per-piece phase contributions.
func (s *Schema) PhaseWeights() [NumPieces]int { return s.phaseWeight }

// HasMaterialAnchors reports whether the source declares material_mg/material_eg.
func (s *Schema) HasMaterialAnchors() bool { return s.anchors }

// Digest identifies the feature names and every parsed base value.
func (s *Schema) Digest() string { return s.digest }

func (s *Schema) computeDigest() string {
	h := sha256.New()
	for _, f := range s.features {
		fmt.Fprintf(h, "%s:", f.Name)
		if f.Kind != Table {
			fmt.Fprintln(h, s.values[f.Symbol])
		} else {
			fmt.Fprintln(h)
		}
	}
	fmt.Fprintln(h, s.tables)
	fmt.Fprintln(h, s.material, s.anchors)
	fmt.Fprintln(h, s.phaseWeight)
	return hex.EncodeToString(h.Sum(nil))
}
