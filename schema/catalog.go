// schema/catalog.go
package schema

// Kind is the storage shape of a tunable feature.
type Kind int

const (
	Scalar Kind = iota
	Vector
	Table
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Vector:
		return "vector"
	case Table:
		return "table"
	}
	return "unknown"
}

// Phase is the game phase(s) a feature contributes to.
type Phase int

const (
	Midgame Phase = iota
	Endgame
	Both
)

func (p Phase) String() string {
	switch p {
	case Midgame:
		return "mg"
	case Endgame:
		return "eg"
	case Both:
		return "both"
	}
	return "unknown"
}

// TablePart selects which half of the material+offset split a table feature covers.
type TablePart int

const (
	NoPart TablePart = iota
	Material
	Positional
)

// Piece order used by every table and per-piece vector.
const (
	Pawn = iota
	Knight
	Bishop
	Rook
	Queen
	King
	NumPieces
)

// PhaseMax is the phase of a full board; phase 24 is pure midgame.
const PhaseMax = 24

// Feature is one named tunable term.
type Feature struct {
	Name   string
	Kind   Kind
	Phase  Phase
	Symbol string // declaration holding the base value(s)
	Len    int    // number of base values; 1 for scalars and material anchors, 64 for PST offsets
	Piece  int    // table features only
	Part   TablePart
}

// Table symbols and optional material anchors.
const (
	SymbolMGTable     = "mg_table"
	SymbolEGTable     = "eg_table"
	SymbolPhaseWeight = "phase_weight"
	SymbolMaterialMG  = "material_mg"
	SymbolMaterialEG  = "material_eg"
)

var pieceNames = [NumPieces]string{"pawn", "knight", "bishop", "rook", "queen", "king"}

// PESTO material anchors; the tables in the parameter source are material + PST.
var (
	defaultMaterialMG = [NumPieces]int{82, 337, 365, 477, 1025, 0}
	defaultMaterialEG = [NumPieces]int{94, 281, 297, 512, 936, 0}
)

// PieceName returns the lower-case name used in feature and column names.
func PieceName(piece int) string { return pieceNames[piece] }

// DefaultMaterial returns the material anchors used when the source does not declare its own.
func DefaultMaterial(phase Phase) [NumPieces]int {
	if phase == Endgame {
		return defaultMaterialEG
	}
	return defaultMaterialMG
}

var catalog = buildCatalog()

func buildCatalog() []Feature {
	fs := []Feature{
		{Name: "bishop_pair_mg", Kind: Scalar, Phase: Midgame, Symbol: "BISHOP_PAIR_MG", Len: 1},
		{Name: "bishop_pair_eg", Kind: Scalar, Phase: Endgame, Symbol: "BISHOP_PAIR_EG", Len: 1},
		{Name: "tempo_mg", Kind: Scalar, Phase: Midgame, Symbol: "TEMPO_MG", Len: 1},
		{Name: "tempo_eg", Kind: Scalar, Phase: Endgame, Symbol: "TEMPO_EG", Len: 1},
		{Name: "doubled_mg", Kind: Scalar, Phase: Midgame, Symbol: "DOUBLED_MG", Len: 1},
		{Name: "doubled_eg", Kind: Scalar, Phase: Endgame, Symbol: "DOUBLED_EG", Len: 1},
		{Name: "isolated_mg", Kind: Scalar, Phase: Midgame, Symbol: "ISOLATED_MG", Len: 1},
		{Name: "isolated_eg", Kind: Scalar, Phase: Endgame, Symbol: "ISOLATED_EG", Len: 1},
		{Name: "connected", Kind: Vector, Phase: Both, Symbol: "connected_bonus", Len: 7},
		{Name: "passed_mg", Kind: Vector, Phase: Midgame, Symbol: "passed_mg", Len: 6},
		{Name: "passed_eg", Kind: Vector, Phase: Endgame, Symbol: "passed_eg", Len: 6},
		{Name: "rook_open_mg", Kind: Scalar, Phase: Midgame, Symbol: "ROOK_OPEN_MG", Len: 1},
		{Name: "rook_open_eg", Kind: Scalar, Phase: Endgame, Symbol: "ROOK_OPEN_EG", Len: 1},
		{Name: "rook_semiopen_mg", Kind: Scalar, Phase: Midgame, Symbol: "ROOK_SEMIOPEN_MG", Len: 1},
		{Name: "rook_semiopen_eg", Kind: Scalar, Phase: Endgame, Symbol: "ROOK_SEMIOPEN_EG", Len: 1},
		{Name: "shield_mg", Kind: Scalar, Phase: Midgame, Symbol: "SHIELD_MG", Len: 1},
		{Name: "shield_eg", Kind: Scalar, Phase: Endgame, Symbol: "SHIELD_EG", Len: 1},
		{Name: "knight_mob_mg", Kind: Vector, Phase: Midgame, Symbol: "knight_mob_mg", Len: 9},
		{Name: "knight_mob_eg", Kind: Vector, Phase: Endgame, Symbol: "knight_mob_eg", Len: 9},
		{Name: "bishop_mob_mg", Kind: Vector, Phase: Midgame, Symbol: "bishop_mob_mg", Len: 14},
		{Name: "bishop_mob_eg", Kind: Vector, Phase: Endgame, Symbol: "bishop_mob_eg", Len: 14},
	}
	// The king has no material value, so only its positional part is a feature.
	for p := Pawn; p < NumPieces; p++ {
		for _, ph := range []Phase{Midgame, Endgame} {
			sym := SymbolMGTable
			if ph == Endgame {
				sym = SymbolEGTable
			}
			if p != King {
				fs = append(fs, Feature{
					Name: TableFeatureName(Material, p, ph), Kind: Table, Phase: ph,
					Symbol: sym, Len: 1, Piece: p, Part: Material,
				})
			}
			fs = append(fs, Feature{
				Name: TableFeatureName(Positional, p, ph), Kind: Table, Phase: ph,
				Symbol: sym, Len: 64, Piece: p, Part: Positional,
			})
		}
	}
	return fs
}

// TableFeatureName builds "material_<piece>_<phase>" or "pst_<piece>_<phase>".
func TableFeatureName(part TablePart, piece int, phase Phase) string {
	prefix := "pst_"
	if part == Material {
		prefix = "material_"
	}
	return prefix + pieceNames[piece] + "_" + phase.String()
}

// Catalog returns a copy of the declared feature list in column order.
func Catalog() []Feature {
	out := make([]Feature, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a catalog feature by name.
func Lookup(name string) (Feature, bool) {
	for _, f := range catalog {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}
