package evaluator

import (
	"strconv"

	"chess-tuner/schema"
)

// Terms is the per-term breakdown of one evaluation. Pairs are (mg, eg).
// Every value is already multiplied by its constant and signed for white.
type Terms struct {
	Phase    int
	SideSign int

	Count            [schema.NumPieces]int
	TableMG, TableEG [schema.NumPieces]int

	BishopPair   [2]int
	Tempo        [2]int
	Doubled      [2]int
	Isolated     [2]int
	RookOpen     [2]int
	RookSemiOpen [2]int
	Shield       [2]int

	ConnectedMG, ConnectedEG [6]int
	PassedMG, PassedEG       [6]int
	KnightMobMG, KnightMobEG [9]int
	BishopMobMG, BishopMobEG [14]int
}

// Sums returns the untapered midgame and endgame totals.
func (t *Terms) Sums() (mg, eg int) {
	t.visit(func(name string, v int, phase schema.Phase) {
		switch phase {
		case schema.Midgame:
			mg += v
		case schema.Endgame:
			eg += v
		}
	})
	return mg, eg
}

// Score tapers the totals and returns them from the side to move's view.
func (t *Terms) Score() int {
	mg, eg := t.Sums()
	score := (mg*t.Phase + eg*(schema.PhaseMax-t.Phase)) / schema.PhaseMax
	return score * t.SideSign
}

// Header is the column list of the terms protocol.
func Header() []string {
	var t Terms
	var out []string
	t.visit(func(name string, _ int, _ schema.Phase) { out = append(out, name) })
	return out
}

// Values returns the row matching Header.
func (t *Terms) Values() []int {
	var out []int
	t.visit(func(_ string, v int, _ schema.Phase) { out = append(out, v) })
	return out
}

// noPhase marks columns that carry no score.
const noPhase = schema.Both

// visit enumerates the protocol columns in wire order.
func (t *Terms) visit(fn func(name string, v int, phase schema.Phase)) {
	fn("mg_base", 0, schema.Midgame)
	fn("eg_base", 0, schema.Endgame)
	fn("phase", t.Phase, noPhase)
	fn("side_sign", t.SideSign, noPhase)
	for p := 0; p < schema.NumPieces; p++ {
		fn("count_"+schema.PieceName(p), t.Count[p], noPhase)
	}
	for p := 0; p < schema.NumPieces; p++ {
		fn("table_"+schema.PieceName(p)+"_mg", t.TableMG[p], schema.Midgame)
		fn("table_"+schema.PieceName(p)+"_eg", t.TableEG[p], schema.Endgame)
	}
	pair := func(name string, v [2]int) {
		fn(name+"_mg", v[0], schema.Midgame)
		fn(name+"_eg", v[1], schema.Endgame)
	}
	pair("bishop_pair", t.BishopPair)
	pair("tempo", t.Tempo)
	pair("doubled", t.Doubled)
	pair("isolated", t.Isolated)
	pair("rook_open", t.RookOpen)
	pair("rook_semiopen", t.RookSemiOpen)
	pair("shield", t.Shield)
	for i := range t.ConnectedMG {
		r := "_r" + strconv.Itoa(i+2)
		fn("connected_mg"+r, t.ConnectedMG[i], schema.Midgame)
		fn("connected_eg"+r, t.ConnectedEG[i], schema.Endgame)
	}
	for i := range t.PassedMG {
		r := "_r" + strconv.Itoa(i+2)
		fn("passed_mg"+r, t.PassedMG[i], schema.Midgame)
		fn("passed_eg"+r, t.PassedEG[i], schema.Endgame)
	}
	for i := range t.KnightMobMG {
		n := "_" + strconv.Itoa(i)
		fn("knight_mob_mg"+n, t.KnightMobMG[i], schema.Midgame)
		fn("knight_mob_eg"+n, t.KnightMobEG[i], schema.Endgame)
	}
	for i := range t.BishopMobMG {
		n := "_" + strconv.Itoa(i)
		fn("bishop_mob_mg"+n, t.BishopMobMG[i], schema.Midgame)
		fn("bishop_mob_eg"+n, t.BishopMobEG[i], schema.Endgame)
	}
}
