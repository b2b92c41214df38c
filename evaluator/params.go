// Package evaluator is a Go port of the production hand-crafted evaluation.
// It reads its constants from a parsed parameter source and serves as the
// correctness anchor for feature extraction.
package evaluator

import "chess-tuner/schema"

// Params are the evaluation constants, laid out the way the C source declares them.
type Params struct {
	MGTable, EGTable [schema.NumPieces][64]int // a8 = 0, white's view
	PhaseWeight      [schema.NumPieces]int

	BishopPairMG, BishopPairEG     int
	TempoMG, TempoEG               int
	DoubledMG, DoubledEG           int
	IsolatedMG, IsolatedEG         int
	RookOpenMG, RookOpenEG         int
	RookSemiOpenMG, RookSemiOpenEG int
	ShieldMG, ShieldEG             int

	Connected          [7]int
	PassedMG, PassedEG [6]int
	KnightMobMG        [9]int
	KnightMobEG        [9]int
	BishopMobMG        [14]int
	BishopMobEG        [14]int
}

// FromSchema copies the base values of s into Params.
func FromSchema(s *schema.Schema) Params {
	var p Params
	p.MGTable = s.Table(schema.Midgame)
	p.EGTable = s.Table(schema.Endgame)
	p.PhaseWeight = s.PhaseWeights()

	one := func(name string) int { return s.Base(name)[0] }
	p.BishopPairMG, p.BishopPairEG = one("bishop_pair_mg"), one("bishop_pair_eg")
	p.TempoMG, p.TempoEG = one("tempo_mg"), one("tempo_eg")
	p.DoubledMG, p.DoubledEG = one("doubled_mg"), one("doubled_eg")
	p.IsolatedMG, p.IsolatedEG = one("isolated_mg"), one("isolated_eg")
	p.RookOpenMG, p.RookOpenEG = one("rook_open_mg"), one("rook_open_eg")
	p.RookSemiOpenMG, p.RookSemiOpenEG = one("rook_semiopen_mg"), one("rook_semiopen_eg")
	p.ShieldMG, p.ShieldEG = one("shield_mg"), one("shield_eg")

	copy(p.Connected[:], s.Base("connected"))
	copy(p.PassedMG[:], s.Base("passed_mg"))
	copy(p.PassedEG[:], s.Base("passed_eg"))
	copy(p.KnightMobMG[:], s.Base("knight_mob_mg"))
	copy(p.KnightMobEG[:], s.Base("knight_mob_eg"))
	copy(p.BishopMobMG[:], s.Base("bishop_mob_mg"))
	copy(p.BishopMobEG[:], s.Base("bishop_mob_eg"))
	return p
}
