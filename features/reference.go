package features

import (
	"context"
	"math/bits"
	"strconv"

	gm "github.com/Oliverans/GooseEngineMG/goosemg"
	"github.com/dylhunn/dragontoothmg"
	"github.com/rs/zerolog"

	"chess-tuner/board"
	"chess-tuner/evaluator"
	"chess-tuner/schema"
)

// ReferenceIdentity names the in-process backend in cache keys.
const ReferenceIdentity = "reference/v1"

const (
	fileA uint64 = 0x0101010101010101
	fileH uint64 = fileA << 7
)

var (
	fileMask     [8]uint64
	adjacentMask [8]uint64
	knightMask   [64]uint64
)

func init() {
	for f := 0; f < 8; f++ {
		fileMask[f] = fileA << uint(f)
	}
	for f := 0; f < 8; f++ {
		if f > 0 {
			adjacentMask[f] |= fileMask[f-1]
		}
		if f < 7 {
			adjacentMask[f] |= fileMask[f+1]
		}
	}
	for sq := 0; sq < 64; sq++ {
		r, f := sq/8, sq%8
		for _, d := range [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}} {
			rr, ff := r+d[0], f+d[1]
			if rr >= 0 && rr < 8 && ff >= 0 && ff < 8 {
				knightMask[sq] |= 1 << uint(rr*8+ff)
			}
		}
	}
}

func pawnAttacks(pawns uint64, white bool) uint64 {
	if white {
		return (pawns&^fileA)<<7 | (pawns&^fileH)<<9
	}
	return (pawns&^fileA)>>9 | (pawns&^fileH)>>7
}

// Reference extracts terms in-process from goosemg bitboards.
type Reference struct {
	schema *schema.Schema
	params evaluator.Params
	header []string
	cols   map[string]int
	mapper *mapping
	log    zerolog.Logger
}

// NewReference builds the in-process backend for s.
func NewReference(s *schema.Schema, log zerolog.Logger) (*Reference, error) {
	header := evaluator.Header()
	m, err := newMapping(ReferenceIdentity, header, s)
	if err != nil {
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[h] = i
	}
	return &Reference{
		schema: s,
		params: evaluator.FromSchema(s),
		header: header,
		cols:   cols,
		mapper: m,
		log:    log,
	}, nil
}

func (r *Reference) Identity() string { return ReferenceIdentity }

// Extract returns one row per FEN; FENs that do not parse give a nil row.
func (r *Reference) Extract(ctx context.Context, fens []string) ([]*Row, error) {
	out := make([]*Row, len(fens))
	skipped := 0
	for i, fen := range fens {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		pos, err := board.Parse(fen)
		if err != nil {
			skipped++
			continue
		}
		out[i] = r.mapper.row(r.terms(pos))
	}
	if skipped > 0 {
		r.log.Warn().Int("skipped", skipped).Msg("positions failed to parse")
	}
	return out, nil
}

// terms computes the protocol columns for pos.
func (r *Reference) terms(pos *board.Position) []int {
	p := &r.params
	vals := make([]int, len(r.header))
	add := func(name string, v int) { vals[r.cols[name]] += v }

	side := 1
	if pos.Side == gm.Black {
		side = -1
	}
	vals[r.cols["side_sign"]] = side
	add("tempo_mg", side*p.TempoMG)
	add("tempo_eg", side*p.TempoEG)

	occ := pos.Bits[0].All | pos.Bits[1].All
	pawnAtt := [2]uint64{pawnAttacks(pos.Bits[0].Pawns, true), pawnAttacks(pos.Bits[1].Pawns, false)}
	phase := 0

	for c := 0; c < 2; c++ {
		sign := 1 - 2*c
		own, enemy := pos.Bits[c], pos.Bits[1-c]
		pieces := [schema.NumPieces]uint64{own.Pawns, own.Knights, own.Bishops, own.Rooks, own.Queens, own.Kings}

		for k, bb := range pieces {
			n := bits.OnesCount64(bb)
			phase += n * p.PhaseWeight[k]
			name := schema.PieceName(k)
			add("count_"+name, sign*n)
			for b := bb; b != 0; b &= b - 1 {
				sq := bits.TrailingZeros64(b)
				idx := sq // black reads the table rank-flipped
				if c == 0 {
					idx = board.Mailbox(sq)
				}
				add("table_"+name+"_mg", sign*p.MGTable[k][idx])
				add("table_"+name+"_eg", sign*p.EGTable[k][idx])
			}
		}

		if bits.OnesCount64(own.Bishops) >= 2 {
			add("bishop_pair_mg", sign*p.BishopPairMG)
			add("bishop_pair_eg", sign*p.BishopPairEG)
		}

		for b := own.Pawns; b != 0; b &= b - 1 {
			sq := bits.TrailingZeros64(b)
			rank, file := sq/8, sq%8
			rel := rank
			ahead := ^uint64(0) << uint(8*(rank+1))
			if c == 1 {
				rel = 7 - rank
				ahead = uint64(1)<<uint(8*rank) - 1
			}
			if bits.OnesCount64(own.Pawns&fileMask[file]) > 1 {
				add("doubled_mg", -sign*p.DoubledMG)
				add("doubled_eg", -sign*p.DoubledEG)
			}
			if own.Pawns&adjacentMask[file] == 0 {
				add("isolated_mg", -sign*p.IsolatedMG)
				add("isolated_eg", -sign*p.IsolatedEG)
			}
			if rel < 2 {
				continue
			}
			ri := rel - 2
			suffix := "_r" + strconv.Itoa(rel)
			if pawnAtt[c]&(1<<uint(sq)) != 0 {
				add("connected_mg"+suffix, sign*p.Connected[ri])
				add("connected_eg"+suffix, sign*p.Connected[ri])
			}
			if enemy.Pawns&(fileMask[file]|adjacentMask[file])&ahead == 0 {
				add("passed_mg"+suffix, sign*p.PassedMG[ri])
				add("passed_eg"+suffix, sign*p.PassedEG[ri])
			}
		}

		for b := own.Rooks; b != 0; b &= b - 1 {
			file := bits.TrailingZeros64(b) % 8
			switch {
			case (own.Pawns|enemy.Pawns)&fileMask[file] == 0:
				add("rook_open_mg", sign*p.RookOpenMG)
				add("rook_open_eg", sign*p.RookOpenEG)
			case own.Pawns&fileMask[file] == 0:
				add("rook_semiopen_mg", sign*p.RookSemiOpenMG)
				add("rook_semiopen_eg", sign*p.RookSemiOpenEG)
			}
		}

		for b := own.Knights; b != 0; b &= b - 1 {
			sq := bits.TrailingZeros64(b)
			mob := min(bits.OnesCount64(knightMask[sq]&^own.All&^pawnAtt[1-c]), 8)
			add("knight_mob_mg_"+strconv.Itoa(mob), sign*p.KnightMobMG[mob])
			add("knight_mob_eg_"+strconv.Itoa(mob), sign*p.KnightMobEG[mob])
		}
		for b := own.Bishops; b != 0; b &= b - 1 {
			sq := bits.TrailingZeros64(b)
			att := dragontoothmg.CalculateBishopMoveBitboard(uint8(sq), occ)
			mob := min(bits.OnesCount64(att&^own.All&^pawnAtt[1-c]), 13)
			add("bishop_mob_mg_"+strconv.Itoa(mob), sign*p.BishopMobMG[mob])
			add("bishop_mob_eg_"+strconv.Itoa(mob), sign*p.BishopMobEG[mob])
		}

		if own.Kings != 0 {
			ksq := bits.TrailingZeros64(own.Kings)
			rank, file := ksq/8, ksq%8
			front := rank + 1
			if c == 1 {
				front = rank - 1
			}
			if front >= 0 && front < 8 {
				shieldMask := fileMask[file] | adjacentMask[file]
				shieldMask &= uint64(0xFF) << uint(8*front)
				n := bits.OnesCount64(own.Pawns & shieldMask)
				add("shield_mg", sign*n*p.ShieldMG)
				add("shield_eg", sign*n*p.ShieldEG)
			}
		}
	}

	if phase > schema.PhaseMax {
		phase = schema.PhaseMax
	}
	vals[r.cols["phase"]] = phase
	return vals
}
