package evaluator

import (
	gm "github.com/Oliverans/GooseEngineMG/goosemg"

	"chess-tuner/board"
	"chess-tuner/schema"
)

const (
	white = 0
	black = 1
)

// mailbox is the 8x8 view the C evaluator works on: row 0 is rank 8.
// Squares hold +1..+6 for white pawn..king and the negatives for black.
type mailbox struct {
	sq   [64]int8
	side int
	king [2]int
}

func newMailbox(pos *board.Position) *mailbox {
	m := &mailbox{king: [2]int{-1, -1}}
	for s := 0; s < 64; s++ {
		pc := pos.Board.PieceAt(gm.Square(s))
		idx := board.PieceIndex(pc)
		if idx < 0 {
			continue
		}
		i := board.Mailbox(s)
		v := int8(idx + 1)
		c := white
		if pc.Color() == gm.Black {
			v, c = -v, black
		}
		m.sq[i] = v
		// With several kings the lowest square wins.
		if idx == schema.King && m.king[c] < 0 {
			m.king[c] = i
		}
	}
	if pos.Side == gm.Black {
		m.side = black
	}
	return m
}

func onBoard(row, col int) bool { return row >= 0 && row < 8 && col >= 0 && col < 8 }

func pawnCode(c int) int8 {
	if c == white {
		return 1
	}
	return -1
}

func colorOf(v int8) int {
	if v < 0 {
		return black
	}
	return white
}

func kindOf(v int8) int {
	if v < 0 {
		return int(-v) - 1
	}
	return int(v) - 1
}

func (m *mailbox) is(row, col int, v int8) bool {
	return onBoard(row, col) && m.sq[row*8+col] == v
}

// attackedByPawn reports whether a pawn of side by attacks (row, col).
func (m *mailbox) attackedByPawn(row, col, by int) bool {
	if by == white {
		return m.is(row+1, col+1, 1) || m.is(row+1, col-1, 1)
	}
	return m.is(row-1, col-1, -1) || m.is(row-1, col+1, -1)
}

var (
	knightSteps = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	bishopSteps = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// Trace walks the position once and returns every evaluation term, signed
// from white's point of view.
func Trace(p *Params, pos *board.Position) Terms {
	m := newMailbox(pos)
	var t Terms
	t.SideSign = 1
	if m.side == black {
		t.SideSign = -1
	}

	var pawnFiles [2][8]uint8
	var bishops [2]int
	phase := 0
	for i, v := range m.sq {
		if v == 0 {
			continue
		}
		c, k := colorOf(v), kindOf(v)
		phase += p.PhaseWeight[k]
		sign, pst := 1, i
		if c == black {
			sign, pst = -1, i^56
		}
		t.Count[k] += sign
		t.TableMG[k] += sign * p.MGTable[k][pst]
		t.TableEG[k] += sign * p.EGTable[k][pst]
		switch k {
		case schema.Pawn:
			pawnFiles[c][i%8] |= 1 << uint(i/8)
		case schema.Bishop:
			bishops[c]++
		}
	}
	t.Phase = clampPhase(phase)

	for c, sign := range [2]int{1, -1} {
		if bishops[c] >= 2 {
			t.BishopPair[0] += sign * p.BishopPairMG
			t.BishopPair[1] += sign * p.BishopPairEG
		}
	}
	t.Tempo = [2]int{t.SideSign * p.TempoMG, t.SideSign * p.TempoEG}

	for i, v := range m.sq {
		if v == 0 {
			continue
		}
		c, k := colorOf(v), kindOf(v)
		sign := 1
		if c == black {
			sign = -1
		}
		row, col := i/8, i%8
		own, enemy := &pawnFiles[c], &pawnFiles[1-c]

		switch k {
		case schema.Pawn:
			rel := 7 - row
			if c == black {
				rel = row
			}
			if own[col]&^(1<<uint(row)) != 0 {
				t.Doubled[0] -= sign * p.DoubledMG
				t.Doubled[1] -= sign * p.DoubledEG
			}
			var adj uint8
			if col > 0 {
				adj |= own[col-1]
			}
			if col < 7 {
				adj |= own[col+1]
			}
			if adj == 0 {
				t.Isolated[0] -= sign * p.IsolatedMG
				t.Isolated[1] -= sign * p.IsolatedEG
			}
			if m.attackedByPawn(row, col, c) && rel >= 2 {
				ri := rel - 2
				t.ConnectedMG[ri] += sign * p.Connected[ri]
				t.ConnectedEG[ri] += sign * p.Connected[ri]
			}
			if m.passed(row, col, c, enemy) && rel >= 2 {
				ri := rel - 2
				t.PassedMG[ri] += sign * p.PassedMG[ri]
				t.PassedEG[ri] += sign * p.PassedEG[ri]
			}

		case schema.Rook:
			if own[col] == 0 && enemy[col] == 0 {
				t.RookOpen[0] += sign * p.RookOpenMG
				t.RookOpen[1] += sign * p.RookOpenEG
			} else if own[col] == 0 {
				t.RookSemiOpen[0] += sign * p.RookSemiOpenMG
				t.RookSemiOpen[1] += sign * p.RookSemiOpenEG
			}

		case schema.Knight:
			mob := 0
			for _, d := range knightSteps {
				r, f := row+d[0], col+d[1]
				if !onBoard(r, f) {
					continue
				}
				if dst := m.sq[r*8+f]; dst != 0 && colorOf(dst) == c {
					continue
				}
				if m.attackedByPawn(r, f, 1-c) {
					continue
				}
				mob++
			}
			if mob > 8 {
				mob = 8
			}
			t.KnightMobMG[mob] += sign * p.KnightMobMG[mob]
			t.KnightMobEG[mob] += sign * p.KnightMobEG[mob]

		case schema.Bishop:
			mob := 0
			for _, d := range bishopSteps {
				for r, f := row+d[0], col+d[1]; onBoard(r, f); r, f = r+d[0], f+d[1] {
					dst := m.sq[r*8+f]
					if dst != 0 && colorOf(dst) == c {
						break
					}
					if !m.attackedByPawn(r, f, 1-c) {
						mob++
					}
					if dst != 0 {
						break
					}
				}
			}
			if mob > 13 {
				mob = 13
			}
			t.BishopMobMG[mob] += sign * p.BishopMobMG[mob]
			t.BishopMobEG[mob] += sign * p.BishopMobEG[mob]
		}
	}

	// Pawn shield: own pawns on the three squares in front of the king.
	for c, sign := range [2]int{1, -1} {
		ksq := m.king[c]
		if ksq < 0 {
			continue
		}
		krow, kcol := ksq/8, ksq%8
		front := krow - 1
		if c == black {
			front = krow + 1
		}
		if front < 0 || front > 7 {
			continue
		}
		shield := 0
		for f := kcol - 1; f <= kcol+1; f++ {
			if m.is(front, f, pawnCode(c)) {
				shield++
			}
		}
		t.Shield[0] += sign * shield * p.ShieldMG
		t.Shield[1] += sign * shield * p.ShieldEG
	}
	return t
}

// passed reports whether no enemy pawn stands ahead on the pawn's file or the adjacent ones.
func (m *mailbox) passed(row, col, c int, enemy *[8]uint8) bool {
	for f := col - 1; f <= col+1; f++ {
		if f < 0 || f > 7 {
			continue
		}
		if c == white {
			// rows above the pawn
			if enemy[f]&(uint8(1)<<uint(row)-1) != 0 {
				return false
			}
		} else if enemy[f]>>uint(row+1) != 0 {
			return false
		}
	}
	return true
}

func clampPhase(ph int) int {
	if ph > schema.PhaseMax {
		return schema.PhaseMax
	}
	if ph < 0 {
		return 0
	}
	return ph
}

// Evaluate returns the static score of pos in centipawns from the side to move's view.
func Evaluate(p *Params, pos *board.Position) int {
	t := Trace(p, pos)
	return t.Score()
}

// EvaluateFEN parses fen and evaluates it.
func EvaluateFEN(p *Params, fen string) (int, error) {
	pos, err := board.Parse(fen)
	if err != nil {
		return 0, err
	}
	return Evaluate(p, pos), nil
}
