// Package board wraps goosemg position parsing for the tuning tools.
package board

import (
	"fmt"
	"strings"

	gm "github.com/Oliverans/GooseEngineMG/goosemg"
)

// Position is a parsed FEN with per-side bitboards (a1 = bit 0).
type Position struct {
	Board *gm.Board
	Side  gm.Color
	Bits  [2]gm.Bitboards
}

// Parse accepts a full FEN or its first two to four fields. Missing castling
// and en passant fields default to "-".
func Parse(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return nil, fmt.Errorf("bad FEN: %q", fen)
	}
	for len(fields) < 4 {
		fields = append(fields, "-")
	}
	b, err := gm.ParseFEN(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("bad FEN %q: %w", fen, err)
	}
	return &Position{
		Board: b,
		Side:  b.SideToMove(),
		Bits:  [2]gm.Bitboards{b.Bitboards(gm.White), b.Bitboards(gm.Black)},
	}, nil
}

// Valid reports whether fen parses.
func Valid(fen string) bool {
	_, err := Parse(fen)
	return err == nil
}

// PieceIndex maps a goosemg piece to 0..5 (pawn..king), or -1 for an empty square.
func PieceIndex(p gm.Piece) int {
	if p == gm.NoPiece {
		return -1
	}
	return int(p.Type()) - 1
}

// Mailbox converts an a1 = 0 square to the a8 = 0 index the parameter tables use.
func Mailbox(sq int) int { return sq ^ 56 }
