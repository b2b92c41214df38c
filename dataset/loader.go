// Package dataset loads labelled positions and turns them into cached feature matrices.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"chess-tuner/board"
)

// Stats counts what Load saw.
type Stats struct {
	Records int
	Loaded  int
	Skipped int
}

// ParseLabel accepts a probability in [0,1] or a PGN result.
func ParseLabel(s string) (float64, error) {
	switch s {
	case "1-0":
		return 1.0, nil
	case "0-1":
		return 0.0, nil
	case "1/2-1/2", "1/2", "0.5":
		return 0.5, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || f > 1 {
			return 0, fmt.Errorf("label out of [0,1]: %v", f)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot parse label: %q", s)
}

// splitLine handles the single-field forms "<FEN> [0.5]" and "<FEN> 1-0".
func splitLine(raw string) (fen, lab string, ok bool) {
	raw = strings.TrimSpace(raw)
	li := strings.LastIndex(raw, "[")
	rj := strings.LastIndex(raw, "]")
	if li >= 0 && rj > li {
		return strings.TrimSpace(raw[:li]), strings.TrimSpace(raw[li+1 : rj]), true
	}
	parts := strings.Fields(raw)
	if len(parts) < 3 {
		return "", "", false
	}
	last := strings.Trim(parts[len(parts)-1], `";`)
	if _, err := ParseLabel(last); err != nil {
		return "", "", false
	}
	return strings.Join(parts[:len(parts)-1], " "), last, true
}

// Load reads up to limit valid positions (limit <= 0 means all) from a CSV
// with a fen/position and label header, a TSV, or "FEN label" lines.
// Records whose position or label does not parse are skipped.
func Load(path string, limit int) ([]string, []float64, Stats, error) {
	var st Stats
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, st, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	first, _ := br.Peek(4096)
	comma := ','
	if line, _, _ := strings.Cut(string(first), "\n"); strings.Contains(line, "\t") {
		comma = '\t'
	}
	r := csv.NewReader(br)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	fenCol, labCol := 0, 1
	var fens []string
	var labels []float64
	header := true
	for limit <= 0 || len(fens) < limit {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				st.Skipped++
				continue
			}
			return nil, nil, st, fmt.Errorf("%s: %w", path, err)
		}
		if header {
			header = false
			if fc, lc, ok := headerColumns(rec); ok {
				fenCol, labCol = fc, lc
				continue
			}
		}
		st.Records++

		var fen, lab string
		switch {
		case len(rec) > fenCol && len(rec) > labCol && len(rec) >= 2:
			fen, lab = strings.TrimSpace(rec[fenCol]), strings.TrimSpace(rec[labCol])
		case len(rec) == 1:
			var ok bool
			if fen, lab, ok = splitLine(rec[0]); !ok {
				st.Skipped++
				continue
			}
		default:
			st.Skipped++
			continue
		}
		y, err := ParseLabel(lab)
		if err != nil || !board.Valid(fen) {
			st.Skipped++
			continue
		}
		fens = append(fens, fen)
		labels = append(labels, y)
	}
	st.Loaded = len(fens)
	return fens, labels, st, nil
}

func headerColumns(rec []string) (fenCol, labCol int, ok bool) {
	fenCol, labCol = -1, -1
	for i, h := range rec {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "fen", "position":
			fenCol = i
		case "label", "result":
			labCol = i
		}
	}
	return fenCol, labCol, fenCol >= 0 && labCol >= 0
}
