package schema

import (
	"sort"
	"strconv"
)

// Has reports whether src declares symbol at least once.
func Has(src []byte, symbol string) bool {
	return len(locate(maskComments(src), symbol)) > 0
}

type splice struct {
	start, end int
	text       string
}

// Write replaces the numeric literals of each symbol in updates and returns
// the new source. Everything else in src, comments and layout included, is
// kept byte for byte. Either every update applies or src is left as is.
func Write(src []byte, updates map[string][]int) ([]byte, error) {
	masked := maskComments(src)

	symbols := make([]string, 0, len(updates))
	for sym := range updates {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var edits []splice
	for _, sym := range symbols {
		vals := updates[sym]
		ds := locate(masked, sym)
		if len(ds) != 1 {
			return nil, &PatternNotFoundError{Symbol: sym, Matches: len(ds)}
		}
		d := ds[0]
		if len(d.spans) != len(vals) {
			return nil, &ShapeError{Symbol: sym, Want: len(d.spans), Got: len(vals)}
		}
		for i, sp := range d.spans {
			edits = append(edits, splice{start: sp[0], end: sp[1], text: strconv.Itoa(vals[i])})
		}
	}

	// Apply back to front so earlier offsets stay valid.
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := make([]byte, len(src))
	copy(out, src)
	for _, e := range edits {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.start], tail...)
	}
	return out, nil
}

// Values returns the numeric literals of symbol's single declaration in src.
func Values(src []byte, symbol string) ([]int, error) {
	d, err := lookup(maskComments(src), symbol)
	if err != nil {
		return nil, err
	}
	return d.values, nil
}
