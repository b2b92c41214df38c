package features

import (
	"strings"

	"chess-tuner/schema"
)

// mapping turns a protocol row (named integer columns) into a Row.
type mapping struct {
	backend  string
	phase    int
	side     int
	mgBase   int
	egBase   int
	count    [schema.NumPieces]int
	table    [2][schema.NumPieces]int
	anchor   [2][schema.NumPieces]float64
	features []featureCols
	extraMG  []int
	extraEG  []int
}

// featureCols lists the protocol columns summed into one feature.
type featureCols struct {
	f      schema.Feature
	mg, eg []int
}

// newMapping resolves header columns against the catalog. Columns that
// belong to no feature but carry a phase are folded into the bases.
func newMapping(backend string, header []string, s *schema.Schema) (*mapping, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	used := make([]bool, len(header))
	need := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, &ExtractionError{Backend: backend, Reason: "missing column " + name}
		}
		used[i] = true
		return i, nil
	}

	m := &mapping{backend: backend}
	var err error
	for _, dst := range []struct {
		name string
		p    *int
	}{{"mg_base", &m.mgBase}, {"eg_base", &m.egBase}, {"phase", &m.phase}, {"side_sign", &m.side}} {
		if *dst.p, err = need(dst.name); err != nil {
			return nil, err
		}
	}
	for p := 0; p < schema.NumPieces; p++ {
		name := schema.PieceName(p)
		if m.count[p], err = need("count_" + name); err != nil {
			return nil, err
		}
		if m.table[0][p], err = need("table_" + name + "_mg"); err != nil {
			return nil, err
		}
		if m.table[1][p], err = need("table_" + name + "_eg"); err != nil {
			return nil, err
		}
		m.anchor[0][p] = float64(s.Material(p, schema.Midgame))
		m.anchor[1][p] = float64(s.Material(p, schema.Endgame))
	}

	prefixed := func(prefix string) []int {
		var out []int
		for i, h := range header {
			if strings.HasPrefix(strings.TrimSpace(h), prefix) {
				out = append(out, i)
				used[i] = true
			}
		}
		return out
	}

	for _, f := range s.Features() {
		fc := featureCols{f: f}
		switch f.Kind {
		case schema.Table:
			// resolved from count_ and table_ columns
		case schema.Scalar:
			i, err := need(f.Name)
			if err != nil {
				return nil, err
			}
			if f.Phase == schema.Endgame {
				fc.eg = []int{i}
			} else {
				fc.mg = []int{i}
			}
		case schema.Vector:
			if f.Phase == schema.Both {
				fc.mg = prefixed(f.Name + "_mg_")
				fc.eg = prefixed(f.Name + "_eg_")
			} else if f.Phase == schema.Endgame {
				fc.eg = prefixed(f.Name + "_")
			} else {
				fc.mg = prefixed(f.Name + "_")
			}
			if len(fc.mg)+len(fc.eg) == 0 {
				return nil, &ExtractionError{Backend: backend, Reason: "no columns for feature " + f.Name}
			}
		}
		m.features = append(m.features, fc)
	}

	for i, h := range header {
		if used[i] {
			continue
		}
		h = strings.TrimSpace(h)
		switch {
		case strings.HasSuffix(h, "_mg") || strings.Contains(h, "_mg_"):
			m.extraMG = append(m.extraMG, i)
		case strings.HasSuffix(h, "_eg") || strings.Contains(h, "_eg_"):
			m.extraEG = append(m.extraEG, i)
		}
	}
	return m, nil
}

func sum(vals []int, cols []int) float64 {
	t := 0
	for _, c := range cols {
		t += vals[c]
	}
	return float64(t)
}

// row builds a Row from one protocol line.
func (m *mapping) row(vals []int) *Row {
	r := &Row{
		MGBase:   float64(vals[m.mgBase]) + sum(vals, m.extraMG),
		EGBase:   float64(vals[m.egBase]) + sum(vals, m.extraEG),
		Phase:    vals[m.phase],
		SideSign: vals[m.side],
		MG:       make([]float64, len(m.features)),
		EG:       make([]float64, len(m.features)),
	}
	if r.Phase < 0 {
		r.Phase = 0
	} else if r.Phase > schema.PhaseMax {
		r.Phase = schema.PhaseMax
	}
	for i, fc := range m.features {
		f := fc.f
		if f.Kind != schema.Table {
			r.MG[i] = sum(vals, fc.mg)
			r.EG[i] = sum(vals, fc.eg)
			continue
		}
		ph := 0
		if f.Phase == schema.Endgame {
			ph = 1
		}
		material := float64(vals[m.count[f.Piece]]) * m.anchor[ph][f.Piece]
		v := material
		if f.Part == schema.Positional {
			v = float64(vals[m.table[ph][f.Piece]]) - material
		}
		if ph == 0 {
			r.MG[i] = v
		} else {
			r.EG[i] = v
		}
	}
	return r
}
