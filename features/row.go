// features/row.go
package features

import (
	"fmt"

	"chess-tuner/schema"
)

// Row is the linear decomposition of one position's evaluation. MG and EG
// hold one contribution per catalog feature, in catalog order, signed from
// white's point of view with every scale at 1.
type Row struct {
	MGBase, EGBase float64
	Phase          int
	SideSign       int
	MG, EG         []float64
}

// Taper blends the two totals by phase the way the evaluator does, without rounding.
func Taper(mg, eg float64, phase int) float64 {
	return (mg*float64(phase) + eg*float64(schema.PhaseMax-phase)) / schema.PhaseMax
}

// Score is the unit-scale score of the row from the side to move's view.
func (r *Row) Score() float64 {
	mg, eg := r.MGBase, r.EGBase
	for i := range r.MG {
		mg += r.MG[i]
		eg += r.EG[i]
	}
	return float64(r.SideSign) * Taper(mg, eg, r.Phase)
}

// Matrix is the training view of a set of rows: one column per selected
// feature, everything else folded into the bases.
type Matrix struct {
	Columns  []string    `json:"columns"`
	MGBase   []float64   `json:"mg_base"`
	EGBase   []float64   `json:"eg_base"`
	Phase    []int       `json:"phase"`
	SideSign []int       `json:"side_sign"`
	MG       [][]float64 `json:"mg"`
	EG       [][]float64 `json:"eg"`
	Labels   []float64   `json:"labels"`
}

// Len is the number of positions.
func (m *Matrix) Len() int { return len(m.Phase) }

// Assemble selects columns out of full rows. Nil rows are dropped together
// with their labels.
func Assemble(rows []*Row, labels []float64, columns []string) (*Matrix, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("assemble: %d rows for %d labels", len(rows), len(labels))
	}
	catalog := schema.Catalog()
	index := make(map[string]int, len(catalog))
	for i, f := range catalog {
		index[f.Name] = i
	}
	sel := make([]int, len(columns))
	picked := make([]bool, len(catalog))
	for j, name := range columns {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("assemble: unknown feature %q", name)
		}
		if picked[i] {
			return nil, fmt.Errorf("assemble: duplicate column %q", name)
		}
		sel[j], picked[i] = i, true
	}

	m := &Matrix{Columns: append([]string(nil), columns...)}
	for n, r := range rows {
		if r == nil {
			continue
		}
		mgBase, egBase := r.MGBase, r.EGBase
		for i := range r.MG {
			if !picked[i] {
				mgBase += r.MG[i]
				egBase += r.EG[i]
			}
		}
		mg := make([]float64, len(sel))
		eg := make([]float64, len(sel))
		for j, i := range sel {
			mg[j], eg[j] = r.MG[i], r.EG[i]
		}
		m.MGBase = append(m.MGBase, mgBase)
		m.EGBase = append(m.EGBase, egBase)
		m.Phase = append(m.Phase, r.Phase)
		m.SideSign = append(m.SideSign, r.SideSign)
		m.MG = append(m.MG, mg)
		m.EG = append(m.EG, eg)
		m.Labels = append(m.Labels, labels[n])
	}
	return m, nil
}

// Score returns the scaled score of row i from the side to move's view.
func (m *Matrix) Score(i int, scales []float64) float64 {
	mg, eg := m.MGBase[i], m.EGBase[i]
	for j, s := range scales {
		mg += s * m.MG[i][j]
		eg += s * m.EG[i][j]
	}
	return float64(m.SideSign[i]) * Taper(mg, eg, m.Phase[i])
}

// ScoreGrad returns d score / d scale_j for row i. It does not depend on the scales.
func (m *Matrix) ScoreGrad(i int, out []float64) {
	ph := float64(m.Phase[i]) / schema.PhaseMax
	side := float64(m.SideSign[i])
	for j := range out {
		out[j] = side * (ph*m.MG[i][j] + (1-ph)*m.EG[i][j])
	}
}
