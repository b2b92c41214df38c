// Package writer folds a fitted-parameter record back into a parameter source.
package writer

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"chess-tuner/schema"
	"chess-tuner/tuner"
)

// Change is one rewritten literal.
type Change struct {
	Symbol  string
	Feature string
	Index   int
	Base    int
	Scale   float64
	Old     int
	New     int
}

// target is the full value list one symbol should receive.
type target struct {
	symbol  string
	feature string
	base    []int
	scale   []float64
	values  []int
}

func round(x float64) int { return int(math.RoundToEven(x)) }

func scaled(base []int, s float64) []int {
	out := make([]int, len(base))
	for i, b := range base {
		out[i] = round(float64(b) * s)
	}
	return out
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Apply computes new literals for every tuned feature of rec and splices them
// into src. Values always derive from the bases stored in rec, so applying a
// record to its own output changes nothing.
func Apply(rec *tuner.Record, src []byte, log zerolog.Logger) ([]byte, []Change, error) {
	var targets []target
	for _, f := range rec.Features {
		if f.Kind == schema.Table.String() {
			continue
		}
		s, ok := rec.Scales[f.Name]
		if !ok {
			continue
		}
		targets = append(targets, target{
			symbol:  f.Symbol,
			feature: f.Name,
			base:    f.Base,
			scale:   fill(len(f.Base), s),
			values:  scaled(f.Base, s),
		})
	}

	anchors := map[string][]int{}
	if tablesTuned(rec) {
		tt, aa := tableTargets(rec, log)
		targets = append(targets, tt...)
		if schema.Has(src, schema.SymbolMaterialMG) && schema.Has(src, schema.SymbolMaterialEG) {
			anchors = aa
		} else {
			log.Info().Msg("target has no material anchors; tuned material folded into tables only")
		}
	}

	updates := map[string][]int{}
	var changes []Change
	var mergedOrder []string
	groups := map[string][]target{}
	for _, t := range targets {
		if schema.Has(src, t.symbol) {
			updates[t.symbol] = t.values
			changes = append(changes, t.changes()...)
			continue
		}
		m, ok := mergedSymbol(t.symbol)
		if !ok || !schema.Has(src, m) {
			return nil, nil, &schema.PatternNotFoundError{Symbol: t.symbol}
		}
		if _, seen := groups[m]; !seen {
			mergedOrder = append(mergedOrder, m)
		}
		groups[m] = append(groups[m], t)
	}

	for _, m := range mergedOrder {
		group := withPartners(rec, src, m, groups[m])
		t, err := merge(m, group)
		if err != nil {
			return nil, nil, err
		}
		log.Warn().Str("symbol", m).Str("from", t.feature).Msg("phase symbols missing; writing averaged value to merged symbol")
		updates[m] = t.values
		changes = append(changes, t.changes()...)
	}

	for _, sym := range []string{schema.SymbolMaterialMG, schema.SymbolMaterialEG} {
		vals, ok := anchors[sym]
		if !ok {
			continue
		}
		updates[sym] = vals
		for i, v := range vals {
			changes = append(changes, Change{Symbol: sym, Feature: sym, Index: i, New: v})
		}
	}

	current := map[string][]int{}
	for i := range changes {
		sym := changes[i].Symbol
		old, ok := current[sym]
		if !ok {
			var err error
			if old, err = schema.Values(src, sym); err != nil {
				return nil, nil, err
			}
			current[sym] = old
		}
		if changes[i].Index < len(old) {
			changes[i].Old = old[changes[i].Index]
		}
	}

	out, err := schema.Write(src, updates)
	if err != nil {
		return nil, nil, err
	}
	return out, changes, nil
}

func (t target) changes() []Change {
	out := make([]Change, len(t.values))
	for i, v := range t.values {
		out[i] = Change{Symbol: t.symbol, Feature: t.feature, Index: i, Base: t.base[i], Scale: t.scale[i], New: v}
	}
	return out
}

func tablesTuned(rec *tuner.Record) bool {
	for _, f := range rec.Features {
		if f.Kind != schema.Table.String() {
			continue
		}
		if _, ok := rec.Scales[f.Name]; ok {
			return true
		}
	}
	return false
}

// tableTargets rebuilds both combined tables as round(material*ms) +
// round(offset*ps) and returns the scaled material anchors alongside.
func tableTargets(rec *tuner.Record, log zerolog.Logger) ([]target, map[string][]int) {
	bt := rec.BaseTables
	var out []target
	anchors := map[string][]int{}
	for _, ph := range []schema.Phase{schema.Midgame, schema.Endgame} {
		tables, material, sym, asym := bt.MG, bt.MaterialMG, schema.SymbolMGTable, schema.SymbolMaterialMG
		if ph == schema.Endgame {
			tables, material, sym, asym = bt.EG, bt.MaterialEG, schema.SymbolEGTable, schema.SymbolMaterialEG
		}
		t := target{symbol: sym, feature: sym}
		anchor := make([]int, schema.NumPieces)
		for p := 0; p < schema.NumPieces; p++ {
			ms, ps := tableScales(rec, p, ph, log)
			m := material[p]
			anchor[p] = round(float64(m) * ms)
			for sq := 0; sq < 64; sq++ {
				t.base = append(t.base, tables[p][sq])
				t.scale = append(t.scale, ps)
				t.values = append(t.values, anchor[p]+round(float64(tables[p][sq]-m)*ps))
			}
		}
		out = append(out, t)
		anchors[asym] = anchor
	}
	return out, anchors
}

func tableScales(rec *tuner.Record, piece int, ph schema.Phase, log zerolog.Logger) (ms, ps float64) {
	ms, hasM := rec.Scales[schema.TableFeatureName(schema.Material, piece, ph)]
	ps, hasP := rec.Scales[schema.TableFeatureName(schema.Positional, piece, ph)]
	switch {
	case hasM && hasP:
		return ms, ps
	case !hasM && !hasP:
		return 1, 1
	case piece == schema.King:
		// No material term for the king.
		return ps, ps
	case hasM:
		log.Warn().Str("piece", schema.PieceName(piece)).Str("phase", ph.String()).Msg("no positional scale; reusing material scale")
		return ms, ms
	}
	log.Warn().Str("piece", schema.PieceName(piece)).Str("phase", ph.String()).Msg("no material scale; reusing positional scale")
	return ps, ps
}

// mergedSymbol strips a phase marker: SHIELD_EG -> SHIELD, mg_table -> table.
func mergedSymbol(sym string) (string, bool) {
	for _, sfx := range []string{"_MG", "_EG", "_mg", "_eg"} {
		if strings.HasSuffix(sym, sfx) {
			return strings.TrimSuffix(sym, sfx), true
		}
	}
	for _, pfx := range []string{"mg_", "eg_"} {
		if strings.HasPrefix(sym, pfx) {
			return strings.TrimPrefix(sym, pfx), true
		}
	}
	return "", false
}

// withPartners adds the untuned phase counterparts of a merge group at scale 1
// so the average always covers both phases.
func withPartners(rec *tuner.Record, src []byte, merged string, group []target) []target {
	have := map[string]bool{}
	for _, t := range group {
		have[t.symbol] = true
	}
	for _, f := range rec.Features {
		if f.Kind == schema.Table.String() || have[f.Symbol] || schema.Has(src, f.Symbol) {
			continue
		}
		if m, ok := mergedSymbol(f.Symbol); ok && m == merged {
			group = append(group, target{
				symbol:  f.Symbol,
				feature: f.Name,
				base:    f.Base,
				scale:   fill(len(f.Base), 1),
				values:  append([]int(nil), f.Base...),
			})
			have[f.Symbol] = true
		}
	}
	return group
}

func merge(symbol string, group []target) (target, error) {
	n := len(group[0].values)
	names := make([]string, len(group))
	for i, t := range group {
		if len(t.values) != n {
			return target{}, &schema.ShapeError{Symbol: symbol, Want: n, Got: len(t.values)}
		}
		names[i] = t.feature
	}
	out := target{
		symbol:  symbol,
		feature: strings.Join(names, "+"),
		base:    make([]int, n),
		scale:   make([]float64, n),
		values:  make([]int, n),
	}
	k := float64(len(group))
	for i := 0; i < n; i++ {
		var b, s, v float64
		for _, t := range group {
			b += float64(t.base[i])
			s += t.scale[i]
			v += float64(t.values[i])
		}
		out.base[i] = round(b / k)
		out.scale[i] = s / k
		out.values[i] = round(v / k)
	}
	return out, nil
}
