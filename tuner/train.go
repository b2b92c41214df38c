// tuner/train.go
package tuner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"chess-tuner/features"
)

// StepHook sees the scales after every optimizer step and clip.
type StepHook func(step int, scales []float64)

// Slope calibration methods recorded in the result.
const (
	KMethodGolden = "golden_section_search_baseline_static_eval"
	KMethodFixed  = "fixed"
)

// Train calibrates k on the unit-scale evaluation, then fits one scale per
// matrix column with batch Adam, keeping the scales of the best validation check.
func Train(ctx context.Context, m *features.Matrix, cfg Config, log zerolog.Logger, hook StepHook) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logEvery := cfg.LogEvery
	if logEvery <= 0 {
		logEvery = cfg.Iters
	}

	n := m.Len()
	trainIdx, valIdx, err := Split(n, cfg.ValFrac, cfg.Seed)
	if err != nil {
		return nil, err
	}
	cols := len(m.Columns)
	unit := make([]float64, cols)
	for j := range unit {
		unit[j] = 1
	}

	res := &Result{
		Columns:      append([]string(nil), m.Columns...),
		NumPositions: n,
		NumTrain:     len(trainIdx),
		NumVal:       len(valIdx),
	}

	t0 := time.Now()
	if cfg.FixedK > 0 {
		res.K, res.KMethod = cfg.FixedK, KMethodFixed
	} else {
		res.K = GoldenSection(func(k float64) float64 {
			return MSE(m, trainIdx, unit, k)
		}, cfg.KMin, cfg.KMax, cfg.KSearchIters)
		res.KMethod = KMethodGolden
	}
	k := res.K

	// Optimisation starts from the unit vector pulled into the scale bounds.
	scales := append([]float64(nil), unit...)
	clip(scales, cfg)
	res.InitialTrainMSE = MSE(m, trainIdx, scales, k)
	res.InitialValMSE = MSE(m, valIdx, scales, k)
	log.Info().
		Str("method", res.KMethod).
		Float64("k", k).
		Float64("train_mse", res.InitialTrainMSE).
		Float64("val_mse", res.InitialValMSE).
		Dur("took", time.Since(t0)).
		Msg("k calibrated")

	// d score / d scale does not depend on the scales.
	dscore := make([][]float64, len(trainIdx))
	for r, i := range trainIdx {
		dscore[r] = make([]float64, cols)
		m.ScoreGrad(i, dscore[r])
	}

	opt := NewAdam(cols, cfg.LR)
	grad := make([]float64, cols)
	best := append([]float64(nil), scales...)
	bestVal := math.Inf(1)

	for step := 1; step <= cfg.Iters; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted at step %d: %w", step, err)
		}
		loss, mse := lossGrad(m, trainIdx, dscore, scales, k, cfg.L2, grad)
		opt.Step(scales, grad)
		clip(scales, cfg)
		if hook != nil {
			hook(step, scales)
		}

		if step%logEvery == 0 || step == 1 || step == cfg.Iters {
			val := MSE(m, valIdx, scales, k)
			res.Checkpoints = append(res.Checkpoints, Checkpoint{Iter: step, Loss: loss, TrainMSE: mse, ValMSE: val})
			log.Info().
				Int("iter", step).
				Float64("loss", loss).
				Float64("train_mse", mse).
				Float64("val_mse", val).
				Float64("k", k).
				Msg("checkpoint")
			if val < bestVal {
				bestVal = val
				copy(best, scales)
				res.BestIter = step
			}
		}
	}

	res.Scales = best
	res.BestTrainMSE = MSE(m, trainIdx, best, k)
	res.BestValMSE = MSE(m, valIdx, best, k)
	log.Info().
		Int("best_iter", res.BestIter).
		Float64("train_mse", res.BestTrainMSE).
		Float64("val_mse", res.BestValMSE).
		Dur("took", time.Since(t0)).
		Msg("training done")
	return res, nil
}

func clip(scales []float64, cfg Config) {
	for j, s := range scales {
		scales[j] = math.Max(cfg.ScaleMin, math.Min(cfg.ScaleMax, s))
	}
}
