package main

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/bpmctl/paramtree/pkg/tree"
	"github.com/bpmctl/paramtree/pkg/value"
)

// runSimulation feeds synthetic beam positions into the instrument until
// ctx is done. Positions follow a slow orbit oscillation scaled by the
// configured gain and shifted by the electrode offsets.
func runSimulation(ctx context.Context, inst *instrument, period time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if err := inst.pllLocked.Update(value.Bool(true)); err != nil {
		return err
	}
	logger.Info("simulation started", "period", period)

	var (
		turn    float64
		history = make([]float64, 0, historyLen)
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info("simulation stopped")
			return nil
		case <-ticker.C:
		}

		mode, err := tree.Get[int32](inst.mode)
		if err != nil {
			return err
		}
		if mode == 0 {
			continue
		}

		turn++
		if err := inst.step(turn, &history); err != nil {
			logger.Warn("simulation step failed", "error", err)
		}
	}
}

func (inst *instrument) step(turn float64, history *[]float64) error {
	gain, err := tree.Get[int32](inst.gain)
	if err != nil {
		return err
	}
	offsets, err := tree.GetArray[float64](inst.offsets, 0, -1)
	if err != nil {
		return err
	}
	scale := math.Pow(10, float64(gain)/20)

	var dx, dy float64
	if len(offsets) >= 4 {
		dx = (offsets[0] - offsets[2]) / 2
		dy = (offsets[1] - offsets[3]) / 2
	}
	x := 1.2*math.Sin(turn/40) + rand.NormFloat64()*0.02 + dx
	y := 0.4*math.Cos(turn/55) + rand.NormFloat64()*0.02 + dy
	sum := 1000 * scale * (1 + rand.NormFloat64()*0.001)

	for _, u := range []struct {
		node tree.Node
		v    float64
	}{{inst.x, x}, {inst.y, y}, {inst.sum, sum}} {
		if err := u.node.Update(value.Of(u.v)); err != nil {
			return err
		}
	}

	if len(*history) == historyLen {
		*history = (*history)[1:]
	}
	*history = append(*history, x)
	if err := inst.history.UpdateRange(historyLen-len(*history), value.ArrayOf(*history)); err != nil {
		return err
	}

	t := 31.5 + 0.5*math.Sin(turn/500)
	inst.temperature.Store(math.Float64bits(t))
	return nil
}
