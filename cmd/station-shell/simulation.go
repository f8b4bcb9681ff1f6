package main

import (
	"context"
	stdlog "log"
	"math"
	"math/rand"
	"time"

	"github.com/qnlab/station-go/pkg/param"
	"github.com/qnlab/station-go/pkg/station"
)

// simStepFraction scales each drift step to the parameter's limit span,
// so every instrument moves on its own scale.
const simStepFraction = 0.002

// runSimulation drifts the writable monitored parameters in a bounded
// random walk. Read-only parameters already carry simulated noise from
// their drivers; this keeps the setpoints they derive from moving too.
func runSimulation(ctx context.Context, st *station.Station, interval time.Duration) {
	stdlog.Printf("Simulation mode enabled (every %s)", interval)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			for _, mp := range st.MonitoredParameters() {
				meta := mp.Param.Metadata()
				if !meta.Access.CanWrite() || !meta.Access.CanRead() {
					continue
				}
				if meta.Kind != param.KindFloat || meta.Limits == nil {
					continue
				}

				current, err := mp.Param.Float(ctx)
				if err != nil {
					continue
				}

				span := meta.Limits.Max - meta.Limits.Min
				next := current + span*simStepFraction*rng.NormFloat64()
				next = math.Min(meta.Limits.Max, math.Max(meta.Limits.Min, next))
				_ = mp.Param.Set(ctx, next)
			}
		}
	}
}
