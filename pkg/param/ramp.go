package param

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Soft ramp defaults, used when neither the caller nor the parameter
// metadata specifies a rate or step.
const (
	// DefaultRampRate is the default ramp rate in user units per second.
	DefaultRampRate = 0.05

	// DefaultRampStep is the default maximum change per step in user units.
	DefaultRampStep = 5e-3
)

// RampOptions configures a soft ramp. Zero fields fall back to the
// parameter's metadata Rate/Step, then to the package defaults.
type RampOptions struct {
	// Rate is the ramp rate in user units per second.
	Rate float64

	// MaxStep is the maximum change per step in user units.
	MaxStep float64
}

// Ramp drives a numeric parameter to target in steps no larger than MaxStep,
// pacing the steps so the overall rate does not exceed Rate. The final step
// sets the exact target. Each step goes through the full Set pipeline, so
// limits are enforced on every intermediate value.
func Ramp(ctx context.Context, p *Parameter, target float64, opts RampOptions) error {
	meta := p.Metadata()
	if meta.Kind != KindFloat && meta.Kind != KindInt {
		return fmt.Errorf("%s: %w: ramp requires a numeric parameter", meta.Name, ErrValueType)
	}
	if !meta.Access.CanWrite() {
		return fmt.Errorf("%s: %w", meta.Name, ErrNotWritable)
	}

	rate := opts.Rate
	if rate <= 0 {
		rate = meta.Rate
	}
	if rate <= 0 {
		rate = DefaultRampRate
	}
	step := opts.MaxStep
	if step <= 0 {
		step = meta.Step
	}
	if step <= 0 {
		step = DefaultRampStep
	}

	current, err := p.Float(ctx)
	if err != nil {
		return err
	}

	delta := target - current
	if math.Abs(delta) <= step {
		return p.Set(ctx, target)
	}

	steps := int(math.Ceil(math.Abs(delta) / step))
	stepSize := delta / float64(steps)
	interval := time.Duration(math.Abs(stepSize) / rate * float64(time.Second))

	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		v := current + stepSize*float64(i)
		if i == steps {
			v = target
		}
		if err := p.Set(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
