package instruments

import (
	"context"
	"fmt"
	"math"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

const (
	sr860DefaultNoise = 1e-6
	// sr860Coupling is the simulated transmission between the sine output
	// and the input, so X/Y/R track the drive amplitude.
	sr860Coupling = 0.01
)

// SR860 simulates a Stanford Research Systems SR860 lock-in amplifier. The
// demodulated X/Y/R/P readings follow the instrument's own sine output
// through a fixed coupling, plus gaussian noise.
type SR860 struct {
	*driver.Base

	sim   *simSource
	noise float64

	amplitude *param.Parameter
	phase     *param.Parameter
}

func newSR860(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init, "seed", "noise"); err != nil {
		return nil, err
	}
	seed, err := driver.InitInt(cfg.Init, "seed", 0)
	if err != nil {
		return nil, err
	}
	noise, err := driver.InitFloat(cfg.Init, "noise", sr860DefaultNoise)
	if err != nil {
		return nil, err
	}

	s := &SR860{
		Base:  driver.NewBase(cfg.Name, "SR860", cfg.Endpoint()),
		sim:   newSimSource(int64(seed)),
		noise: noise,
	}
	s.SetIDN(driver.IDN{
		Vendor:   "Stanford_Research_Systems",
		Model:    "SR860",
		Serial:   "sim-" + cfg.Name,
		Firmware: "V1.47",
	})

	source := func(name, label, unit string, min, max, initial float64) *param.Parameter {
		return param.MustNew(&param.Metadata{
			Name:    name,
			Label:   label,
			Unit:    unit,
			Kind:    param.KindFloat,
			Access:  param.AccessReadWrite,
			Limits:  &param.Limits{Min: min, Max: max},
			Default: initial,
		}, nil, nil)
	}
	s.amplitude = source("amplitude", "Sine out amplitude", "V", 1e-9, 2, 0.1)
	s.phase = source("phase", "Reference phase", "deg", -180, 180, 0)
	s.MustAddParameter("amplitude", s.amplitude)
	s.MustAddParameter("phase", s.phase)
	s.MustAddParameter("frequency", source("frequency", "Reference frequency", "Hz", 1e-3, 500e3, 173))
	s.MustAddParameter("time_constant", source("time_constant", "Time constant", "s", 1e-6, 30e3, 0.1))
	s.MustAddParameter("sensitivity", source("sensitivity", "Sensitivity", "V", 1e-9, 1, 1e-3))

	measure := func(name, label, unit string, get param.GetFunc) *param.Parameter {
		return param.MustNew(&param.Metadata{
			Name:   name,
			Label:  label,
			Unit:   unit,
			Kind:   param.KindFloat,
			Access: param.AccessRead,
		}, get, nil)
	}
	s.MustAddParameter("X", measure("X", "In-phase", "V", func(ctx context.Context) (any, error) {
		x, _, err := s.signal(ctx)
		if err != nil {
			return nil, err
		}
		return s.sim.noisy(x, s.noise), nil
	}))
	s.MustAddParameter("Y", measure("Y", "Quadrature", "V", func(ctx context.Context) (any, error) {
		_, y, err := s.signal(ctx)
		if err != nil {
			return nil, err
		}
		return s.sim.noisy(y, s.noise), nil
	}))
	s.MustAddParameter("R", measure("R", "Magnitude", "V", func(ctx context.Context) (any, error) {
		x, y, err := s.signal(ctx)
		if err != nil {
			return nil, err
		}
		return math.Hypot(s.sim.noisy(x, s.noise), s.sim.noisy(y, s.noise)), nil
	}))
	s.MustAddParameter("P", measure("P", "Phase", "deg", func(ctx context.Context) (any, error) {
		x, y, err := s.signal(ctx)
		if err != nil {
			return nil, err
		}
		return math.Atan2(s.sim.noisy(y, s.noise), s.sim.noisy(x, s.noise)) * 180 / math.Pi, nil
	}))

	for i := 1; i <= 4; i++ {
		out := fmt.Sprintf("aux_out%d", i)
		s.MustAddParameter(out, source(out, fmt.Sprintf("Aux output %d", i), "V", -10.5, 10.5, 0))
		in := fmt.Sprintf("aux_in%d", i)
		s.MustAddParameter(in, measure(in, fmt.Sprintf("Aux input %d", i), "V", func(ctx context.Context) (any, error) {
			return s.sim.noisy(0, s.noise), nil
		}))
	}
	return s, nil
}

// signal derives the noiseless demodulated components from the current
// drive amplitude and reference phase.
func (s *SR860) signal(ctx context.Context) (x, y float64, err error) {
	amp, err := s.amplitude.Float(ctx)
	if err != nil {
		return 0, 0, err
	}
	deg, err := s.phase.Float(ctx)
	if err != nil {
		return 0, 0, err
	}
	rad := deg * math.Pi / 180
	return amp * sr860Coupling * math.Cos(rad), amp * sr860Coupling * math.Sin(rad), nil
}

func sr860Catalog() driver.Catalog {
	rw := func(path, label, unit string, min, max float64) driver.CatalogParam {
		return driver.CatalogParam{Path: path, Label: label, Unit: unit, Kind: param.KindFloat, Access: param.AccessReadWrite, Min: min, Max: max}
	}
	ro := func(path, label, unit string) driver.CatalogParam {
		return driver.CatalogParam{Path: path, Label: label, Unit: unit, Kind: param.KindFloat, Access: param.AccessRead}
	}
	params := []driver.CatalogParam{
		rw("amplitude", "Sine out amplitude", "V", 1e-9, 2),
		rw("phase", "Reference phase", "deg", -180, 180),
		rw("frequency", "Reference frequency", "Hz", 1e-3, 500e3),
		rw("time_constant", "Time constant", "s", 1e-6, 30e3),
		rw("sensitivity", "Sensitivity", "V", 1e-9, 1),
		ro("X", "In-phase", "V"),
		ro("Y", "Quadrature", "V"),
		ro("R", "Magnitude", "V"),
		ro("P", "Phase", "deg"),
	}
	for i := 1; i <= 4; i++ {
		params = append(params,
			rw(fmt.Sprintf("aux_out%d", i), fmt.Sprintf("Aux output %d", i), "V", -10.5, 10.5),
			ro(fmt.Sprintf("aux_in%d", i), fmt.Sprintf("Aux input %d", i), "V"))
	}
	return driver.Catalog{
		Type:         "SR860",
		NeedsAddress: true,
		InitKeys:     []string{"seed", "noise"},
		Params:       params,
	}
}
