package instruments

import (
	"context"
	"fmt"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

const ni9215DefaultNoise = 1e-3

// NI9215 simulates a National Instruments NI-9215 four-channel analog input
// module. The inputs float around zero with gaussian noise.
type NI9215 struct {
	*driver.Base

	sim   *simSource
	noise float64
}

func newNI9215(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init, "seed", "noise"); err != nil {
		return nil, err
	}
	seed, err := driver.InitInt(cfg.Init, "seed", 0)
	if err != nil {
		return nil, err
	}
	noise, err := driver.InitFloat(cfg.Init, "noise", ni9215DefaultNoise)
	if err != nil {
		return nil, err
	}

	n := &NI9215{
		Base:  driver.NewBase(cfg.Name, "NI9215", cfg.Endpoint()),
		sim:   newSimSource(int64(seed)),
		noise: noise,
	}
	n.SetIDN(driver.IDN{
		Vendor:   "National Instruments",
		Model:    "NI-9215",
		Serial:   "sim-" + cfg.Name,
		Firmware: "19.6",
	})

	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("ai%d", i)
		n.MustAddParameter(name, param.MustNew(&param.Metadata{
			Name:   name,
			Label:  fmt.Sprintf("Analog input %d", i),
			Unit:   "V",
			Kind:   param.KindFloat,
			Access: param.AccessRead,
		}, func(ctx context.Context) (any, error) {
			return n.sim.noisy(0, n.noise), nil
		}, nil))
	}
	n.MustAddParameter("sample_rate", param.MustNew(&param.Metadata{
		Name:    "sample_rate",
		Label:   "Sample rate",
		Unit:    "Hz",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 1, Max: 100e3},
		Default: 1000.0,
	}, nil, nil))
	return n, nil
}

func ni9215Catalog() driver.Catalog {
	params := make([]driver.CatalogParam, 0, 5)
	for i := 0; i < 4; i++ {
		params = append(params, driver.CatalogParam{
			Path:   fmt.Sprintf("ai%d", i),
			Label:  fmt.Sprintf("Analog input %d", i),
			Unit:   "V",
			Kind:   param.KindFloat,
			Access: param.AccessRead,
		})
	}
	params = append(params, driver.CatalogParam{
		Path: "sample_rate", Label: "Sample rate", Unit: "Hz",
		Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 1, Max: 100e3,
	})
	return driver.Catalog{
		Type:         "NI9215",
		NeedsAddress: true,
		InitKeys:     []string{"seed", "noise"},
		Params:       params,
	}
}
