package instruments

import (
	"context"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

// LDA602 simulates a Vaunix LabBrick LDA-602 digital attenuator. The device
// hangs off USB, so no address is required. It powers up at full attenuation.
type LDA602 struct {
	*driver.Base
}

func newLDA602(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init); err != nil {
		return nil, err
	}
	l := &LDA602{Base: driver.NewBase(cfg.Name, "LDA602", cfg.Endpoint())}
	l.SetIDN(driver.IDN{
		Vendor:   "Vaunix",
		Model:    "LDA-602",
		Serial:   "sim-" + cfg.Name,
		Firmware: "2.0",
	})
	l.MustAddParameter("attenuation", param.MustNew(&param.Metadata{
		Name:    "attenuation",
		Label:   "Attenuation",
		Unit:    "dB",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 0, Max: 63},
		Step:    0.5,
		Default: 63.0,
	}, nil, nil))
	l.MustAddParameter("working_frequency", param.MustNew(&param.Metadata{
		Name:    "working_frequency",
		Label:   "Working frequency",
		Unit:    "Hz",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 200e6, Max: 6e9},
		Default: 1e9,
	}, nil, nil))
	return l, nil
}

func lda602Catalog() driver.Catalog {
	return driver.Catalog{
		Type: "LDA602",
		Params: []driver.CatalogParam{
			{Path: "attenuation", Label: "Attenuation", Unit: "dB", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 0, Max: 63},
			{Path: "working_frequency", Label: "Working frequency", Unit: "Hz", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 200e6, Max: 6e9},
		},
	}
}
