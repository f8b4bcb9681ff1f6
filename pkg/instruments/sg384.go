package instruments

import (
	"context"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

// SG384 simulates a Stanford Research Systems SG384 RF signal generator.
// It is a pure source: every parameter is a setpoint, nothing is measured.
type SG384 struct {
	*driver.Base
}

func newSG384(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init); err != nil {
		return nil, err
	}
	s := &SG384{Base: driver.NewBase(cfg.Name, "SG384", cfg.Endpoint())}
	s.SetIDN(driver.IDN{
		Vendor:   "Stanford Research Systems",
		Model:    "SG384",
		Serial:   "sim-" + cfg.Name,
		Firmware: "1.22.26",
	})

	source := func(name, label, unit string, min, max, initial float64) {
		s.MustAddParameter(name, param.MustNew(&param.Metadata{
			Name:    name,
			Label:   label,
			Unit:    unit,
			Kind:    param.KindFloat,
			Access:  param.AccessReadWrite,
			Limits:  &param.Limits{Min: min, Max: max},
			Default: initial,
		}, nil, nil))
	}
	source("frequency", "Frequency", "Hz", 950e3, 4.05e9, 2.87e9)
	source("amplitude", "Amplitude", "dBm", -110, 16.5, -30)
	source("phase", "Phase", "deg", -360, 360, 0)
	s.MustAddParameter("enabled", param.MustNew(&param.Metadata{
		Name:    "enabled",
		Label:   "RF output enabled",
		Kind:    param.KindBool,
		Access:  param.AccessReadWrite,
		Default: false,
	}, nil, nil))
	return s, nil
}

func sg384Catalog() driver.Catalog {
	rw := func(path, label, unit string, min, max float64) driver.CatalogParam {
		return driver.CatalogParam{Path: path, Label: label, Unit: unit, Kind: param.KindFloat, Access: param.AccessReadWrite, Min: min, Max: max}
	}
	return driver.Catalog{
		Type:         "SG384",
		NeedsAddress: true,
		Params: []driver.CatalogParam{
			rw("frequency", "Frequency", "Hz", 950e3, 4.05e9),
			rw("amplitude", "Amplitude", "dBm", -110, 16.5),
			rw("phase", "Phase", "deg", -360, 360),
			{Path: "enabled", Label: "RF output enabled", Kind: param.KindBool, Access: param.AccessReadWrite},
		},
	}
}
