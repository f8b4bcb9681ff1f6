package instruments

import (
	"context"
	"fmt"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

const mso44DefaultNoise = 5e-3

var mso44TriggerSources = []string{"ch1", "ch2", "ch3", "ch4"}

// MSO44 simulates a Tektronix MSO44 oscilloscope with four channels. The
// measurement parameters report a 1 Vpp sine on every channel.
type MSO44 struct {
	*driver.Base

	sim   *simSource
	noise float64
}

func newMSO44(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init, "seed", "noise"); err != nil {
		return nil, err
	}
	seed, err := driver.InitInt(cfg.Init, "seed", 0)
	if err != nil {
		return nil, err
	}
	noise, err := driver.InitFloat(cfg.Init, "noise", mso44DefaultNoise)
	if err != nil {
		return nil, err
	}

	m := &MSO44{
		Base:  driver.NewBase(cfg.Name, "MSO44", cfg.Endpoint()),
		sim:   newSimSource(int64(seed)),
		noise: noise,
	}
	m.SetIDN(driver.IDN{
		Vendor:   "TEKTRONIX",
		Model:    "MSO44",
		Serial:   "sim-" + cfg.Name,
		Firmware: "1.44.3",
	})

	m.MustAddParameter("timebase", param.MustNew(&param.Metadata{
		Name:    "timebase",
		Label:   "Horizontal scale",
		Unit:    "s/div",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 200e-12, Max: 1000},
		Default: 1e-3,
	}, nil, nil))
	m.MustAddParameter("trigger_level", param.MustNew(&param.Metadata{
		Name:    "trigger_level",
		Label:   "Trigger level",
		Unit:    "V",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: -5, Max: 5},
		Default: 0.0,
	}, nil, nil))
	m.MustAddParameter("trigger_source", param.MustNew(&param.Metadata{
		Name:    "trigger_source",
		Label:   "Trigger source",
		Kind:    param.KindString,
		Access:  param.AccessReadWrite,
		Enum:    mso44TriggerSources,
		Default: "ch1",
	}, nil, nil))

	for i := 1; i <= 4; i++ {
		prefix := fmt.Sprintf("ch%d", i)
		setpoint := func(name, label, unit string, min, max, initial float64) {
			path := prefix + "." + name
			m.MustAddParameter(path, param.MustNew(&param.Metadata{
				Name:    path,
				Label:   fmt.Sprintf("Channel %d %s", i, label),
				Unit:    unit,
				Kind:    param.KindFloat,
				Access:  param.AccessReadWrite,
				Limits:  &param.Limits{Min: min, Max: max},
				Default: initial,
			}, nil, nil))
		}
		measured := func(name, label string, center float64) {
			path := prefix + "." + name
			m.MustAddParameter(path, param.MustNew(&param.Metadata{
				Name:   path,
				Label:  fmt.Sprintf("Channel %d %s", i, label),
				Unit:   "V",
				Kind:   param.KindFloat,
				Access: param.AccessRead,
			}, func(ctx context.Context) (any, error) {
				return m.sim.noisy(center, m.noise), nil
			}, nil))
		}
		setpoint("scale", "scale", "V/div", 500e-6, 10, 1)
		setpoint("offset", "offset", "V", -5, 5, 0)
		measured("vpp", "peak-to-peak", 1.0)
		measured("vrms", "RMS", 0.354)
		measured("mean", "mean", 0)
	}
	return m, nil
}

func mso44Catalog() driver.Catalog {
	return driver.Catalog{
		Type:         "MSO44",
		NeedsAddress: true,
		InitKeys:     []string{"seed", "noise"},
		Params: []driver.CatalogParam{
			{Path: "timebase", Label: "Horizontal scale", Unit: "s/div", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 200e-12, Max: 1000},
			{Path: "trigger_level", Label: "Trigger level", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: -5, Max: 5},
			{Path: "trigger_source", Label: "Trigger source", Kind: param.KindString, Access: param.AccessReadWrite, Enum: mso44TriggerSources},
		},
		Channels: []driver.ChannelBlock{{
			Format: "ch%d",
			First:  1,
			Last:   4,
			Params: []driver.CatalogParam{
				{Path: "scale", Label: "Vertical scale", Unit: "V/div", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 500e-6, Max: 10},
				{Path: "offset", Label: "Vertical offset", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: -5, Max: 5},
				{Path: "vpp", Label: "Peak-to-peak", Unit: "V", Kind: param.KindFloat, Access: param.AccessRead},
				{Path: "vrms", Label: "RMS", Unit: "V", Kind: param.KindFloat, Access: param.AccessRead},
				{Path: "mean", Label: "Mean", Unit: "V", Kind: param.KindFloat, Access: param.AccessRead},
			},
		}},
	}
}
