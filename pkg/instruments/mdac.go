package instruments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

const (
	mdacMaxChannels  = 64
	mdacVoltageLimit = 8.0
	mdacDefaultRate  = 0.05
	mdacDefaultStep  = 5e-3
)

// relayStates are the positions of the MDAC breakout relays.
var relayStates = []string{"open", "close"}

// MDAC simulates a QNL multi-channel digital-analog converter. Every channel
// carries a voltage source with a hardware ramp rate, a selectable output
// filter and four breakout relays. Channels come up grounded.
type MDAC struct {
	*driver.Base

	channels int
	logging  bool
	sim      *simSource
}

func newMDAC(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init, "num_channels", "logging", "seed"); err != nil {
		return nil, err
	}
	channels, err := driver.InitInt(cfg.Init, "num_channels", mdacMaxChannels)
	if err != nil {
		return nil, err
	}
	if channels < 1 || channels > mdacMaxChannels {
		return nil, fmt.Errorf("num_channels must be between 1 and %d, got %d", mdacMaxChannels, channels)
	}
	logging, err := driver.InitBool(cfg.Init, "logging", true)
	if err != nil {
		return nil, err
	}
	seed, err := driver.InitInt(cfg.Init, "seed", 0)
	if err != nil {
		return nil, err
	}

	m := &MDAC{
		Base:     driver.NewBase(cfg.Name, "MDAC", cfg.Endpoint()),
		channels: channels,
		logging:  logging,
		sim:      newSimSource(int64(seed)),
	}
	m.SetIDN(driver.IDN{
		Vendor:   "QNL",
		Model:    "MDAC",
		Serial:   "sim-" + cfg.Name,
		Firmware: "1.8",
	})

	for i := 1; i <= channels; i++ {
		if err := m.addChannel(i); err != nil {
			return nil, err
		}
	}
	m.MustAddParameter("temperature", param.MustNew(&param.Metadata{
		Name:   "temperature",
		Label:  "Board temperature",
		Unit:   "C",
		Kind:   param.KindFloat,
		Access: param.AccessRead,
	}, func(ctx context.Context) (any, error) {
		return m.sim.noisy(35.2, 0.05), nil
	}, nil))
	return m, nil
}

func (m *MDAC) addChannel(index int) error {
	prefix := fmt.Sprintf("ch%02d", index)

	var setVoltage param.SetFunc
	if m.logging {
		setVoltage = func(ctx context.Context, raw any) error {
			slog.Debug("mdac write", "instrument", m.Name(), "channel", prefix, "voltage", raw)
			return nil
		}
	}

	add := func(name string, meta *param.Metadata, setter param.SetFunc) error {
		path := prefix + "." + name
		meta.Name = path
		p, err := param.New(meta, nil, setter)
		if err != nil {
			return err
		}
		return m.AddParameter(path, p)
	}

	if err := add("voltage", &param.Metadata{
		Label:   fmt.Sprintf("Channel %d voltage", index),
		Unit:    "V",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: -mdacVoltageLimit, Max: mdacVoltageLimit},
		Rate:    mdacDefaultRate,
		Step:    mdacDefaultStep,
		Default: 0.0,
	}, setVoltage); err != nil {
		return err
	}
	if err := add("rate", &param.Metadata{
		Label:   fmt.Sprintf("Channel %d ramp rate", index),
		Unit:    "V/s",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 0, Max: 10},
		Default: mdacDefaultRate,
	}, nil); err != nil {
		return err
	}
	// filter selects the output low-pass: 1 = 10 Hz, 2 = 10 kHz.
	if err := add("filter", &param.Metadata{
		Label:   fmt.Sprintf("Channel %d filter", index),
		Kind:    param.KindInt,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: 1, Max: 2},
		Default: 1,
	}, nil); err != nil {
		return err
	}
	relays := []struct {
		name    string
		label   string
		initial string
	}{
		{"gnd", "ground relay", "close"},
		{"smc", "SMC relay", "open"},
		{"microd", "Micro-D relay", "open"},
		{"dac_output", "DAC output relay", "open"},
	}
	for _, r := range relays {
		if err := add(r.name, &param.Metadata{
			Label:   fmt.Sprintf("Channel %d %s", index, r.label),
			Kind:    param.KindString,
			Access:  param.AccessReadWrite,
			Enum:    relayStates,
			Default: r.initial,
		}, nil); err != nil {
			return err
		}
	}
	return nil
}

func mdacCatalog() driver.Catalog {
	relay := func(name, label string) driver.CatalogParam {
		return driver.CatalogParam{
			Path:   name,
			Label:  label,
			Kind:   param.KindString,
			Access: param.AccessReadWrite,
			Enum:   relayStates,
		}
	}
	return driver.Catalog{
		Type:         "MDAC",
		NeedsAddress: true,
		InitKeys:     []string{"num_channels", "logging", "seed"},
		Params: []driver.CatalogParam{
			{Path: "temperature", Label: "Board temperature", Unit: "C", Kind: param.KindFloat, Access: param.AccessRead},
		},
		Channels: []driver.ChannelBlock{{
			Format: "ch%02d",
			First:  1,
			Last:   mdacMaxChannels,
			Params: []driver.CatalogParam{
				{Path: "voltage", Label: "Channel voltage", Unit: "V", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: -mdacVoltageLimit, Max: mdacVoltageLimit},
				{Path: "rate", Label: "Ramp rate", Unit: "V/s", Kind: param.KindFloat, Access: param.AccessReadWrite, Min: 0, Max: 10},
				{Path: "filter", Label: "Output filter", Kind: param.KindInt, Access: param.AccessReadWrite, Min: 1, Max: 2},
				relay("gnd", "Ground relay"),
				relay("smc", "SMC relay"),
				relay("microd", "Micro-D relay"),
				relay("dac_output", "DAC output relay"),
			},
		}},
	}
}
