package inspect

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

type fakeSet struct {
	order []string
	insts map[string]driver.Instrument
}

func (s *fakeSet) Instrument(id string) (driver.Instrument, bool) {
	inst, ok := s.insts[id]
	return inst, ok
}

func (s *fakeSet) Instruments() []string { return s.order }

func newTestSet(t *testing.T) *fakeSet {
	t.Helper()

	dac := driver.NewBase("dac", "MDAC", "192.168.0.10:7000")
	dac.MustAddParameter("ch01.voltage", param.MustNew(&param.Metadata{
		Name:    "ch01.voltage",
		Unit:    "V",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Limits:  &param.Limits{Min: -8, Max: 8},
		Default: 0.0,
	}, nil, nil))
	dac.MustAddParameter("temperature", param.MustNew(&param.Metadata{
		Name:   "temperature",
		Unit:   "C",
		Kind:   param.KindFloat,
		Access: param.AccessRead,
	}, func(ctx context.Context) (any, error) {
		return 35.0, nil
	}, nil))
	dac.MustAddParameter("trigger", param.MustNew(&param.Metadata{
		Name:    "trigger",
		Kind:    param.KindBool,
		Access:  param.AccessWrite,
		Default: false,
	}, nil, nil))

	rf := driver.NewBase("rf", "SG384", "")
	rf.MustAddParameter("frequency", param.MustNew(&param.Metadata{
		Name:    "frequency",
		Unit:    "Hz",
		Kind:    param.KindFloat,
		Access:  param.AccessReadWrite,
		Default: 1e9,
	}, nil, nil))

	return &fakeSet{
		order: []string{"dac", "rf"},
		insts: map[string]driver.Instrument{"dac": dac, "rf": rf},
	}
}

func TestInspectorReadWrite(t *testing.T) {
	ctx := context.Background()
	ins := NewInspector(newTestSet(t))

	path, err := ParsePath("dac.ch01.voltage")
	if err != nil {
		t.Fatalf("ParsePath() error: %v", err)
	}

	v, meta, err := ins.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if v != 0.0 {
		t.Errorf("Read() = %v, want 0", v)
	}
	if meta.Unit != "V" {
		t.Errorf("Unit = %q, want V", meta.Unit)
	}

	if err := ins.Write(ctx, path, 1.5); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	v, _, err = ins.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() after write error: %v", err)
	}
	if v != 1.5 {
		t.Errorf("Read() = %v, want 1.5", v)
	}

	if err := ins.Write(ctx, path, 9.0); !errors.Is(err, param.ErrOutOfRange) {
		t.Errorf("Write(9) error = %v, want ErrOutOfRange", err)
	}

	ro, _ := ParsePath("dac.temperature")
	if err := ins.Write(ctx, ro, 20.0); !errors.Is(err, param.ErrNotWritable) {
		t.Errorf("Write(temperature) error = %v, want ErrNotWritable", err)
	}
}

func TestInspectorLookupErrors(t *testing.T) {
	ctx := context.Background()
	ins := NewInspector(newTestSet(t))

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"UnknownInstrument", "nope.voltage", ErrInstrumentNotFound},
		{"UnknownParameter", "dac.ch99.voltage", ErrParameterNotFound},
		{"PartialPath", "dac", ErrParameterNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ParsePath(tt.input)
			if err != nil {
				t.Fatalf("ParsePath() error: %v", err)
			}
			if _, _, err := ins.Read(ctx, path); !errors.Is(err, tt.wantErr) {
				t.Errorf("Read(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestInspectorResolve(t *testing.T) {
	ins := NewInspector(newTestSet(t))

	t.Run("Absolute", func(t *testing.T) {
		p, err := ins.Resolve("dac.ch01.voltage", "")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p.Instrument != "dac" || p.Param != "ch01.voltage" {
			t.Errorf("Resolve() = %s.%s, want dac.ch01.voltage", p.Instrument, p.Param)
		}
	})

	t.Run("RelativeToCurrent", func(t *testing.T) {
		p, err := ins.Resolve("ch01.voltage", "dac")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p.Instrument != "dac" || p.Param != "ch01.voltage" {
			t.Errorf("Resolve() = %s.%s, want dac.ch01.voltage", p.Instrument, p.Param)
		}
	})

	t.Run("AbsoluteWinsOverCurrent", func(t *testing.T) {
		p, err := ins.Resolve("rf.frequency", "dac")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p.Instrument != "rf" {
			t.Errorf("Instrument = %q, want rf", p.Instrument)
		}
	})

	t.Run("NoCurrentUnknownInstrument", func(t *testing.T) {
		if _, err := ins.Resolve("voltage", ""); !errors.Is(err, ErrInstrumentNotFound) {
			t.Errorf("Resolve() error = %v, want ErrInstrumentNotFound", err)
		}
	})

	t.Run("UnknownCurrent", func(t *testing.T) {
		if _, err := ins.Resolve("voltage", "gone"); !errors.Is(err, ErrInstrumentNotFound) {
			t.Errorf("Resolve() error = %v, want ErrInstrumentNotFound", err)
		}
	})
}

func TestInspectInstrument(t *testing.T) {
	ctx := context.Background()
	ins := NewInspector(newTestSet(t))

	info, err := ins.InspectInstrument(ctx, "dac")
	if err != nil {
		t.Fatalf("InspectInstrument() error: %v", err)
	}
	if info.Type != "MDAC" {
		t.Errorf("Type = %q, want MDAC", info.Type)
	}
	if len(info.Params) != 3 {
		t.Fatalf("len(Params) = %d, want 3", len(info.Params))
	}

	byPath := map[string]ParamInfo{}
	for _, p := range info.Params {
		byPath[p.Path] = p
	}
	if p := byPath["temperature"]; p.Value != 35.0 || p.Err != nil {
		t.Errorf("temperature = %v (err %v), want 35", p.Value, p.Err)
	}
	if p := byPath["trigger"]; !errors.Is(p.Err, param.ErrNotReadable) {
		t.Errorf("trigger err = %v, want ErrNotReadable", p.Err)
	}

	if _, err := ins.InspectInstrument(ctx, "gone"); !errors.Is(err, ErrInstrumentNotFound) {
		t.Errorf("InspectInstrument(gone) error = %v, want ErrInstrumentNotFound", err)
	}
}

func TestFormatStationTree(t *testing.T) {
	ctx := context.Background()
	ins := NewInspector(newTestSet(t))

	tree := ins.InspectStation(ctx)
	if len(tree.Instruments) != 2 {
		t.Fatalf("len(Instruments) = %d, want 2", len(tree.Instruments))
	}

	out := ins.FormatStationTree(tree, nil)
	for _, want := range []string{
		"Station: 2 instruments",
		"Instrument dac: MDAC @ 192.168.0.10:7000",
		"ch01.voltage = 0 V",
		"trigger = (write-only)",
		"Instrument rf: SG384",
		"frequency = 1 GHz",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
