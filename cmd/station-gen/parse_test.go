package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseInstrumentDef_Minimal(t *testing.T) {
	yaml := `
type: SR860
description: "Stanford Research SR860 lock-in amplifier"
needs_address: true
init_keys: [seed, noise]
params:
  - path: amplitude
    label: Sine out amplitude
    unit: V
    kind: float
    access: readWrite
    min: 1.0e-9
    max: 2
  - path: X
    unit: V
    kind: float
    access: readOnly
`
	def, err := ParseInstrumentDef([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseInstrumentDef failed: %v", err)
	}

	if def.Type != "SR860" {
		t.Errorf("type = %q, want SR860", def.Type)
	}
	if !def.NeedsAddress {
		t.Error("needs_address = false, want true")
	}
	if len(def.InitKeys) != 2 || def.InitKeys[0] != "seed" {
		t.Errorf("init_keys = %v, want [seed noise]", def.InitKeys)
	}
	if len(def.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(def.Params))
	}

	amp := def.Params[0]
	if amp.Path != "amplitude" || amp.Kind != "float" || amp.Access != "readWrite" {
		t.Errorf("unexpected amplitude def: %+v", amp)
	}
	if amp.Min == nil || *amp.Min != 1e-9 {
		t.Errorf("amplitude min = %v, want 1e-9", amp.Min)
	}
	if amp.Max == nil || *amp.Max != 2 {
		t.Errorf("amplitude max = %v, want 2", amp.Max)
	}
	if def.Params[1].Min != nil || def.Params[1].Max != nil {
		t.Errorf("X should have no limits, got %+v", def.Params[1])
	}
}

func TestParseInstrumentDef_Channels(t *testing.T) {
	yaml := `
type: MDAC
channels:
  - format: ch%02d
    first: 1
    last: 64
    params:
      - path: voltage
        kind: float
        access: readWrite
        min: -8
        max: 8
`
	def, err := ParseInstrumentDef([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseInstrumentDef failed: %v", err)
	}

	if len(def.Channels) != 1 {
		t.Fatalf("channels = %d, want 1", len(def.Channels))
	}
	ch := def.Channels[0]
	if ch.Format != "ch%02d" || ch.First != 1 || ch.Last != 64 {
		t.Errorf("unexpected channel block: %+v", ch)
	}
	if len(ch.Params) != 1 || ch.Params[0].Path != "voltage" {
		t.Errorf("unexpected channel params: %+v", ch.Params)
	}
}

func TestParseInstrumentDef_MissingType(t *testing.T) {
	_, err := ParseInstrumentDef([]byte("params: []\n"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing type") {
		t.Errorf("error = %q, want missing type", err)
	}
}

func TestParseInstrumentDef_BadYAML(t *testing.T) {
	_, err := ParseInstrumentDef([]byte("type: [unclosed\n"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestLoadInstrumentDef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sr860.yaml")
	if err := os.WriteFile(path, []byte("type: SR860\n"), 0o644); err != nil {
		t.Fatalf("write def: %v", err)
	}

	def, err := LoadInstrumentDef(path)
	if err != nil {
		t.Fatalf("LoadInstrumentDef failed: %v", err)
	}
	if def.Type != "SR860" {
		t.Errorf("type = %q, want SR860", def.Type)
	}

	if _, err := LoadInstrumentDef(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
