package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RawInstrumentDef represents an instrument definition loaded from YAML.
type RawInstrumentDef struct {
	Type         string          `yaml:"type"`
	Description  string          `yaml:"description"`
	Dynamic      bool            `yaml:"dynamic"`
	NeedsAddress bool            `yaml:"needs_address"`
	InitKeys     []string        `yaml:"init_keys"`
	Params       []RawParamDef   `yaml:"params"`
	Channels     []RawChannelDef `yaml:"channels"`
}

// RawParamDef represents a single parameter definition.
type RawParamDef struct {
	Path   string   `yaml:"path"`
	Label  string   `yaml:"label"`
	Unit   string   `yaml:"unit"`
	Kind   string   `yaml:"kind"`   // "float", "int", "bool", "string"
	Access string   `yaml:"access"` // "readOnly", "writeOnly", "readWrite"
	Min    *float64 `yaml:"min"`
	Max    *float64 `yaml:"max"`
	Enum   []string `yaml:"enum"`
}

// RawChannelDef represents a repeated per-channel parameter block.
type RawChannelDef struct {
	Format string        `yaml:"format"` // printf pattern, e.g. "ch%02d"
	First  int           `yaml:"first"`
	Last   int           `yaml:"last"`
	Params []RawParamDef `yaml:"params"`
}

// ParseInstrumentDef parses an instrument definition from YAML bytes.
func ParseInstrumentDef(data []byte) (*RawInstrumentDef, error) {
	var def RawInstrumentDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing instrument def: %w", err)
	}
	if def.Type == "" {
		return nil, fmt.Errorf("instrument definition missing type")
	}
	return &def, nil
}

// LoadInstrumentDef loads and parses an instrument definition from a file.
func LoadInstrumentDef(path string) (*RawInstrumentDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseInstrumentDef(data)
}
