package station

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/qnlab/station-go/pkg/param"
)

// ParseFile reads and parses a station configuration file.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse parses station configuration data. Structural problems (invalid
// YAML, duplicate keys, wrong value types) fail here with a line number;
// semantic problems are left to validation so they can all be reported at
// once.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{byID: make(map[string]*Instrument)}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		if err == io.EOF {
			return cfg, nil
		}
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := dec.Decode(new(yaml.Node)); err != io.EOF {
		return nil, fmt.Errorf("multiple YAML documents, expected one")
	}

	if len(root.Content) == 0 {
		return cfg, nil
	}
	doc := deref(root.Content[0])
	if isNull(doc) {
		return cfg, nil
	}
	if doc.Kind != yaml.MappingNode {
		return nil, parseErrf(doc, "top level must be a mapping")
	}

	seen := map[string]int{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], deref(doc.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return nil, parseErrf(key, "duplicate key %q (first defined at line %d)", key.Value, prev)
		}
		seen[key.Value] = key.Line

		switch key.Value {
		case "instruments":
			if err := parseInstruments(value, cfg); err != nil {
				return nil, err
			}
		default:
			cfg.Unknown = append(cfg.Unknown, KeyAt{Key: key.Value, Line: key.Line})
		}
	}
	return cfg, nil
}

func parseInstruments(node *yaml.Node, cfg *Config) error {
	if isNull(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return parseErrf(node, "instruments must be a mapping")
	}

	seen := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], deref(node.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return parseErrf(key, "duplicate instrument %q (first defined at line %d)", key.Value, prev)
		}
		seen[key.Value] = key.Line

		inst, err := parseInstrument(key.Value, key.Line, value)
		if err != nil {
			return err
		}
		cfg.Instruments = append(cfg.Instruments, inst)
		cfg.byID[inst.ID] = inst
	}
	return nil
}

func parseInstrument(id string, line int, node *yaml.Node) (*Instrument, error) {
	inst := &Instrument{ID: id, Line: line}
	if isNull(node) {
		return inst, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrf(node, "instrument %q must be a mapping", id)
	}

	seen := map[string]int{}
	overrideSeen := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], deref(node.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return nil, parseErrf(key, "%s: duplicate key %q (first defined at line %d)", id, key.Value, prev)
		}
		seen[key.Value] = key.Line

		var err error
		switch key.Value {
		case "driver":
			inst.Driver, err = decodeString(value, id+".driver")
		case "type":
			inst.Type, err = decodeString(value, id+".type")
		case "address":
			inst.Address, err = decodeString(value, id+".address")
		case "port":
			inst.Port, err = decodeInt(value, id+".port")
		case "auto_reconnect":
			inst.AutoReconnect, err = decodeBool(value, id+".auto_reconnect")
		case "init":
			inst.Init, err = parseInit(id, value)
		case "add_parameters":
			inst.AddParams, err = parseParams(id, "add_parameters", value, nil, inst)
		case "parameters", "parameter":
			var params []*Param
			params, err = parseParams(id, key.Value, value, overrideSeen, inst)
			inst.Overrides = append(inst.Overrides, params...)
		default:
			inst.Unknown = append(inst.Unknown, KeyAt{Key: key.Value, Line: key.Line})
		}
		if err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// parseParams parses an add_parameters or parameters block. seen carries
// duplicate detection across the "parameters" and "parameter" spellings;
// nil means a fresh map.
func parseParams(id, block string, node *yaml.Node, seen map[string]int, inst *Instrument) ([]*Param, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrf(node, "%s.%s must be a mapping", id, block)
	}
	if seen == nil {
		seen = map[string]int{}
	}

	var params []*Param
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], deref(node.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return nil, parseErrf(key, "%s: duplicate parameter %q (first defined at line %d)", id, key.Value, prev)
		}
		seen[key.Value] = key.Line

		p, err := parseParam(id, block, key.Value, key.Line, value, inst)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func parseParam(id, block, name string, line int, node *yaml.Node, inst *Instrument) (*Param, error) {
	p := &Param{Name: name, Line: line}
	if isNull(node) {
		return p, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrf(node, "%s.%s.%s must be a mapping", id, block, name)
	}

	where := fmt.Sprintf("%s.%s.%s", id, block, name)
	seen := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], deref(node.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return nil, parseErrf(key, "%s: duplicate key %q (first defined at line %d)", where, key.Value, prev)
		}
		seen[key.Value] = key.Line

		var err error
		switch key.Value {
		case "source":
			p.Source, err = decodeString(value, where+".source")
		case "label":
			p.Label, err = decodeString(value, where+".label")
		case "unit":
			p.Unit, err = decodeString(value, where+".unit")
		case "scale":
			var scale float64
			scale, err = decodeFloat(value, where+".scale")
			p.Scale = &scale
		case "limits":
			p.Limits, err = parseLimits(where, value)
		case "monitor":
			var monitor bool
			monitor, err = decodeBool(value, where+".monitor")
			p.Monitor = &monitor
		case "initial_value":
			p.InitialValue, err = decodeScalar(value, where+".initial_value")
		default:
			inst.Unknown = append(inst.Unknown, KeyAt{Key: where + "." + key.Value, Line: key.Line})
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func parseInit(id string, node *yaml.Node) (map[string]any, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrf(node, "%s.init must be a mapping", id)
	}

	out := make(map[string]any, len(node.Content)/2)
	seen := map[string]int{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], deref(node.Content[i+1])
		if prev, dup := seen[key.Value]; dup {
			return nil, parseErrf(key, "%s.init: duplicate key %q (first defined at line %d)", id, key.Value, prev)
		}
		seen[key.Value] = key.Line

		var v any
		if err := value.Decode(&v); err != nil {
			return nil, parseErrf(value, "%s.init.%s: %v", id, key.Value, err)
		}
		out[key.Value] = v
	}
	return out, nil
}

// parseLimits accepts a two-element sequence [min, max] or the string
// form "min,max".
func parseLimits(where string, node *yaml.Node) (*param.Limits, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) != 2 {
			return nil, parseErrf(node, "%s.limits must have exactly two values", where)
		}
		min, err := decodeFloat(deref(node.Content[0]), where+".limits")
		if err != nil {
			return nil, err
		}
		max, err := decodeFloat(deref(node.Content[1]), where+".limits")
		if err != nil {
			return nil, err
		}
		return &param.Limits{Min: min, Max: max}, nil

	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, parseErrf(node, "%s.limits: %v", where, err)
		}
		minStr, maxStr, found := strings.Cut(s, ",")
		if !found {
			return nil, parseErrf(node, `%s.limits string must be "min,max", got %q`, where, s)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(minStr), 64)
		if err != nil {
			return nil, parseErrf(node, "%s.limits: invalid min %q", where, strings.TrimSpace(minStr))
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(maxStr), 64)
		if err != nil {
			return nil, parseErrf(node, "%s.limits: invalid max %q", where, strings.TrimSpace(maxStr))
		}
		return &param.Limits{Min: min, Max: max}, nil

	default:
		return nil, parseErrf(node, `%s.limits must be a [min, max] pair or "min,max" string`, where)
	}
}

func decodeString(node *yaml.Node, what string) (string, error) {
	if node.Kind != yaml.ScalarNode || isNull(node) {
		return "", parseErrf(node, "%s must be a string", what)
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return "", parseErrf(node, "%s: %v", what, err)
	}
	return s, nil
}

func decodeInt(node *yaml.Node, what string) (int, error) {
	var v int
	if err := node.Decode(&v); err != nil {
		return 0, parseErrf(node, "%s must be an integer", what)
	}
	return v, nil
}

func decodeFloat(node *yaml.Node, what string) (float64, error) {
	var v float64
	if err := node.Decode(&v); err != nil {
		return 0, parseErrf(node, "%s must be a number", what)
	}
	return v, nil
}

func decodeBool(node *yaml.Node, what string) (bool, error) {
	var v bool
	if err := node.Decode(&v); err != nil {
		return false, parseErrf(node, "%s must be a boolean", what)
	}
	return v, nil
}

// decodeScalar decodes a scalar into its natural Go type.
func decodeScalar(node *yaml.Node, what string) (any, error) {
	if node.Kind != yaml.ScalarNode {
		return nil, parseErrf(node, "%s must be a scalar", what)
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return nil, parseErrf(node, "%s: %v", what, err)
	}
	return v, nil
}

func deref(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func parseErrf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{n.Line}, args...)...)
}
