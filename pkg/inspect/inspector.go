package inspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

// Inspector errors.
var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrParameterNotFound  = errors.New("parameter not found")
)

// InstrumentSet is the live instrument view the inspector walks. A loaded
// station satisfies it.
type InstrumentSet interface {
	Instrument(id string) (driver.Instrument, bool)
	Instruments() []string
}

// Inspector provides inspection and mutation capabilities for a station.
type Inspector struct {
	set InstrumentSet
}

// NewInspector creates a new Inspector over the given instrument set.
func NewInspector(set InstrumentSet) *Inspector {
	return &Inspector{set: set}
}

// StationTree represents the complete station structure for display.
type StationTree struct {
	Instruments []InstrumentInfo
}

// InstrumentInfo represents instrument information for display.
type InstrumentInfo struct {
	ID      string
	Type    string
	Address string
	IDN     driver.IDN
	Params  []ParamInfo
}

// ParamInfo represents parameter information for display.
type ParamInfo struct {
	Path    string
	Label   string
	Value   any
	Err     error
	Kind    param.Kind
	Access  param.Access
	Unit    string
	Limits  *param.Limits
	Monitor bool
}

// InspectStation returns a complete tree of the station structure with
// current parameter values.
func (i *Inspector) InspectStation(ctx context.Context) *StationTree {
	tree := &StationTree{}
	for _, id := range i.set.Instruments() {
		info, err := i.InspectInstrument(ctx, id)
		if err != nil {
			continue
		}
		tree.Instruments = append(tree.Instruments, *info)
	}
	return tree
}

// InspectInstrument returns information about a specific instrument,
// reading every readable parameter.
func (i *Inspector) InspectInstrument(ctx context.Context, id string) (*InstrumentInfo, error) {
	inst, ok := i.set.Instrument(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}

	info := &InstrumentInfo{
		ID:      id,
		Type:    inst.Type(),
		Address: inst.Address(),
		IDN:     inst.IDN(),
	}
	for _, path := range inst.Parameters() {
		p, ok := inst.Parameter(path)
		if !ok {
			continue
		}
		meta := p.Metadata()
		pi := ParamInfo{
			Path:    path,
			Label:   meta.FullLabel(),
			Kind:    meta.Kind,
			Access:  meta.Access,
			Unit:    meta.Unit,
			Limits:  meta.Limits,
			Monitor: meta.Monitor,
		}
		pi.Value, pi.Err = p.Get(ctx)
		info.Params = append(info.Params, pi)
	}
	return info, nil
}

// Resolve parses input and resolves it against the instrument set. When the
// first segment is not a known instrument and current is set, the whole
// input is treated as a parameter path of the current instrument.
func (i *Inspector) Resolve(input, current string) (*Path, error) {
	p, err := ParsePath(input)
	if err != nil {
		return nil, err
	}
	if _, ok := i.set.Instrument(p.Instrument); ok {
		return p, nil
	}
	if current == "" {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, p.Instrument)
	}
	if _, ok := i.set.Instrument(current); !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, current)
	}
	return &Path{Instrument: current, Param: input, Raw: input}, nil
}

// Read reads a parameter value using a path.
func (i *Inspector) Read(ctx context.Context, path *Path) (any, *param.Metadata, error) {
	p, err := i.lookup(path)
	if err != nil {
		return nil, nil, err
	}
	v, err := p.Get(ctx)
	if err != nil {
		return nil, p.Metadata(), err
	}
	return v, p.Metadata(), nil
}

// Write writes a parameter value using a path. Access control and limits
// are enforced by the parameter itself.
func (i *Inspector) Write(ctx context.Context, path *Path, value any) error {
	p, err := i.lookup(path)
	if err != nil {
		return err
	}
	return p.Set(ctx, value)
}

// Ramp sweeps a parameter to target using the parameter's rate metadata.
func (i *Inspector) Ramp(ctx context.Context, path *Path, target float64, opts param.RampOptions) error {
	p, err := i.lookup(path)
	if err != nil {
		return err
	}
	return param.Ramp(ctx, p, target, opts)
}

func (i *Inspector) lookup(path *Path) (*param.Parameter, error) {
	inst, ok := i.set.Instrument(path.Instrument)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, path.Instrument)
	}
	if path.Param == "" {
		return nil, fmt.Errorf("%w: %s names an instrument, not a parameter", ErrParameterNotFound, path.Raw)
	}
	p, ok := inst.Parameter(path.Param)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrParameterNotFound, path.Instrument, path.Param)
	}
	return p, nil
}

// FormatStationTree formats the station tree for display.
func (i *Inspector) FormatStationTree(tree *StationTree, formatter *Formatter) string {
	if formatter == nil {
		formatter = NewFormatter()
	}

	var result string
	result += fmt.Sprintf("Station: %d instruments\n", len(tree.Instruments))
	result += "---\n"
	for idx := range tree.Instruments {
		result += i.FormatInstrument(&tree.Instruments[idx], formatter)
	}
	return result
}

// FormatInstrument formats an instrument for display.
func (i *Inspector) FormatInstrument(info *InstrumentInfo, formatter *Formatter) string {
	if formatter == nil {
		formatter = NewFormatter()
	}

	header := fmt.Sprintf("Instrument %s: %s", info.ID, info.Type)
	if info.Address != "" {
		header += fmt.Sprintf(" @ %s", info.Address)
	}
	if info.IDN != (driver.IDN{}) {
		header += fmt.Sprintf(" (%s)", info.IDN)
	}
	result := header + "\n"
	for idx := range info.Params {
		result += formatter.Indent(1, i.formatParamInfo(&info.Params[idx], formatter)) + "\n"
	}
	return result
}

func (i *Inspector) formatParamInfo(p *ParamInfo, f *Formatter) string {
	var valueStr string
	switch {
	case errors.Is(p.Err, param.ErrNotReadable):
		valueStr = "(write-only)"
	case p.Err != nil:
		valueStr = fmt.Sprintf("(error: %v)", p.Err)
	default:
		valueStr = f.FormatValue(p.Value, p.Unit)
	}

	line := fmt.Sprintf("%s = %s", p.Path, valueStr)
	if f.ShowMetadata {
		line += fmt.Sprintf(" (%s, %s", p.Kind, p.Access)
		if p.Limits != nil {
			line += fmt.Sprintf(", %s", p.Limits)
		}
		line += ")"
	}
	return line
}
