package station

import (
	"context"
	"fmt"
	"time"

	"github.com/qnlab/station-go/pkg/driver"
)

// ParamSnapshot is the captured state of one parameter.
type ParamSnapshot struct {
	Value   any    `json:"value,omitempty"`
	Raw     any    `json:"raw,omitempty"`
	Unit    string `json:"unit,omitempty"`
	Label   string `json:"label,omitempty"`
	Monitor bool   `json:"monitor,omitempty"`
}

// InstrumentSnapshot is the captured state of one instrument.
type InstrumentSnapshot struct {
	Type    string                   `json:"type,omitempty"`
	Address string                   `json:"address,omitempty"`
	IDN     string                   `json:"idn,omitempty"`
	Params  map[string]ParamSnapshot `json:"params"`
}

// Snapshot is a point-in-time capture of every loaded instrument and
// parameter, for persistence and tooling.
type Snapshot struct {
	TakenAt     time.Time                     `json:"taken_at"`
	Session     string                        `json:"session,omitempty"`
	Instruments map[string]InstrumentSnapshot `json:"instruments"`
}

// Snapshot captures the station state. Monitored readable parameters are
// read from the instrument; everything else reports its cached value, so
// taking a snapshot does not disturb write-only setpoints.
func (s *Station) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		TakenAt:     time.Now(),
		Session:     s.sessionID,
		Instruments: make(map[string]InstrumentSnapshot),
	}

	for _, id := range s.Instruments() {
		inst, ok := s.Instrument(id)
		if !ok {
			continue
		}
		is := InstrumentSnapshot{
			Type:    inst.Type(),
			Address: inst.Address(),
			Params:  make(map[string]ParamSnapshot),
		}
		if idn := inst.IDN(); idn != (driver.IDN{}) {
			is.IDN = idn.String()
		}
		for _, path := range inst.Parameters() {
			p, ok := inst.Parameter(path)
			if !ok {
				continue
			}
			meta := p.Metadata()

			var value any
			var err error
			if meta.Monitor && meta.Access.CanRead() {
				value, err = p.Get(ctx)
			} else {
				value, err = p.Value()
			}
			if err != nil {
				return nil, fmt.Errorf("snapshot %s.%s: %w", id, path, err)
			}

			is.Params[path] = ParamSnapshot{
				Value:   value,
				Raw:     p.Raw(),
				Unit:    meta.Unit,
				Label:   meta.FullLabel(),
				Monitor: meta.Monitor,
			}
		}
		snap.Instruments[id] = is
	}
	return snap, nil
}
