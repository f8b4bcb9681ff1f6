package driver

import (
	"fmt"
	"strings"

	"github.com/qnlab/station-go/pkg/param"
)

// CatalogParam describes one parameter a driver exposes. Paths in channel
// blocks are relative to the channel prefix.
type CatalogParam struct {
	Path   string
	Label  string
	Unit   string
	Kind   param.Kind
	Access param.Access

	// Min/Max bound the native value range. Both zero means unbounded.
	Min float64
	Max float64

	// Enum restricts string parameters to a fixed set of values.
	Enum []string
}

// ChannelBlock describes a repeated group of per-channel parameters.
// Format is a printf pattern for the channel prefix (e.g. "ch%02d"),
// applied to indexes First through Last inclusive.
type ChannelBlock struct {
	Format string
	First  int
	Last   int
	Params []CatalogParam
}

// Prefixes returns the expanded channel prefixes.
func (c ChannelBlock) Prefixes() []string {
	prefixes := make([]string, 0, c.Last-c.First+1)
	for i := c.First; i <= c.Last; i++ {
		prefixes = append(prefixes, fmt.Sprintf(c.Format, i))
	}
	return prefixes
}

// Catalog is the static description of a driver's parameter surface.
// Configuration checks resolve source paths against it without connecting.
type Catalog struct {
	// Type is the driver type name (e.g. "MDAC").
	Type string

	// Dynamic marks drivers whose parameters only exist after connecting
	// (discovered at runtime). Static path checks are skipped for them.
	Dynamic bool

	// NeedsAddress marks drivers that cannot connect without an address.
	NeedsAddress bool

	// InitKeys lists the accepted init kwargs.
	InitKeys []string

	// Params are the instrument-level parameters.
	Params []CatalogParam

	// Channels are the per-channel parameter blocks.
	Channels []ChannelBlock
}

// Resolve looks up a parameter path, expanding channel blocks.
func (c Catalog) Resolve(path string) (CatalogParam, bool) {
	for _, p := range c.Params {
		if p.Path == path {
			return p, true
		}
	}
	for _, block := range c.Channels {
		prefix, rest, ok := strings.Cut(path, ".")
		if !ok {
			continue
		}
		for i := block.First; i <= block.Last; i++ {
			if fmt.Sprintf(block.Format, i) != prefix {
				continue
			}
			for _, p := range block.Params {
				if p.Path == rest {
					full := p
					full.Path = path
					return full, true
				}
			}
		}
	}
	return CatalogParam{}, false
}

// Paths enumerates every parameter path the catalog describes.
func (c Catalog) Paths() []string {
	var paths []string
	for _, p := range c.Params {
		paths = append(paths, p.Path)
	}
	for _, block := range c.Channels {
		for _, prefix := range block.Prefixes() {
			for _, p := range block.Params {
				paths = append(paths, prefix+"."+p.Path)
			}
		}
	}
	return paths
}

// AllowsInit reports whether the catalog declares the init kwarg.
// A catalog with no declared keys accepts anything (the driver decides).
func (c Catalog) AllowsInit(key string) bool {
	if len(c.InitKeys) == 0 {
		return true
	}
	for _, k := range c.InitKeys {
		if k == key {
			return true
		}
	}
	return false
}
