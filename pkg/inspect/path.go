// Package inspect provides station inspection and parameter manipulation
// utilities.
//
// The inspect package offers a unified interface for:
//   - Parsing dotted path expressions (e.g. "mdac.ch01.voltage")
//   - Resolving paths against the live instrument set
//   - Reading and writing parameters
//   - Formatting output for display
package inspect

import (
	"errors"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath   = errors.New("empty path")
	ErrInvalidPath = errors.New("invalid path format")
)

// Path represents a parsed inspection path.
// Format: instrument[.parameter[.subparameter...]]
type Path struct {
	// Instrument is the instrument identifier.
	Instrument string

	// Param is the parameter path within the instrument, with channel
	// segments joined by dots (e.g. "ch01.voltage"). Empty for partial
	// paths.
	Param string

	// IsPartial indicates the path names only an instrument (used for
	// inspect operations that list all parameters).
	IsPartial bool

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses a path string into a Path struct.
//
// Supported formats:
//   - "instrument.parameter" - full parameter path
//   - "instrument.channel.parameter" - channel parameter path
//   - "instrument" - partial (for listing parameters)
//
// Every segment must be an identifier: letters, digits and underscores,
// not starting with a digit.
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}
	if strings.HasPrefix(input, ".") || strings.HasSuffix(input, ".") || strings.Contains(input, "..") {
		return nil, ErrInvalidPath
	}

	parts := strings.Split(input, ".")
	for _, part := range parts {
		if !isIdent(part) {
			return nil, ErrInvalidPath
		}
	}

	p := &Path{Instrument: parts[0], Raw: input}
	if len(parts) == 1 {
		p.IsPartial = true
		return p, nil
	}
	p.Param = strings.Join(parts[1:], ".")
	return p, nil
}

// String returns the path as a string.
func (p *Path) String() string {
	if p.Param == "" {
		return p.Instrument
	}
	return p.Instrument + "." + p.Param
}

// isIdent reports whether s is a valid path segment.
func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
