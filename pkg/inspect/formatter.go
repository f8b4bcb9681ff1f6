package inspect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/qnlab/station-go/pkg/param"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes kind, access, and limit information
	ShowMetadata bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata: true,
		IndentWidth:  2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	indent := strings.Repeat(" ", depth*width)
	return indent + content
}

// FormatValue formats a value for display, including SI prefixing for
// floating point quantities.
func (f *Formatter) FormatValue(value any, unit string) string {
	if value == nil {
		return "null"
	}

	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"

	case string:
		return fmt.Sprintf("%q", v)

	case int64:
		return withUnit(strconv.FormatInt(v, 10), unit)

	case int:
		return withUnit(strconv.Itoa(v), unit)

	case float64:
		return FormatSI(v, unit)

	case float32:
		return FormatSI(float64(v), unit)

	default:
		return fmt.Sprintf("%v", v)
	}
}

func withUnit(s, unit string) string {
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// siPrefixes maps the power-of-ten exponent to its SI prefix.
var siPrefixes = map[int]string{
	-15: "f",
	-12: "p",
	-9:  "n",
	-6:  "µ",
	-3:  "m",
	0:   "",
	3:   "k",
	6:   "M",
	9:   "G",
	12:  "T",
	15:  "P",
}

// noPrefixUnits are units that read wrong with an SI prefix attached.
var noPrefixUnits = map[string]bool{
	"dB":  true,
	"dBm": true,
	"deg": true,
	"%":   true,
	"C":   true,
}

// FormatSI renders a float with an SI-prefixed unit: 0.0123 with unit "V"
// becomes "12.3 mV". Unitless values and excluded units are rendered
// without prefixing.
func FormatSI(v float64, unit string) string {
	if unit == "" || noPrefixUnits[unit] || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return withUnit(strconv.FormatFloat(v, 'g', -1, 64), unit)
	}

	exp := 3 * floorDiv(decimalExp(v), 3)
	if exp < -15 || exp > 15 {
		return withUnit(strconv.FormatFloat(v, 'e', 3, 64), unit)
	}

	scaled := v / math.Pow(10, float64(exp))
	return strconv.FormatFloat(scaled, 'g', 4, 64) + " " + siPrefixes[exp] + unit
}

// decimalExp returns the base-10 exponent of v's decimal representation,
// read off strconv's 'e' output. Log10 can land an ulp shy of a whole
// decade for values like 1e-6 and floor into the wrong prefix.
func decimalExp(v float64) int {
	s := strconv.FormatFloat(math.Abs(v), 'e', -1, 64)
	e, _ := strconv.Atoi(s[strings.IndexByte(s, 'e')+1:])
	return e
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// FormatAccess formats an access level for display.
func FormatAccess(access param.Access) string {
	switch {
	case access.CanRead() && access.CanWrite():
		return "read-write"
	case access.CanRead():
		return "read-only"
	case access.CanWrite():
		return "write-only"
	default:
		return "none"
	}
}

// ParamRow represents a formatted parameter for display.
type ParamRow struct {
	Path   string
	Label  string
	Value  string
	Kind   string
	Access string
	Unit   string
}

// FormatParamTable formats a list of parameters as a table.
func (f *Formatter) FormatParamTable(rows []ParamRow) string {
	if len(rows) == 0 {
		return "  (no parameters)"
	}

	width := 0
	for _, row := range rows {
		if len(row.Path) > width {
			width = len(row.Path)
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("  %-*s  %s", width, row.Path, row.Value))
		if f.ShowMetadata && row.Kind != "" {
			sb.WriteString(fmt.Sprintf(" (%s, %s)", row.Kind, row.Access))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
