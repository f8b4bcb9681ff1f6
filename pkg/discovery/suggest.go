package discovery

import (
	"fmt"
	"strings"

	"github.com/qnlab/station-go/pkg/station"
)

// driverHints maps well-known model substrings to built-in drivers.
// Matched case-insensitively against the instance name and the
// Manufacturer/Model TXT records.
var driverHints = []struct {
	substr string
	driver string
}{
	{"mdac", "drivers/mdac"},
	{"sr860", "drivers/sr860"},
	{"sg384", "drivers/sg384"},
	{"lda602", "drivers/lda602"},
	{"9215", "drivers/ni9215"},
	{"mso44", "drivers/mso44"},
	{"triton", "drivers/fridge"},
	{"fridge", "drivers/fridge"},
}

// GuessDriver suggests a built-in driver for a discovery, or "" when
// nothing matches.
func GuessDriver(f Found) string {
	hay := strings.ToLower(strings.Join([]string{
		f.Name, f.TXT["Manufacturer"], f.TXT["Model"], f.TXT["model"],
	}, " "))
	for _, h := range driverHints {
		if strings.Contains(hay, h.substr) {
			return h.driver
		}
	}
	return ""
}

// SuggestYAML renders discoveries as a station configuration stub.
// Entries with no driver match carry an empty driver field the user
// must fill in; ids are derived from instance names and deduplicated.
func SuggestYAML(found []Found) string {
	var b strings.Builder

	if len(found) == 0 {
		b.WriteString("# No instruments discovered.\ninstruments: {}\n")
		return b.String()
	}

	fmt.Fprintf(&b, "# %d instrument(s) discovered on the local network.\n", len(found))
	b.WriteString("# Check every driver and address before loading this file.\n")
	b.WriteString("instruments:\n")

	used := map[string]int{}
	for _, f := range found {
		id := uniqueID(used, SanitizeID(f.Name))

		fmt.Fprintf(&b, "  %s:\n", id)
		fmt.Fprintf(&b, "    # %s (%s)", f.Name, f.Service)
		if f.Host != "" {
			fmt.Fprintf(&b, " on %s", strings.TrimSuffix(f.Host, "."))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "    driver: %q\n", GuessDriver(f))
		if f.Addr != "" {
			fmt.Fprintf(&b, "    address: %s\n", f.Addr)
		} else if host := strings.TrimSuffix(f.Host, "."); host != "" {
			fmt.Fprintf(&b, "    address: %s\n", host)
		}
		if f.Port > 0 {
			fmt.Fprintf(&b, "    port: %d\n", f.Port)
		}
	}
	return b.String()
}

// SanitizeID converts an mDNS instance name to a valid instrument id.
func SanitizeID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if n := b.Len(); n > 0 && b.String()[n-1] != '_' {
				b.WriteByte('_')
			}
		}
	}
	id := strings.Trim(b.String(), "_")
	if id == "" {
		return "instrument"
	}
	// A leading digit is the only way a trimmed id can still be invalid.
	if !station.ValidIdent(id) {
		id = "inst_" + id
	}
	return id
}

func uniqueID(used map[string]int, id string) string {
	used[id]++
	if n := used[id]; n > 1 {
		return fmt.Sprintf("%s_%d", id, n)
	}
	return id
}
