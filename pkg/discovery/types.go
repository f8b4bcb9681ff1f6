package discovery

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceLXI is advertised by LXI-conformant instruments.
	ServiceLXI = "_lxi._tcp"

	// ServiceSCPIRaw is advertised by instruments with a raw SCPI socket.
	ServiceSCPIRaw = "_scpi-raw._tcp"

	// ServiceHTTP is the generic web service type; many instruments
	// announce their web interface this way and nothing else.
	ServiceHTTP = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// DefaultTimeout bounds a browse when the caller passes none.
const DefaultTimeout = 5 * time.Second

// DefaultServices returns the service types browsed by default.
func DefaultServices() []string {
	return []string{ServiceLXI, ServiceSCPIRaw, ServiceHTTP}
}

// Found describes one discovered network instrument.
type Found struct {
	// Name is the mDNS instance name as announced.
	Name string

	// Host is the announced host name (e.g. "dmm-1.local.").
	Host string

	// Addr is the first resolved IP address, IPv4 preferred.
	Addr string

	// Port is the announced service port.
	Port int

	// Service is the service type the instrument was found under.
	Service string

	// TXT holds the announcement's TXT records as key/value pairs.
	TXT map[string]string
}

// Endpoint returns "addr:port" for the discovery, falling back to the
// host name when no address resolved.
func (f Found) Endpoint() string {
	host := f.Addr
	if host == "" {
		host = strings.TrimSuffix(f.Host, ".")
	}
	if host == "" {
		return ""
	}
	if f.Port <= 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(f.Port))
}

// parseTXT converts raw "key=value" TXT strings to a map. Keys without
// a value map to the empty string; empty records are dropped.
func parseTXT(records []string) map[string]string {
	var txt map[string]string
	for _, rec := range records {
		if rec == "" {
			continue
		}
		if txt == nil {
			txt = make(map[string]string, len(records))
		}
		key, value, _ := strings.Cut(rec, "=")
		txt[key] = value
	}
	return txt
}
