package discovery

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Options configures a Browser.
type Options struct {
	// Services overrides the service types to browse.
	// Default: DefaultServices().
	Services []string

	// Interface restricts browsing to a named network interface.
	// Default: all multicast-capable interfaces.
	Interface string
}

// Browser discovers instruments announced over mDNS.
type Browser struct {
	opts Options
}

// NewBrowser creates a browser.
func NewBrowser(opts Options) *Browser {
	return &Browser{opts: opts}
}

// Browse collects announcements for the configured service types until
// the timeout passes, then returns what was seen, sorted by service and
// instance name. Announcements withdrawn during the window are dropped.
func Browse(ctx context.Context, timeout time.Duration) ([]Found, error) {
	return NewBrowser(Options{}).Browse(ctx, timeout)
}

// Browse collects announcements until the timeout passes.
func (b *Browser) Browse(ctx context.Context, timeout time.Duration) ([]Found, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	services := b.opts.Services
	if len(services) == 0 {
		services = DefaultServices()
	}
	opts := b.clientOptions()

	var (
		mu   sync.Mutex
		seen = make(map[string]Found)
		col  sync.WaitGroup
	)
	for _, service := range services {
		entries := make(chan *zeroconf.ServiceEntry)
		removed := make(chan *zeroconf.ServiceEntry)

		col.Add(1)
		go func(service string, entries, removed chan *zeroconf.ServiceEntry) {
			defer col.Done()
			for {
				select {
				case entry, ok := <-entries:
					if !ok {
						return
					}
					f, usable := entryToFound(service, entry)
					if !usable {
						continue
					}
					mu.Lock()
					key := service + "/" + f.Name
					if _, exists := seen[key]; !exists {
						seen[key] = f
					}
					mu.Unlock()

				case entry, ok := <-removed:
					if !ok {
						continue
					}
					mu.Lock()
					delete(seen, service+"/"+entry.Instance)
					mu.Unlock()

				case <-ctx.Done():
					return
				}
			}
		}(service, entries, removed)

		go func(service string, entries, removed chan *zeroconf.ServiceEntry) {
			_ = zeroconf.Browse(ctx, service, Domain, entries, removed, opts...)
		}(service, entries, removed)
	}

	<-ctx.Done()
	col.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}

	out := make([]Found, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// clientOptions returns zeroconf client options based on config.
func (b *Browser) clientOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.opts.Interface != "" {
		iface, err := net.InterfaceByName(b.opts.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToFound converts a zeroconf entry to a Found record.
func entryToFound(service string, entry *zeroconf.ServiceEntry) (Found, bool) {
	if entry == nil || entry.Instance == "" {
		return Found{}, false
	}

	addr := ""
	if len(entry.AddrIPv4) > 0 {
		addr = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		addr = entry.AddrIPv6[0].String()
	}

	return Found{
		Name:    entry.Instance,
		Host:    entry.HostName,
		Addr:    addr,
		Port:    entry.Port,
		Service: service,
		TXT:     parseTXT(entry.Text),
	}, true
}
