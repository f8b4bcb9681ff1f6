package instruments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qnlab/station-go/pkg/driver"
	"github.com/qnlab/station-go/pkg/param"
)

const fridgeDefaultRefresh = 60 * time.Second

// FridgeTemps reads dilution refrigerator temperatures from an HTTP endpoint
// that serves a JSON object of sensor name to kelvin value. The sensor set is
// only known after the first fetch, so each sensor becomes a read-only
// "<name>_temp" parameter during Connect. Responses are cached and refreshed
// at most once per refresh interval.
type FridgeTemps struct {
	*driver.Base

	url     string
	refresh time.Duration
	client  *http.Client

	mu      sync.Mutex
	temps   map[string]float64
	fetched time.Time
}

func newFridge(ctx context.Context, cfg driver.Config) (driver.Instrument, error) {
	if err := driver.CheckInit(cfg.Init, "url", "refresh_interval"); err != nil {
		return nil, err
	}
	url, err := driver.InitString(cfg.Init, "url", "")
	if err != nil {
		return nil, err
	}
	if url == "" {
		switch {
		case cfg.Address == "":
			return nil, fmt.Errorf("fridge driver needs an address or a url init kwarg")
		case strings.Contains(cfg.Address, "://"):
			url = cfg.Address
		default:
			url = "http://" + cfg.Endpoint()
		}
	}
	refresh, err := driver.InitFloat(cfg.Init, "refresh_interval", fridgeDefaultRefresh.Seconds())
	if err != nil {
		return nil, err
	}
	if refresh <= 0 {
		return nil, fmt.Errorf("refresh_interval must be positive, got %v", refresh)
	}

	return &FridgeTemps{
		Base:    driver.NewBase(cfg.Name, "FridgeTemps", cfg.Address),
		url:     url,
		refresh: time.Duration(refresh * float64(time.Second)),
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Connect performs the first fetch and builds one parameter per sensor.
func (f *FridgeTemps) Connect(ctx context.Context) error {
	if err := f.Base.Connect(ctx); err != nil {
		return err
	}
	if err := f.fetch(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	sensors := make([]string, 0, len(f.temps))
	for name := range f.temps {
		sensors = append(sensors, name)
	}
	f.mu.Unlock()
	sort.Strings(sensors)

	for _, sensor := range sensors {
		path := sensor + "_temp"
		if _, ok := f.Parameter(path); ok {
			continue
		}
		sensor := sensor
		p, err := param.New(&param.Metadata{
			Name:    path,
			Label:   strings.ToUpper(sensor[:1]) + sensor[1:] + " temperature",
			Unit:    "K",
			Kind:    param.KindFloat,
			Access:  param.AccessRead,
			Monitor: true,
		}, func(ctx context.Context) (any, error) {
			return f.read(ctx, sensor)
		}, nil)
		if err != nil {
			return err
		}
		if err := f.AddParameter(path, p); err != nil {
			return err
		}
	}
	return nil
}

func (f *FridgeTemps) read(ctx context.Context, sensor string) (any, error) {
	f.mu.Lock()
	stale := time.Since(f.fetched) >= f.refresh
	f.mu.Unlock()
	if stale {
		if err := f.fetch(ctx); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.temps[sensor]
	if !ok {
		return nil, fmt.Errorf("sensor %q missing from %s", sensor, f.url)
	}
	return v, nil
}

func (f *FridgeTemps) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fridge %s: unexpected status %s", f.url, resp.Status)
	}
	var temps map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&temps); err != nil {
		return fmt.Errorf("fridge %s: %w", f.url, err)
	}

	f.mu.Lock()
	f.temps = temps
	f.fetched = time.Now()
	f.mu.Unlock()
	return nil
}

func fridgeCatalog() driver.Catalog {
	return driver.Catalog{
		Type:     "FridgeTemps",
		Dynamic:  true,
		InitKeys: []string{"url", "refresh_interval"},
	}
}
