// Package monitor periodically samples every station parameter flagged for
// monitoring and fans the readings out to prometheus gauges, a bbolt
// history store, the station event log, and in-process subscribers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/station"
)

// DefaultInterval is the sampling interval when Options leaves it unset.
const DefaultInterval = time.Second

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind loses samples instead of blocking the engine.
const subscriberBuffer = 64

// Sample is one monitored parameter reading. Failed reads carry Err and a
// zero Value.
type Sample struct {
	Time       time.Time
	Instrument string
	Parameter  string
	Value      float64
	Unit       string
	Err        error
}

// Options configures an Engine.
type Options struct {
	// Interval between sampling passes. Zero means DefaultInterval.
	// Individual reads time out after one interval.
	Interval time.Duration

	// Logger receives monitor events. Nil disables event logging.
	Logger log.Logger

	// History persists successful samples. Nil disables history.
	History *HistoryStore

	// Metrics enables the prometheus gauge and error counter.
	Metrics bool

	// Registry receives the metrics. Nil means the default registerer.
	Registry *prometheus.Registry
}

const (
	stateIdle = iota
	stateRunning
	stateStopped
)

// Engine samples a station's monitored parameters on a fixed interval.
// An engine runs at most once; create a fresh one after Stop.
type Engine struct {
	st       *station.Station
	interval time.Duration
	logger   log.Logger
	history  *HistoryStore

	gauge      *prometheus.GaugeVec
	scrapeErrs prometheus.Counter

	mu      sync.Mutex
	state   int
	cancel  context.CancelFunc
	params  []station.MonitoredParam
	subs    map[int]chan Sample
	nextSub int
	dropped uint64

	wg sync.WaitGroup
}

// NewEngine creates an engine over the station. Monitored parameters are
// collected at Start, so instruments loaded later are picked up by a fresh
// engine.
func NewEngine(st *station.Station, opts Options) *Engine {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	var logger log.Logger = log.NoopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	e := &Engine{
		st:       st,
		interval: interval,
		logger:   logger,
		history:  opts.History,
		subs:     make(map[int]chan Sample),
	}

	if opts.Metrics {
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		if opts.Registry != nil {
			reg = opts.Registry
		}
		factory := promauto.With(reg)
		e.gauge = factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "station_parameter_value",
			Help: "Current value of a monitored station parameter.",
		}, []string{"instrument", "parameter", "unit"})
		e.scrapeErrs = factory.NewCounter(prometheus.CounterOpts{
			Name: "station_monitor_scrape_errors_total",
			Help: "Total failed reads of monitored parameters.",
		})
	}
	return e
}

// Start begins sampling. It returns an error when the engine is already
// running or was stopped.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case stateRunning:
		e.mu.Unlock()
		return errors.New("monitor engine already running")
	case stateStopped:
		e.mu.Unlock()
		return errors.New("monitor engine cannot restart after stop")
	}
	e.state = stateRunning
	e.params = e.st.MonitoredParameters()
	n := len(e.params)
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.emit(log.Event{
		Category: log.CategoryState,
		State: &log.StateEvent{
			Entity:   log.StateEntityMonitor,
			NewState: "running",
			Reason:   fmt.Sprintf("%d parameters", n),
		},
	})

	e.wg.Add(1)
	go e.run(runCtx)
	return nil
}

// Stop halts sampling and waits for the loop to exit. Stop is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != stateRunning {
		e.state = stateStopped
		e.mu.Unlock()
		return
	}
	e.state = stateStopped
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()

	e.emit(log.Event{
		Category: log.CategoryState,
		State: &log.StateEvent{
			Entity:   log.StateEntityMonitor,
			OldState: "running",
			NewState: "stopped",
		},
	})
}

// Subscribe registers a callback invoked for every sample, including failed
// reads. The callback runs on its own goroutine; when it falls behind,
// samples are dropped rather than blocking the engine. The returned
// function removes the subscription.
func (e *Engine) Subscribe(fn func(Sample)) (unsubscribe func()) {
	ch := make(chan Sample, subscriberBuffer)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	go func() {
		for s := range ch {
			fn(s)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped returns how many samples were discarded because subscribers
// fell behind.
func (e *Engine) Dropped() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.samplePass(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.samplePass(ctx)
		}
	}
}

func (e *Engine) samplePass(ctx context.Context) {
	for _, mp := range e.params {
		if ctx.Err() != nil {
			return
		}
		e.sampleOne(ctx, mp)
	}
}

func (e *Engine) sampleOne(ctx context.Context, mp station.MonitoredParam) {
	readCtx, cancel := context.WithTimeout(ctx, e.interval)
	value, err := mp.Param.Float(readCtx)
	cancel()

	s := Sample{
		Time:       time.Now(),
		Instrument: mp.Instrument,
		Parameter:  mp.Path,
		Unit:       mp.Param.Metadata().Unit,
	}

	if err != nil {
		s.Err = err
		if e.scrapeErrs != nil {
			e.scrapeErrs.Inc()
		}
		e.emit(log.Event{
			Category:   log.CategoryError,
			Instrument: s.Instrument,
			Parameter:  s.Parameter,
			Error:      &log.ErrorEvent{Message: err.Error(), Context: "monitor"},
		})
	} else {
		s.Value = value
		if e.gauge != nil {
			e.gauge.WithLabelValues(s.Instrument, s.Parameter, s.Unit).Set(value)
		}
		if e.history != nil {
			if herr := e.history.Append(s); herr != nil {
				e.emit(log.Event{
					Category:   log.CategoryError,
					Instrument: s.Instrument,
					Parameter:  s.Parameter,
					Error:      &log.ErrorEvent{Message: herr.Error(), Context: "history"},
				})
			}
		}
		e.emit(log.Event{
			Category:   log.CategoryMonitor,
			Instrument: s.Instrument,
			Parameter:  s.Parameter,
			Sample:     &log.SampleEvent{Value: value, Unit: s.Unit},
		})
	}

	e.broadcast(s)
}

func (e *Engine) broadcast(s Sample) {
	e.mu.Lock()
	for _, ch := range e.subs {
		select {
		case ch <- s:
		default:
			e.dropped++
		}
	}
	e.mu.Unlock()
}

func (e *Engine) emit(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = e.st.SessionID()
	e.logger.Log(ev)
}
