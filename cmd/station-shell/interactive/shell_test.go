package interactive

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qnlab/station-go/internal/stationtest"
	"github.com/qnlab/station-go/pkg/inspect"
	"github.com/qnlab/station-go/pkg/log"
	"github.com/qnlab/station-go/pkg/persistence"
	"github.com/qnlab/station-go/pkg/station"
)

// lockedBuffer collects shell output. Monitor samples arrive on the engine
// goroutine, so writes need synchronization.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// newTestShell builds a shell over a mock station without a readline
// instance. Tests drive execute directly instead of Run.
func newTestShell(t *testing.T, yaml string) (*Shell, *stationtest.Fleet, *lockedBuffer) {
	t.Helper()

	st, fleet := stationtest.LoadStation(t, yaml, station.LoadOptions{})
	out := &lockedBuffer{}
	s := &Shell{
		st:        st,
		inspector: inspect.NewInspector(st),
		formatter: inspect.NewFormatter(),
		out:       out,
		interval:  10 * time.Millisecond,
		logger:    log.NoopLogger{},
	}
	t.Cleanup(func() { s.stopMonitor(false) })
	return s, fleet, out
}

func waitForOutput(t *testing.T, out *lockedBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

func TestShellList(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	if s.execute("list") {
		t.Error("expected list to keep the shell running")
	}

	got := out.String()
	for _, want := range []string{
		"Station: 2 instruments",
		"Instrument probe: MOCK @ 127.0.0.1",
		"Instrument pump: MOCK @ 127.0.0.2",
		"setpoint",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected list output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestShellGet(t *testing.T) {
	s, fleet, out := newTestShell(t, stationtest.TwoInstruments)
	fleet.Source("probe").SetValue(2.5)

	s.execute("get probe.level")

	if got := out.String(); !strings.Contains(got, "probe.level = 2.5 V") {
		t.Errorf("expected value line, got:\n%s", got)
	}
}

func TestShellGetInstrumentShowsInfo(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("get probe")

	got := out.String()
	if !strings.Contains(got, "Instrument probe: MOCK") {
		t.Errorf("expected instrument detail for a bare instrument path, got:\n%s", got)
	}
	if !strings.Contains(got, "level") || !strings.Contains(got, "setpoint") {
		t.Errorf("expected parameter listing, got:\n%s", got)
	}
}

func TestShellGetUsage(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("get")

	if got := out.String(); !strings.Contains(got, "Usage: get <path>") {
		t.Errorf("expected usage message, got:\n%s", got)
	}
}

func TestShellSetAndGet(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("set probe.setpoint 3.5")
	if got := out.String(); !strings.Contains(got, "OK") {
		t.Fatalf("expected OK after set, got:\n%s", got)
	}

	out.Reset()
	s.execute("get probe.setpoint")
	if got := out.String(); !strings.Contains(got, "probe.setpoint = 3.5 V") {
		t.Errorf("expected written value to read back, got:\n%s", got)
	}
}

func TestShellSetOutOfRange(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("set probe.setpoint 99")

	got := out.String()
	if !strings.Contains(got, "Write failed") {
		t.Errorf("expected write failure, got:\n%s", got)
	}
	if !strings.Contains(got, "outside limits") {
		t.Errorf("expected limit violation detail, got:\n%s", got)
	}
}

func TestShellSetInstrumentPath(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("set probe 5")

	if got := out.String(); !strings.Contains(got, "names an instrument, not a parameter") {
		t.Errorf("expected instrument-path rejection, got:\n%s", got)
	}
}

func TestShellSetUsage(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("set probe.setpoint")

	if got := out.String(); !strings.Contains(got, "Usage: set <path> <value>") {
		t.Errorf("expected usage message, got:\n%s", got)
	}
}

func TestShellRamp(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("set probe.setpoint 0")
	out.Reset()

	s.execute("ramp probe.setpoint 0.1 10")
	got := out.String()
	if !strings.Contains(got, "Ramping probe.setpoint to 0.1...") {
		t.Errorf("expected ramp banner, got:\n%s", got)
	}
	if !strings.Contains(got, "Done (took ") {
		t.Errorf("expected completion line, got:\n%s", got)
	}

	out.Reset()
	s.execute("get probe.setpoint")
	if got := out.String(); !strings.Contains(got, "probe.setpoint = 100 mV") {
		t.Errorf("expected ramp to land on the target, got:\n%s", got)
	}
}

func TestShellRampInvalidTarget(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("ramp probe.setpoint up")

	if got := out.String(); !strings.Contains(got, "Invalid target") {
		t.Errorf("expected target parse error, got:\n%s", got)
	}
}

func TestShellLimits(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("limits probe.setpoint")

	got := out.String()
	for _, want := range []string{
		"probe.setpoint: float, read-write, unit V",
		"limits: [-10, 10]",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected limits output to contain %q, got:\n%s", want, got)
		}
	}
}

func TestShellLimitsNone(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("limits probe.level")

	if got := out.String(); !strings.Contains(got, "limits: none") {
		t.Errorf("expected no limits for level, got:\n%s", got)
	}
}

func TestShellInfoUnknownInstrument(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("info nope")

	got := out.String()
	if !strings.Contains(got, "Error:") || !strings.Contains(got, "nope") {
		t.Errorf("expected unknown instrument error, got:\n%s", got)
	}
}

func TestShellMonitorLifecycle(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.TwoInstruments)

	s.execute("monitor status")
	if got := out.String(); !strings.Contains(got, "Monitor stopped (2 parameters configured)") {
		t.Fatalf("expected stopped status, got:\n%s", got)
	}

	out.Reset()
	s.execute("monitor start")
	if got := out.String(); !strings.Contains(got, "Monitor started (2 parameters, every 10ms)") {
		t.Fatalf("expected start confirmation, got:\n%s", got)
	}

	waitForOutput(t, out, "[MON] probe.level = 1 V")

	out.Reset()
	s.execute("monitor start")
	if got := out.String(); !strings.Contains(got, "Monitor already running") {
		t.Errorf("expected double-start rejection, got:\n%s", got)
	}

	out.Reset()
	s.execute("monitor status")
	if got := out.String(); !strings.Contains(got, "Monitor running (2 parameters, every 10ms") {
		t.Errorf("expected running status, got:\n%s", got)
	}

	out.Reset()
	s.execute("monitor stop")
	if got := out.String(); !strings.Contains(got, "Monitor stopped") {
		t.Errorf("expected stop confirmation, got:\n%s", got)
	}

	// Engines are single-use; a fresh start after stop must work.
	out.Reset()
	s.execute("monitor start")
	if got := out.String(); !strings.Contains(got, "Monitor started") {
		t.Errorf("expected restart to succeed, got:\n%s", got)
	}
	s.execute("monitor stop")
}

func TestShellMonitorStopWhenIdle(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("monitor stop")

	if got := out.String(); !strings.Contains(got, "Monitor not running") {
		t.Errorf("expected idle message, got:\n%s", got)
	}
}

func TestShellSnapshotPrint(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("snapshot")

	got := out.String()
	for _, want := range []string{`"instruments"`, `"probe"`, `"level"`} {
		if !strings.Contains(got, want) {
			t.Errorf("expected snapshot JSON to contain %s, got:\n%s", want, got)
		}
	}
}

func TestShellSnapshotSaveLoad(t *testing.T) {
	s, fleet, out := newTestShell(t, stationtest.OneInstrument)
	s.snapshots = persistence.NewStore(t.TempDir())
	fleet.Source("probe").SetValue(4.2)

	s.execute("snapshot save")
	if got := out.String(); !strings.Contains(got, "Snapshot saved to ") {
		t.Fatalf("expected save confirmation, got:\n%s", got)
	}

	out.Reset()
	s.execute("snapshot load")
	got := out.String()
	for _, want := range []string{
		"Snapshot from ",
		"probe (MOCK) @ 127.0.0.1",
		"level = 4.2 V",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected loaded snapshot to contain %q, got:\n%s", want, got)
		}
	}
}

func TestShellSnapshotNotConfigured(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("snapshot save")

	if got := out.String(); !strings.Contains(got, "Snapshot directory not configured") {
		t.Errorf("expected missing store message, got:\n%s", got)
	}
}

func TestShellSnapshotLoadEmpty(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)
	s.snapshots = persistence.NewStore(t.TempDir())

	s.execute("snapshot load")

	if got := out.String(); !strings.Contains(got, "No saved snapshot in ") {
		t.Errorf("expected empty store message, got:\n%s", got)
	}
}

func TestShellUnknownCommand(t *testing.T) {
	s, _, out := newTestShell(t, stationtest.OneInstrument)

	s.execute("flip")

	if got := out.String(); !strings.Contains(got, "Unknown command: flip") {
		t.Errorf("expected unknown command message, got:\n%s", got)
	}
}

func TestShellExit(t *testing.T) {
	s, _, _ := newTestShell(t, stationtest.OneInstrument)

	for _, cmd := range []string{"exit", "quit", "q"} {
		if !s.execute(cmd) {
			t.Errorf("expected %q to exit the shell", cmd)
		}
	}
	if s.execute("list") {
		t.Error("expected list to keep the shell running")
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"3", int64(3)},
		{"-7", int64(-7)},
		{"0.25", 0.25},
		{"true", true},
		{`"hello"`, "hello"},
		{"idle", "idle"},
	}

	for _, tc := range cases {
		got := parseValue(tc.in)
		if got != tc.want {
			t.Errorf("parseValue(%q) = %v (%T), expected %v (%T)",
				tc.in, got, got, tc.want, tc.want)
		}
	}
}
