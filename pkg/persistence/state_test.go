package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qnlab/station-go/pkg/station"
)

func testSnapshot() *station.Snapshot {
	return &station.Snapshot{
		TakenAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Session: "session-abc",
		Instruments: map[string]station.InstrumentSnapshot{
			"mdac": {
				Type:    "MDAC",
				Address: "192.168.0.10:7000",
				IDN:     "QNL,MDAC,0042,2.1",
				Params: map[string]station.ParamSnapshot{
					"ch01.voltage": {
						Value:   0.5,
						Raw:     4.0,
						Unit:    "V",
						Label:   "Gate voltage",
						Monitor: true,
					},
				},
			},
			"fridge": {
				Type: "FRIDGE",
				Params: map[string]station.ParamSnapshot{
					"mc_temp": {Value: 0.0123, Unit: "K", Monitor: true},
				},
			},
		},
	}
}

func TestStore(t *testing.T) {
	t.Run("NewStore", func(t *testing.T) {
		store := NewStore(t.TempDir())
		if store == nil {
			t.Fatal("NewStore() returned nil")
		}
	})

	t.Run("SaveAndLoadRoundTrip", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "state"))
		want := testSnapshot()

		if err := store.SaveSnapshot(want); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		got, err := store.LoadSnapshot()
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got == nil {
			t.Fatal("LoadSnapshot() = nil after save")
		}

		if !got.TakenAt.Equal(want.TakenAt) {
			t.Errorf("TakenAt = %v, want %v", got.TakenAt, want.TakenAt)
		}
		if got.Session != "session-abc" {
			t.Errorf("Session = %q, want %q", got.Session, "session-abc")
		}
		if len(got.Instruments) != 2 {
			t.Fatalf("len(Instruments) = %d, want 2", len(got.Instruments))
		}

		mdac := got.Instruments["mdac"]
		if mdac.Type != "MDAC" || mdac.IDN != "QNL,MDAC,0042,2.1" {
			t.Errorf("mdac = %+v", mdac)
		}
		p, exists := mdac.Params["ch01.voltage"]
		if !exists {
			t.Fatal("Params[ch01.voltage] not found")
		}
		if p.Value != 0.5 {
			t.Errorf("Value = %v, want 0.5", p.Value)
		}
		if p.Raw != 4.0 {
			t.Errorf("Raw = %v, want 4.0", p.Raw)
		}
		if p.Unit != "V" || !p.Monitor {
			t.Errorf("param = %+v", p)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "never-created"))

		got, err := store.LoadSnapshot()
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadSnapshot() = %v, want nil for missing file", got)
		}
	})

	t.Run("EnvelopeOnDisk", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "state"))
		if err := store.SaveSnapshot(testSnapshot()); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		data, err := os.ReadFile(store.Path())
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}

		env := &SnapshotEnvelope{}
		if err := json.Unmarshal(data, env); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if env.Version != SnapshotVersion {
			t.Errorf("Version = %d, want %d", env.Version, SnapshotVersion)
		}
		if env.SavedAt.IsZero() {
			t.Error("SavedAt is zero")
		}
		if env.Snapshot == nil {
			t.Error("Snapshot is nil")
		}
	})

	t.Run("NewerVersionRefused", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "state")
		store := NewStore(dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		future := []byte(`{"version": 99, "saved_at": "2026-03-01T09:30:00Z", "snapshot": null}`)
		if err := os.WriteFile(store.Path(), future, 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := store.LoadSnapshot(); err == nil {
			t.Error("LoadSnapshot() should refuse a newer format version")
		}
	})

	t.Run("OverwriteKeepsLatest", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "state"))

		first := testSnapshot()
		if err := store.SaveSnapshot(first); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		second := testSnapshot()
		second.Session = "session-def"
		if err := store.SaveSnapshot(second); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		got, err := store.LoadSnapshot()
		if err != nil {
			t.Fatalf("LoadSnapshot() error = %v", err)
		}
		if got.Session != "session-def" {
			t.Errorf("Session = %q, want the later save", got.Session)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "state"))
		if err := store.SaveSnapshot(testSnapshot()); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}

		got, err := store.LoadSnapshot()
		if err != nil {
			t.Fatalf("LoadSnapshot() after Clear() error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadSnapshot() after Clear() = %v, want nil", got)
		}

		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on empty store error = %v", err)
		}
	})
}
