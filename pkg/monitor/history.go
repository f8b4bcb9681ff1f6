package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// historyKeyLayout is RFC3339 with fixed-width nanoseconds, so keys sort
// chronologically as bytes. time.RFC3339Nano trims trailing zeros and
// would break cursor range scans.
const historyKeyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStore persists monitor samples in a bbolt database: one bucket
// per instrument, keyed by UTC timestamp.
type HistoryStore struct {
	db *bolt.DB
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(path string) (*HistoryStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return &HistoryStore{db: db}, nil
}

// Close closes the database.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

type historyRecord struct {
	Param string  `json:"param"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Append stores a sample under its instrument bucket.
func (h *HistoryStore) Append(s Sample) error {
	value, err := json.Marshal(historyRecord{Param: s.Parameter, Value: s.Value, Unit: s.Unit})
	if err != nil {
		return err
	}
	key := []byte(s.Time.UTC().Format(historyKeyLayout))
	return h.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(s.Instrument))
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

// Range returns the instrument's samples with from <= Time <= to, in
// chronological order. An unknown instrument yields an empty result.
func (h *HistoryStore) Range(instrument string, from, to time.Time) ([]Sample, error) {
	min := []byte(from.UTC().Format(historyKeyLayout))
	max := []byte(to.UTC().Format(historyKeyLayout))

	var out []Sample
	err := h.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(instrument))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var rec historyRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("history record %s: %w", k, err)
			}
			ts, err := time.Parse(time.RFC3339Nano, string(k))
			if err != nil {
				return fmt.Errorf("history key %s: %w", k, err)
			}
			out = append(out, Sample{
				Time:       ts,
				Instrument: instrument,
				Parameter:  rec.Param,
				Value:      rec.Value,
				Unit:       rec.Unit,
			})
		}
		return nil
	})
	return out, err
}

// Prune deletes every sample older than the cutoff, across all instruments.
func (h *HistoryStore) Prune(before time.Time) error {
	cut := []byte(before.UTC().Format(historyKeyLayout))
	return h.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			c := b.Cursor()
			for k, _ := c.First(); k != nil && bytes.Compare(k, cut) < 0; k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Instruments lists the instruments with recorded history, in bucket order.
func (h *HistoryStore) Instruments() ([]string, error) {
	var names []string
	err := h.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}
