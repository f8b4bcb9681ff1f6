// Package persistence stores station snapshots as JSON files.
//
// A Store writes the last captured station.Snapshot to a directory so a
// shell session or monitor process can restore a view of the station
// after a restart. Snapshots are wrapped in a small versioned envelope;
// measurement history is handled separately by the monitor package.
package persistence
