// Package metrics records per-table copy outcomes behind a pluggable backend.
// The default backend discards everything, so callers never need to check
// whether metrics are configured.
package metrics

import "time"

// Backend receives table outcomes.
type Backend interface {
	// ObserveTable records one finished table.
	ObserveTable(plan, table, status string, rows int, d time.Duration)
	// Flush pushes collected metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) ObserveTable(string, string, string, int, time.Duration) {}
func (nopBackend) Flush() error                                            { return nil }

var backend Backend = nopBackend{}

// SetBackend installs b. Passing nil restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

// RecordTable forwards a table outcome to the current backend.
func RecordTable(plan, table, status string, rows int, d time.Duration) {
	backend.ObserveTable(plan, table, status, rows, d)
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}
