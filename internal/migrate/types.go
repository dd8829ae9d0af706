// Package migrate moves table contents from a source store to a destination
// store, one table at a time in plan order, optionally checkpointing each
// table as a CSV file in between.
package migrate

import (
	"time"
)

// Status is the terminal outcome of one table.
type Status string

const (
	StatusInserted                  Status = "Inserted"
	StatusSkippedMissingDestination Status = "SkippedMissingDestination"
	StatusFailed                    Status = "Failed"
	// StatusStaged ends a table in extract-only runs.
	StatusStaged Status = "Staged"
)

// State is a table's position in the per-table sequence. Tables move
// forward only.
type State string

const (
	StatePending    State = "Pending"
	StateExtracting State = "Extracting"
	StateStaged     State = "Staged"
	StateLoading    State = "Loading"
)

// Result is the outcome of one table.
type Result struct {
	Table    string        `json:"table"`
	Status   Status        `json:"status"`
	RowCount int           `json:"rowCount"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a whole run, one Result per plan table in plan
// order.
type Report struct {
	RunID     string    `json:"runId"`
	Plan      string    `json:"plan"`
	StartedAt time.Time `json:"startedAt"`
	Results   []Result  `json:"results"`
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Failed returns the failed results in plan order.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Rows is the total number of rows inserted.
func (r *Report) Rows() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusInserted {
			n += res.RowCount
		}
	}
	return n
}
