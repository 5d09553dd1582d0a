// api/schemas/outcome.go
package schemas

import "time"

// Status is the terminal state of a single test unit.
type Status string

const (
	StatusPass Status = "PASS"
	// StatusFail is an assertion failure inside the unit.
	StatusFail Status = "FAIL"
	// StatusError is an unexpected failure (driver error, panic, unknown unit).
	StatusError Status = "ERROR"
)

// Outcome is produced by a test unit at completion. The coordinator
// aggregates it and the session manager reports it to the remote provider.
type Outcome struct {
	UnitID   string        `json:"unit_id"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Passed reports whether the unit succeeded.
func (o Outcome) Passed() bool { return o.Status == StatusPass }

// ExecutionPlan is an ordered sequence of test-unit ids plus the knobs the
// coordinator needs to dispatch them.
type ExecutionPlan struct {
	Units       []string `json:"units"`
	Concurrency int      `json:"concurrency"`
	// Seed controls the shuffle order. It is only honored when SeedSet is
	// true; otherwise the coordinator picks a fresh seed and records it so
	// a failing run can be replayed.
	Seed    int64 `json:"seed"`
	SeedSet bool  `json:"seed_set"`
}

// AggregateResult summarizes one plan execution.
type AggregateResult struct {
	RunID      string    `json:"run_id"`
	Seed       int64     `json:"seed"`
	StartOrder []string  `json:"start_order"`
	Outcomes   []Outcome `json:"outcomes"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Errored    int       `json:"errored"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Success reports whether every outcome passed.
func (r *AggregateResult) Success() bool { return r.Failed == 0 && r.Errored == 0 }
