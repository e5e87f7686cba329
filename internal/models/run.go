package models

import "time"

// RunState tracks a reconciliation run through its lifecycle.
type RunState string

const (
	RunStateRunning   RunState = "RUNNING"
	RunStateFinished  RunState = "FINISHED"
	RunStateFailed    RunState = "FAILED"
	RunStateCancelled RunState = "CANCELLED"
)

// RunStatus is the observable snapshot of a reconciliation run. Processed
// and Total drive progress displays; Error carries the single run-level
// failure message when the run aborted.
type RunStatus struct {
	ID         string     `json:"id"`
	State      RunState   `json:"state"`
	TermCode   string     `json:"term_code,omitempty"`
	Processed  int        `json:"processed"`
	Total      int        `json:"total"`
	Duplicates int        `json:"duplicates"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Done reports whether the run reached a terminal state.
func (s RunStatus) Done() bool {
	switch s.State {
	case RunStateFinished, RunStateFailed, RunStateCancelled:
		return true
	default:
		return false
	}
}
