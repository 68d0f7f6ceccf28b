package models

import "time"

// TraceRun is one pass of the dispatcher over a trace log
type TraceRun struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	Status      string     `json:"status"` // RUNNING, COMPLETED, TRUNCATED, FAILED
	Solver      string     `json:"solver,omitempty"`
	Version     string     `json:"version,omitempty"`
	Lines       int        `json:"lines"`
	Diagnostics int        `json:"diagnostics"`
	Terminated  bool       `json:"terminated"` // [eof] was seen
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// DiagnosticRecord is a persisted advisory for one rejected line
type DiagnosticRecord struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	LineNo    int       `json:"line_no"`
	Opcode    string    `json:"opcode"`
	Line      string    `json:"line"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Run status constants
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusTruncated = "TRUNCATED"
	RunStatusFailed    = "FAILED"
)
