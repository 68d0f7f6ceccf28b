// Package diagnostics provides sinks for the advisories a dispatcher emits
// when a handler rejects a line.
package diagnostics

import (
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
	"github.com/garyjia/smt-log-parser/internal/models"
)

// ZapReporter logs each diagnostic as a warning
type ZapReporter struct {
	logger *zap.Logger
}

// NewZapReporter creates a reporter writing to logger
func NewZapReporter(logger *zap.Logger) *ZapReporter {
	return &ZapReporter{logger: logger}
}

// Report implements dispatcher.Reporter
func (r *ZapReporter) Report(d dispatcher.Diagnostic) {
	r.logger.Warn("Error parsing line",
		zap.Int("line_no", d.LineNo),
		zap.String("opcode", d.Opcode.String()),
		zap.String("line", d.Line),
		zap.Error(d.Err),
	)
}

// Collector keeps diagnostics in memory. When Limit is positive only the
// first Limit diagnostics are kept, but all of them are counted.
type Collector struct {
	Limit int

	mu    sync.Mutex
	diags []dispatcher.Diagnostic
	total int
}

// Report implements dispatcher.Reporter
func (c *Collector) Report(d dispatcher.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if c.Limit > 0 && len(c.diags) >= c.Limit {
		return
	}
	c.diags = append(c.diags, d)
}

// Diagnostics returns the kept diagnostics in report order
func (c *Collector) Diagnostics() []dispatcher.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dispatcher.Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Total returns how many diagnostics were reported
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Counter counts diagnostics per opcode
type Counter struct {
	mu     sync.Mutex
	counts map[dispatcher.Opcode]int
}

// Report implements dispatcher.Reporter
func (c *Counter) Report(d dispatcher.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[dispatcher.Opcode]int)
	}
	c.counts[d.Opcode]++
}

// Counts returns a copy of the per-opcode counts
func (c *Counter) Counts() map[dispatcher.Opcode]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[dispatcher.Opcode]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Multi fans each diagnostic out to every reporter in order
func Multi(reporters ...dispatcher.Reporter) dispatcher.Reporter {
	return dispatcher.ReporterFunc(func(d dispatcher.Diagnostic) {
		for _, r := range reporters {
			if r != nil {
				r.Report(d)
			}
		}
	})
}

// DiagnosticStore persists diagnostic records
type DiagnosticStore interface {
	Create(record *models.DiagnosticRecord) error
}

// StoreReporter persists each diagnostic of one run. Store failures are
// logged and dropped so they never interrupt the trace.
type StoreReporter struct {
	store  DiagnosticStore
	runID  int64
	logger *zap.Logger
}

// NewStoreReporter creates a reporter that writes diagnostics of runID
func NewStoreReporter(store DiagnosticStore, runID int64, logger *zap.Logger) *StoreReporter {
	return &StoreReporter{store: store, runID: runID, logger: logger}
}

// Report implements dispatcher.Reporter
func (r *StoreReporter) Report(d dispatcher.Diagnostic) {
	record := &models.DiagnosticRecord{
		RunID:   r.runID,
		LineNo:  d.LineNo,
		Opcode:  d.Opcode.String(),
		Line:    d.Line,
		Message: message(d),
	}
	if err := r.store.Create(record); err != nil {
		r.logger.Error("Failed to persist diagnostic",
			zap.Int64("run_id", r.runID),
			zap.Int("line_no", d.LineNo),
			zap.Error(err))
	}
}

func message(d dispatcher.Diagnostic) string {
	if d.Err == nil {
		return "malformed line"
	}
	return d.Err.Error()
}
