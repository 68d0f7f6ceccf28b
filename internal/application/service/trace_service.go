package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
	"github.com/garyjia/smt-log-parser/internal/diagnostics"
	"github.com/garyjia/smt-log-parser/internal/domain/workflow"
	"github.com/garyjia/smt-log-parser/internal/models"
	"github.com/garyjia/smt-log-parser/internal/runner"
	"github.com/garyjia/smt-log-parser/internal/stats"
)

// ErrStoreDisabled is returned by run lookups when no run store is configured
var ErrStoreDisabled = errors.New("run store is disabled")

// RunStore persists trace runs
type RunStore interface {
	Create(run *models.TraceRun) error
	Finish(run *models.TraceRun) error
	GetByID(id int64) (*models.TraceRun, error)
	List(limit int) ([]*models.TraceRun, error)
}

// DiagnosticStore persists and lists the diagnostics of a run
type DiagnosticStore interface {
	diagnostics.DiagnosticStore
	GetByRunID(runID int64) ([]*models.DiagnosticRecord, error)
}

// Options tunes how traces are analyzed
type Options struct {
	MaxLineBytes       int
	DiagnosticSample   int // 0 keeps every diagnostic in the report
	PersistDiagnostics bool
	TopQuantifiers     int
	// Reporter additionally receives every diagnostic, e.g. a log sink
	Reporter dispatcher.Reporter
}

// DiagnosticView is a report entry for a rejected line
type DiagnosticView struct {
	LineNo  int    `json:"line_no" yaml:"line_no"`
	Opcode  string `json:"opcode" yaml:"opcode"`
	Line    string `json:"line" yaml:"line"`
	Message string `json:"message" yaml:"message"`
}

// Report is the outcome of analyzing one trace
type Report struct {
	Run                 *models.TraceRun `json:"run,omitempty" yaml:"run,omitempty"`
	Source              string           `json:"source" yaml:"source"`
	Status              string           `json:"status" yaml:"status"`
	Lines               int              `json:"lines" yaml:"lines"`
	Terminated          bool             `json:"terminated" yaml:"terminated"`
	Summary             stats.Summary    `json:"summary" yaml:"summary"`
	DiagnosticCount     int              `json:"diagnostic_count" yaml:"diagnostic_count"`
	DiagnosticsByOpcode map[string]int   `json:"diagnostics_by_opcode,omitempty" yaml:"diagnostics_by_opcode,omitempty"`
	Diagnostics         []DiagnosticView `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// TraceService analyzes trace logs and serves recorded runs
type TraceService interface {
	Analyze(ctx context.Context, source string, r io.Reader) (*Report, error)
	GetRun(ctx context.Context, id int64) (*models.TraceRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.TraceRun, error)
	RunDiagnostics(ctx context.Context, id int64) ([]*models.DiagnosticRecord, error)
}

type traceServiceImpl struct {
	runs   RunStore
	diags  DiagnosticStore
	opts   Options
	logger *zap.Logger
}

// NewTraceService creates a new TraceService. runs and diags may be nil,
// in which case traces are analyzed without being recorded.
func NewTraceService(runs RunStore, diags DiagnosticStore, opts Options, logger *zap.Logger) TraceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &traceServiceImpl{
		runs:   runs,
		diags:  diags,
		opts:   opts,
		logger: logger,
	}
}

// Analyze dispatches every line of r to a fresh statistics backend. When
// reading fails the partial report is returned together with the error.
func (s *traceServiceImpl) Analyze(ctx context.Context, source string, r io.Reader) (*Report, error) {
	run := &models.TraceRun{Source: source}
	if s.runs != nil {
		if err := s.runs.Create(run); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	collector := &diagnostics.Collector{Limit: s.opts.DiagnosticSample}
	counter := &diagnostics.Counter{}
	reporters := []dispatcher.Reporter{collector, counter, s.opts.Reporter}
	if s.opts.PersistDiagnostics && s.diags != nil && run.ID != 0 {
		reporters = append(reporters, diagnostics.NewStoreReporter(s.diags, run.ID, s.logger))
	}

	d := dispatcher.New[stats.Stats](dispatcher.WithReporter(diagnostics.Multi(reporters...)))

	s.logger.Info("Analyzing trace", zap.String("source", source), zap.Int64("run_id", run.ID))

	result, runErr := runner.Run(ctx, r, d, runner.Options{MaxLineBytes: s.opts.MaxLineBytes})

	summary := d.Handler().Summary(s.opts.TopQuantifiers)
	run.Lines = result.Lines
	run.Terminated = result.Terminated
	run.Diagnostics = collector.Total()
	run.Solver = summary.Version.Solver
	run.Version = summary.Version.Version

	lifecycle := workflow.NewRunMachine()
	trigger := workflow.TriggerExhaust
	switch {
	case runErr != nil:
		trigger = workflow.TriggerFail
		run.Error = runErr.Error()
	case result.Terminated:
		trigger = workflow.TriggerTerminate
	}
	if err := lifecycle.Fire(trigger); err != nil {
		return nil, fmt.Errorf("failed to close run: %w", err)
	}
	run.Status = lifecycle.State().String()

	if s.runs != nil {
		if err := s.runs.Finish(run); err != nil {
			s.logger.Error("Failed to finish run", zap.Int64("run_id", run.ID), zap.Error(err))
			return nil, fmt.Errorf("failed to record run outcome: %w", err)
		}
	}

	report := &Report{
		Source:          source,
		Status:          run.Status,
		Lines:           run.Lines,
		Terminated:      run.Terminated,
		Summary:         summary,
		DiagnosticCount: run.Diagnostics,
		Diagnostics:     toViews(collector.Diagnostics()),
	}
	if s.runs != nil {
		report.Run = run
	}
	if counts := counter.Counts(); len(counts) > 0 {
		report.DiagnosticsByOpcode = make(map[string]int, len(counts))
		for op, n := range counts {
			report.DiagnosticsByOpcode[op.String()] = n
		}
	}

	s.logger.Info("Trace analyzed",
		zap.String("source", source),
		zap.String("status", run.Status),
		zap.Int("lines", run.Lines),
		zap.Int("diagnostics", run.Diagnostics))

	if runErr != nil {
		return report, fmt.Errorf("failed to analyze %s: %w", source, runErr)
	}
	return report, nil
}

// GetRun retrieves a recorded run
func (s *traceServiceImpl) GetRun(ctx context.Context, id int64) (*models.TraceRun, error) {
	if s.runs == nil {
		return nil, ErrStoreDisabled
	}
	return s.runs.GetByID(id)
}

// ListRuns returns the most recent runs first
func (s *traceServiceImpl) ListRuns(ctx context.Context, limit int) ([]*models.TraceRun, error) {
	if s.runs == nil {
		return nil, ErrStoreDisabled
	}
	return s.runs.List(limit)
}

// RunDiagnostics returns the persisted diagnostics of a run in line order
func (s *traceServiceImpl) RunDiagnostics(ctx context.Context, id int64) ([]*models.DiagnosticRecord, error) {
	if s.runs == nil || s.diags == nil {
		return nil, ErrStoreDisabled
	}
	if _, err := s.runs.GetByID(id); err != nil {
		return nil, err
	}
	return s.diags.GetByRunID(id)
}

func toViews(diags []dispatcher.Diagnostic) []DiagnosticView {
	if len(diags) == 0 {
		return nil
	}
	views := make([]DiagnosticView, len(diags))
	for i, d := range diags {
		views[i] = DiagnosticView{
			LineNo: d.LineNo,
			Opcode: d.Opcode.String(),
			Line:   d.Line,
		}
		if d.Err != nil {
			views[i].Message = d.Err.Error()
		}
	}
	return views
}
