package dispatcher

import "fmt"

// Diagnostic is the advisory emitted when a handler rejects a recognized
// line. It never stops the stream.
type Diagnostic struct {
	LineNo int
	Line   string
	Opcode Opcode
	Err    error
}

func (d Diagnostic) Error() string {
	if d.Err == nil {
		return fmt.Sprintf("Error parsing line %d: %s", d.LineNo, d.Line)
	}
	return fmt.Sprintf("Error parsing line %d: %s: %v", d.LineNo, d.Line, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Reporter receives diagnostics from a Dispatcher.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(d Diagnostic)

// Report calls f(d).
func (f ReporterFunc) Report(d Diagnostic) {
	f(d)
}

// Discard drops every diagnostic.
var Discard Reporter = ReporterFunc(func(Diagnostic) {})

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// LoggerReporter writes each diagnostic as an error entry on logger.
func LoggerReporter(logger Logger) Reporter {
	return ReporterFunc(func(d Diagnostic) {
		logger.Error("Error parsing line",
			"line_no", d.LineNo,
			"opcode", d.Opcode.String(),
			"line", d.Line,
			"error", d.Err,
		)
	})
}
