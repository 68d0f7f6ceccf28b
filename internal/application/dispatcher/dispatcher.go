// Package dispatcher routes the lines of a Z3 trace log to typed handler
// operations.
//
// Every line starts with a bracketed opcode such as [mk-app] or [instance].
// The Dispatcher splits the line on spaces, looks the opcode up in a fixed
// table and hands the remaining fields to exactly one Handler method.
// Unknown opcodes are ignored so that newer solver versions can add tags,
// [eof] ends the stream, and a handler error only produces a Diagnostic.
//
// A Dispatcher is not safe for concurrent use. It does no I/O; the caller
// supplies lines and their 1-based numbers.
package dispatcher

import "fmt"

// Dispatcher routes trace lines to a backend of type H.
type Dispatcher[H Handler] struct {
	handler  H
	reporter Reporter
}

// HandlerPtr constrains a pointer to a backend whose zero value is a valid
// initial state.
type HandlerPtr[T any] interface {
	*T
	Handler
}

type options struct {
	reporter Reporter
}

// Option configures the dispatcher
type Option func(*options)

// WithReporter sets the sink for diagnostics. The default discards them.
func WithReporter(reporter Reporter) Option {
	return func(o *options) {
		if reporter != nil {
			o.reporter = reporter
		}
	}
}

// WithLogger reports diagnostics through logger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.reporter = LoggerReporter(logger)
		}
	}
}

// NewDispatcher creates a dispatcher that feeds handler.
func NewDispatcher[H Handler](handler H, opts ...Option) *Dispatcher[H] {
	o := options{reporter: Discard}
	for _, opt := range opts {
		opt(&o)
	}

	return &Dispatcher[H]{
		handler:  handler,
		reporter: o.reporter,
	}
}

// New creates a dispatcher over a fresh zero-valued backend T.
func New[T any, P HandlerPtr[T]](opts ...Option) *Dispatcher[P] {
	return NewDispatcher[P](P(new(T)), opts...)
}

// Handler returns the backend the dispatcher feeds.
func (d *Dispatcher[H]) Handler() H {
	return d.handler
}

// ProcessLine dispatches one line. It returns false only for [eof], telling
// the caller to stop feeding lines.
func (d *Dispatcher[H]) ProcessLine(line string, lineNo int) bool {
	tag, args := Tokenize(line)
	op := Opcode(tag)
	if op.IsTerminal() {
		return false
	}

	lc, ok := lineCases[op]
	if !ok {
		return true
	}

	if err := d.safeExecute(lc, args, lineNo, line); err != nil {
		d.reporter.Report(Diagnostic{
			LineNo: lineNo,
			Line:   line,
			Opcode: op,
			Err:    err,
		})
	}
	return true
}

// safeExecute runs a line case with panic recovery
func (d *Dispatcher[H]) safeExecute(lc lineCase, args *Tokens, lineNo int, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return lc(d.handler, args, lineNo, line)
}
