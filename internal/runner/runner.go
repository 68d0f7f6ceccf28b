// Package runner feeds a trace log to a line processor one line at a time.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineBytes bounds a single trace line. Z3 prints large terms on
// one line, so the bufio default of 64KiB is too small.
const DefaultMaxLineBytes = 16 << 20

// LineProcessor consumes one line. It returns false to stop the run.
type LineProcessor interface {
	ProcessLine(line string, lineNo int) bool
}

// Options configures a run
type Options struct {
	MaxLineBytes int
	// OnLine is called after every dispatched line, for progress reporting
	OnLine func(lineNo int)
}

// Result describes a finished run
type Result struct {
	// Lines is the number of lines read, including skipped empty lines
	Lines int
	// Terminated is true when the processor asked to stop
	Terminated bool
}

// Run reads r line by line and dispatches every non-empty line to p with
// its 1-based line number. It stops at the end of input, when p returns
// false, or when ctx is done.
func Run(ctx context.Context, r io.Reader, p LineProcessor, opts Options) (Result, error) {
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	initial := 64 * 1024
	if maxLine < initial {
		initial = maxLine
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLine)

	var res Result
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Lines++

		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if !p.ProcessLine(line, res.Lines) {
			res.Terminated = true
			return res, nil
		}
		if opts.OnLine != nil {
			opts.OnLine(res.Lines)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read line %d: %w", res.Lines+1, err)
	}
	return res, nil
}

// ProcessorFunc adapts a function to a LineProcessor
type ProcessorFunc func(line string, lineNo int) bool

// ProcessLine calls f(line, lineNo)
func (f ProcessorFunc) ProcessLine(line string, lineNo int) bool {
	return f(line, lineNo)
}
