// Package dump is a trace backend that prints every dispatched event on its
// own line. It keeps no model of the trace and is meant for inspecting what
// the dispatcher sees.
package dump

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
)

// ErrNoFields is returned for an event line that carries no fields at all
var ErrNoFields = errors.New("event has no fields")

// Dump implements dispatcher.Handler by writing one line per event:
//
//	new-match        line=12 0x1 #2 #1
type Dump struct {
	w      io.Writer
	events int
}

var _ dispatcher.Handler = (*Dump)(nil)

// New creates a Dump writing to w
func New(w io.Writer) *Dump {
	return &Dump{w: w}
}

// Events returns the number of events written
func (d *Dump) Events() int {
	return d.events
}

func (d *Dump) emit(event string, fields []string) error {
	if _, err := fmt.Fprintf(d.w, "%-16s %s\n", event, strings.Join(fields, " ")); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	d.events++
	return nil
}

// required prints an event of a line case every trace must describe fully
func (d *Dump) required(event string, args *dispatcher.Tokens, lineNo int) error {
	fields := args.Rest()
	if len(fields) == 0 {
		return ErrNoFields
	}
	if lineNo > 0 {
		fields = append([]string{fmt.Sprintf("line=%d", lineNo)}, fields...)
	}
	return d.emit(event, fields)
}

func (d *Dump) VersionInfo(args *dispatcher.Tokens) error {
	return d.required("tool-version", args, 0)
}

func (d *Dump) MkQuant(args *dispatcher.Tokens) error {
	return d.required("mk-quant", args, 0)
}

func (d *Dump) MkVar(args *dispatcher.Tokens) error {
	return d.required("mk-var", args, 0)
}

func (d *Dump) MkProofApp(args *dispatcher.Tokens) error {
	return d.required("mk-app", args, 0)
}

func (d *Dump) AttachMeaning(args *dispatcher.Tokens) error {
	return d.required("attach-meaning", args, 0)
}

// AttachVarNames prints the names unsplit, they may contain spaces.
func (d *Dump) AttachVarNames(args *dispatcher.Tokens, _ string) error {
	rest := args.Remaining()
	if rest == "" {
		return ErrNoFields
	}
	return d.emit("attach-var-names", []string{rest})
}

func (d *Dump) AttachEnode(args *dispatcher.Tokens) error {
	return d.required("attach-enode", args, 0)
}

func (d *Dump) EqExpl(args *dispatcher.Tokens) error {
	return d.required("eq-expl", args, 0)
}

func (d *Dump) NewMatch(args *dispatcher.Tokens, lineNo int) error {
	return d.required("new-match", args, lineNo)
}

func (d *Dump) InstDiscovered(args *dispatcher.Tokens, lineNo int, _ string) error {
	return d.required("inst-discovered", args, lineNo)
}

func (d *Dump) Instance(args *dispatcher.Tokens, lineNo int) error {
	return d.required("instance", args, lineNo)
}

func (d *Dump) EndOfInstance() {
	_ = d.emit("end-of-instance", nil)
}

func (d *Dump) DecideAndOr(args *dispatcher.Tokens) error {
	return d.emit("decide-and-or", args.Rest())
}

func (d *Dump) Decide(args *dispatcher.Tokens) error {
	return d.emit("decide", args.Rest())
}

func (d *Dump) Assign(args *dispatcher.Tokens) error {
	return d.emit("assign", args.Rest())
}

func (d *Dump) Push(args *dispatcher.Tokens) error {
	return d.emit("push", args.Rest())
}

func (d *Dump) Pop(args *dispatcher.Tokens) error {
	return d.emit("pop", args.Rest())
}

func (d *Dump) BeginCheck(args *dispatcher.Tokens) error {
	return d.emit("begin-check", args.Rest())
}

func (d *Dump) QueryDone(args *dispatcher.Tokens) error {
	return d.emit("query-done", args.Rest())
}

func (d *Dump) ResolveProcess(args *dispatcher.Tokens) error {
	return d.emit("resolve-process", args.Rest())
}

func (d *Dump) ResolveLit(args *dispatcher.Tokens) error {
	return d.emit("resolve-lit", args.Rest())
}

func (d *Dump) Conflict(args *dispatcher.Tokens) error {
	return d.emit("conflict", args.Rest())
}
