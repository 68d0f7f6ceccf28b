// Package stats is a trace backend that checks the structure of a Z3 trace
// and counts what it contains: terms, quantifiers, matches, instances and
// search events. It does not keep the term graph.
//
// The zero value is ready to use, so a Stats can be created by
// dispatcher.New[stats.Stats]().
package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
)

var (
	ErrMissingField       = errors.New("missing field")
	ErrInvalidField       = errors.New("invalid field")
	ErrUnknownTerm        = errors.New("unknown term")
	ErrUnknownFingerprint = errors.New("unknown fingerprint")
	ErrVersionAnnounced   = errors.New("version already announced")
	ErrInstanceOpen       = errors.New("instance already open")
	ErrScopeUnderflow     = errors.New("pop below base scope")
)

// Quantifier is a quantifier or lambda created by [mk-quant]/[mk-lambda].
type Quantifier struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	NumVars   int      `json:"num_vars" yaml:"num_vars"`
	VarNames  []string `json:"var_names,omitempty" yaml:"var_names,omitempty"`
	Matches   int      `json:"matches" yaml:"matches"`
	Instances int      `json:"instances" yaml:"instances"`
}

// Match is a pattern match announced by [new-match] or an instantiation
// found by a theory and announced by [inst-discovered].
type Match struct {
	Fingerprint dispatcher.Fingerprint
	Quantifier  string
	Trigger     string
	Method      string
	LineNo      int
}

// Instance is one [instance] ... [end-of-instance] block.
type Instance struct {
	Fingerprint dispatcher.Fingerprint
	Proof       string
	Generation  int
	LineNo      int
	Closed      bool
}

// Stats implements dispatcher.Handler.
type Stats struct {
	dispatcher.SearchDefaults

	version     dispatcher.VersionInfo
	versionSeen bool

	terms       map[string]struct{}
	quantifiers map[string]*Quantifier
	quantOrder  []string
	matches     map[dispatcher.Fingerprint]*Match
	instances   []Instance
	open        int // index+1 of the open instance, 0 when none

	vars       int
	apps       int
	meanings   int
	enodes     int
	equalities map[string]int
	matched    int
	discovered int

	scope    int
	maxScope int
	checks   int
	pushes   int
	pops     int
}

var _ dispatcher.Handler = (*Stats)(nil)

func (s *Stats) init() {
	if s.terms == nil {
		s.terms = make(map[string]struct{})
		s.quantifiers = make(map[string]*Quantifier)
		s.matches = make(map[dispatcher.Fingerprint]*Match)
		s.equalities = make(map[string]int)
	}
}

// field reads the next field and rejects empty values.
func field(args *dispatcher.Tokens, name string) (string, error) {
	v, ok := args.Next()
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingField, name)
	}
	return v, nil
}

// termID reads the next field as a term id of the form #n.
func termID(args *dispatcher.Tokens, name string) (string, error) {
	v, err := field(args, name)
	if err != nil {
		return "", err
	}
	if !isTermID(v) {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidField, name, v)
	}
	return v, nil
}

func isTermID(v string) bool {
	if len(v) < 2 || v[0] != '#' {
		return false
	}
	_, err := strconv.ParseUint(v[1:], 10, 64)
	return err == nil
}

func intField(args *dispatcher.Tokens, name string) (int, error) {
	v, err := field(args, name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidField, name, v)
	}
	return n, nil
}

func fingerprintField(args *dispatcher.Tokens) (dispatcher.Fingerprint, error) {
	v, err := field(args, "fingerprint")
	if err != nil {
		return 0, err
	}
	return dispatcher.ParseFingerprint(v)
}

// VersionInfo records the first [tool-version] line.
func (s *Stats) VersionInfo(args *dispatcher.Tokens) error {
	if s.versionSeen {
		return ErrVersionAnnounced
	}
	solver, err := field(args, "solver")
	if err != nil {
		return err
	}
	version, err := field(args, "version")
	if err != nil {
		return err
	}
	s.version = dispatcher.VersionInfo{Solver: solver, Version: version}
	s.versionSeen = true
	return nil
}

// MkQuant handles "#id name num_vars pattern... body".
func (s *Stats) MkQuant(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	name, err := field(args, "name")
	if err != nil {
		return err
	}
	numVars := 0
	if raw, ok := args.Next(); ok {
		if numVars, err = strconv.Atoi(raw); err != nil || numVars < 0 {
			return fmt.Errorf("%w: num_vars %q", ErrInvalidField, raw)
		}
	}

	s.init()
	// a redefinition renames the quantifier but keeps its counters
	if q, ok := s.quantifiers[id]; ok {
		q.Name = name
		q.NumVars = numVars
	} else {
		s.quantOrder = append(s.quantOrder, id)
		s.quantifiers[id] = &Quantifier{ID: id, Name: name, NumVars: numVars}
	}
	s.terms[id] = struct{}{}
	return nil
}

// MkVar handles "#id index".
func (s *Stats) MkVar(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	if _, err := intField(args, "index"); err != nil {
		return err
	}
	s.init()
	s.terms[id] = struct{}{}
	s.vars++
	return nil
}

// MkProofApp handles "#id name arg...". Every argument must already exist.
func (s *Stats) MkProofApp(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	if _, err := field(args, "name"); err != nil {
		return err
	}
	s.init()
	for _, arg := range args.Rest() {
		if !isTermID(arg) {
			return fmt.Errorf("%w: argument %q", ErrInvalidField, arg)
		}
		if _, ok := s.terms[arg]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTerm, arg)
		}
	}
	s.terms[id] = struct{}{}
	s.apps++
	return nil
}

// AttachMeaning handles "#id family value".
func (s *Stats) AttachMeaning(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	if _, err := field(args, "family"); err != nil {
		return err
	}
	if args.Remaining() == "" {
		return fmt.Errorf("%w: value", ErrMissingField)
	}
	if err := s.known(id); err != nil {
		return err
	}
	s.meanings++
	return nil
}

// AttachVarNames handles "#id (|name| ; |sort|)...". Names may contain
// spaces, so the groups are read from the raw line.
func (s *Stats) AttachVarNames(args *dispatcher.Tokens, line string) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	s.init()
	q, ok := s.quantifiers[id]
	if !ok {
		return fmt.Errorf("%w: quantifier %s", ErrUnknownTerm, id)
	}

	_, groups, _ := strings.Cut(line, " "+id)
	names, err := parseVarNames(groups)
	if err != nil {
		return err
	}
	q.VarNames = names
	return nil
}

// parseVarNames reads a sequence of "(name ; sort)" groups. Names and sorts
// may be quoted with bars.
func parseVarNames(s string) ([]string, error) {
	var names []string
	rest := strings.TrimSpace(s)
	for rest != "" {
		if rest[0] != '(' {
			return nil, fmt.Errorf("%w: variable group %q", ErrInvalidField, rest)
		}
		end := closingParen(rest)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated variable group", ErrInvalidField)
		}
		name, _, ok := strings.Cut(rest[1:end], " ; ")
		if !ok {
			return nil, fmt.Errorf("%w: variable group %q", ErrInvalidField, rest[:end+1])
		}
		names = append(names, strings.Trim(name, "|"))
		rest = strings.TrimSpace(rest[end+1:])
	}
	return names, nil
}

// closingParen returns the index of the paren closing s[0], skipping text
// between bars.
func closingParen(s string) int {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '|':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// AttachEnode handles "#id generation".
func (s *Stats) AttachEnode(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	if _, err := intField(args, "generation"); err != nil {
		return err
	}
	if err := s.known(id); err != nil {
		return err
	}
	s.enodes++
	return nil
}

var eqKinds = map[string]bool{
	"root": true, "lit": true, "cg": true, "th": true, "ax": true, "unknown": true,
}

// EqExpl handles "#id kind [explanation ; #target]".
func (s *Stats) EqExpl(args *dispatcher.Tokens) error {
	id, err := termID(args, "id")
	if err != nil {
		return err
	}
	kind, err := field(args, "kind")
	if err != nil {
		return err
	}
	if !eqKinds[kind] {
		return fmt.Errorf("%w: equality kind %q", ErrInvalidField, kind)
	}
	if kind != "root" {
		rest := args.Rest()
		if len(rest) < 2 || rest[len(rest)-2] != ";" || !isTermID(rest[len(rest)-1]) {
			return fmt.Errorf("%w: equality target", ErrMissingField)
		}
	}
	if err := s.known(id); err != nil {
		return err
	}
	s.equalities[kind]++
	return nil
}

// NewMatch handles "fingerprint #quantifier #trigger binding... ; used...".
func (s *Stats) NewMatch(args *dispatcher.Tokens, lineNo int) error {
	fp, err := fingerprintField(args)
	if err != nil {
		return err
	}
	qid, err := termID(args, "quantifier")
	if err != nil {
		return err
	}
	trigger, err := termID(args, "trigger")
	if err != nil {
		return err
	}
	s.init()
	q, ok := s.quantifiers[qid]
	if !ok {
		return fmt.Errorf("%w: quantifier %s", ErrUnknownTerm, qid)
	}

	q.Matches++
	s.matched++
	s.matches[fp] = &Match{Fingerprint: fp, Quantifier: qid, Trigger: trigger, LineNo: lineNo}
	return nil
}

// InstDiscovered handles "method fingerprint detail...".
func (s *Stats) InstDiscovered(args *dispatcher.Tokens, lineNo int, _ string) error {
	method, err := field(args, "method")
	if err != nil {
		return err
	}
	fp, err := fingerprintField(args)
	if err != nil {
		return err
	}
	s.init()
	s.matches[fp] = &Match{Fingerprint: fp, Method: method, LineNo: lineNo}
	s.discovered++
	return nil
}

// Instance handles "fingerprint [#proof [; generation]]" and opens an
// instance block.
func (s *Stats) Instance(args *dispatcher.Tokens, lineNo int) error {
	fp, err := fingerprintField(args)
	if err != nil {
		return err
	}
	inst := Instance{Fingerprint: fp, LineNo: lineNo}
	if proof, ok := args.Next(); ok {
		if !isTermID(proof) {
			return fmt.Errorf("%w: proof %q", ErrInvalidField, proof)
		}
		inst.Proof = proof
	}
	rest := args.Rest()
	if len(rest) > 0 && rest[0] == ";" {
		rest = rest[1:]
	}
	if len(rest) > 0 {
		gen, err := strconv.Atoi(rest[0])
		if err != nil || gen < 0 {
			return fmt.Errorf("%w: generation %q", ErrInvalidField, rest[0])
		}
		inst.Generation = gen
	}
	s.init()
	if s.open != 0 {
		return ErrInstanceOpen
	}
	m, ok := s.matches[fp]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFingerprint, fp)
	}

	if q, ok := s.quantifiers[m.Quantifier]; ok {
		q.Instances++
	}
	s.instances = append(s.instances, inst)
	s.open = len(s.instances)
	return nil
}

// EndOfInstance closes the open instance block, if any.
func (s *Stats) EndOfInstance() {
	if s.open == 0 {
		return
	}
	s.instances[s.open-1].Closed = true
	s.open = 0
}

// Push handles "[push] scope".
func (s *Stats) Push(args *dispatcher.Tokens) error {
	if _, err := intField(args, "scope"); err != nil {
		return err
	}
	s.pushes++
	s.scope++
	if s.scope > s.maxScope {
		s.maxScope = s.scope
	}
	return nil
}

// Pop handles "[pop] count scope".
func (s *Stats) Pop(args *dispatcher.Tokens) error {
	n, err := intField(args, "count")
	if err != nil {
		return err
	}
	if n > s.scope {
		return fmt.Errorf("%w: pop %d at depth %d", ErrScopeUnderflow, n, s.scope)
	}
	s.pops++
	s.scope -= n
	return nil
}

// BeginCheck counts [begin-check] lines.
func (s *Stats) BeginCheck(*dispatcher.Tokens) error {
	s.checks++
	return nil
}

func (s *Stats) known(id string) error {
	s.init()
	if _, ok := s.terms[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTerm, id)
	}
	return nil
}
