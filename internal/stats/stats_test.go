package stats

import (
	"bufio"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/smt-log-parser/internal/application/dispatcher"
)

type diagSink struct {
	diags []dispatcher.Diagnostic
}

func (d *diagSink) Report(diag dispatcher.Diagnostic) {
	d.diags = append(d.diags, diag)
}

// feed dispatches lines until [eof] and returns the number of lines seen.
func feed(t *testing.T, d *dispatcher.Dispatcher[*Stats], lines ...string) int {
	t.Helper()
	for i, line := range lines {
		if !d.ProcessLine(line, i+1) {
			return i + 1
		}
	}
	return len(lines)
}

func TestStats_TraceFile(t *testing.T) {
	f, err := os.Open("testdata/trace.log")
	require.NoError(t, err)
	defer f.Close()

	sink := &diagSink{}
	d := dispatcher.New[Stats](dispatcher.WithReporter(sink))

	scanner := bufio.NewScanner(f)
	lineNo := 0
	stopped := false
	for scanner.Scan() {
		lineNo++
		if !d.ProcessLine(scanner.Text(), lineNo) {
			stopped = true
			break
		}
	}
	require.NoError(t, scanner.Err())

	assert.True(t, stopped)
	assert.Equal(t, 35, lineNo)
	assert.Empty(t, sink.diags)

	s := d.Handler()
	sum := s.Summary(5)
	assert.Equal(t, dispatcher.VersionInfo{Solver: "Z3", Version: "4.12.1"}, sum.Version)
	assert.Equal(t, 11, sum.Terms)
	assert.Equal(t, 1, sum.Quantifiers)
	assert.Equal(t, 1, sum.Vars)
	assert.Equal(t, 9, sum.Apps)
	assert.Equal(t, 1, sum.Meanings)
	assert.Equal(t, 3, sum.Enodes)
	assert.Equal(t, map[string]int{"root": 1, "lit": 1}, sum.Equalities)
	assert.Equal(t, 1, sum.Matches)
	assert.Equal(t, 1, sum.Discovered)
	assert.Equal(t, 2, sum.Instances)
	assert.False(t, sum.OpenInstance)
	assert.Equal(t, 1, sum.Checks)
	assert.Equal(t, 1, sum.Pushes)
	assert.Equal(t, 1, sum.Pops)
	assert.Equal(t, 1, sum.MaxScope)
	assert.Equal(t, 0, s.Scope())

	require.Len(t, sum.TopQuantifiers, 1)
	q := sum.TopQuantifiers[0]
	assert.Equal(t, "#7", q.ID)
	assert.Equal(t, "k!10", q.Name)
	assert.Equal(t, 1, q.NumVars)
	assert.Equal(t, []string{"x y"}, q.VarNames)
	assert.Equal(t, 1, q.Matches)
	assert.Equal(t, 1, q.Instances)

	instances := s.Instances()
	require.Len(t, instances, 2)
	assert.Equal(t, dispatcher.Fingerprint(0xa1b2), instances[0].Fingerprint)
	assert.Equal(t, "#11", instances[0].Proof)
	assert.Equal(t, 1, instances[0].Generation)
	assert.Equal(t, 20, instances[0].LineNo)
	assert.True(t, instances[0].Closed)
	assert.Equal(t, dispatcher.Fingerprint(0xc3d4), instances[1].Fingerprint)
	assert.True(t, instances[1].Closed)

	m, ok := s.Match(0xc3d4)
	require.True(t, ok)
	assert.Equal(t, "theory-solving", m.Method)
	assert.Equal(t, 25, m.LineNo)
}

func TestStats_MalformedLines(t *testing.T) {
	prelude := []string{
		"[mk-app] #1 a",
		"[mk-var] #2 0",
		"[mk-app] #3 pattern #1",
		"[mk-quant] #4 q 1 #3 #1",
	}

	tests := []struct {
		name string
		line string
		err  error
	}{
		{"version without version", "[tool-version] Z3", ErrMissingField},
		{"quant without name", "[mk-quant] #9", ErrMissingField},
		{"quant with bad id", "[mk-quant] 9 q", ErrInvalidField},
		{"quant with bad var count", "[mk-quant] #9 q many", ErrInvalidField},
		{"var without index", "[mk-var] #9", ErrMissingField},
		{"var with negative index", "[mk-var] #9 -1", ErrInvalidField},
		{"app with unknown argument", "[mk-app] #9 f #77", ErrUnknownTerm},
		{"app with non term argument", "[mk-app] #9 f x", ErrInvalidField},
		{"proof without name", "[mk-proof] #9", ErrMissingField},
		{"meaning without value", "[attach-meaning] #1 arith", ErrMissingField},
		{"meaning on unknown term", "[attach-meaning] #77 arith 1", ErrUnknownTerm},
		{"var names on non quantifier", "[attach-var-names] #1 (|x| ; |Int|)", ErrUnknownTerm},
		{"var names without separator", "[attach-var-names] #4 (|x| |Int|)", ErrInvalidField},
		{"var names unterminated", "[attach-var-names] #4 (|x| ; |Int|", ErrInvalidField},
		{"enode on unknown term", "[attach-enode] #77 0", ErrUnknownTerm},
		{"enode without generation", "[attach-enode] #1", ErrMissingField},
		{"equality with unknown kind", "[eq-expl] #1 guess ; #2", ErrInvalidField},
		{"equality without target", "[eq-expl] #1 lit #2", ErrMissingField},
		{"match with bad fingerprint", "[new-match] #4 #4 #3", dispatcher.ErrInvalidFingerprint},
		{"match on unknown quantifier", "[new-match] 0x1 #1 #3", ErrUnknownTerm},
		{"match without trigger", "[new-match] 0x1 #4", ErrMissingField},
		{"discovery without fingerprint", "[inst-discovered] theory-solving", ErrMissingField},
		{"instance of unknown fingerprint", "[instance] 0x99", ErrUnknownFingerprint},
		{"instance with bad proof", "[instance] 0x99 proof", ErrInvalidField},
		{"push without scope", "[push]", ErrMissingField},
		{"pop below base", "[pop] 1 1", ErrScopeUnderflow},
		{"pop with bad count", "[pop] x 1", ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &diagSink{}
			d := dispatcher.New[Stats](dispatcher.WithReporter(sink))
			feed(t, d, prelude...)
			require.Empty(t, sink.diags)
			before := d.Handler().Summary(0)

			assert.True(t, d.ProcessLine(tt.line, 100))

			require.Len(t, sink.diags, 1)
			assert.ErrorIs(t, sink.diags[0], tt.err)
			assert.Equal(t, tt.line, sink.diags[0].Line)
			assert.Equal(t, before, d.Handler().Summary(0), "malformed lines must not change state")
		})
	}
}

func TestStats_VersionAnnouncedOnce(t *testing.T) {
	sink := &diagSink{}
	d := dispatcher.New[Stats](dispatcher.WithReporter(sink))

	feed(t, d, "[tool-version] Z3 4.12.1", "[tool-version] Z3 4.13.0")

	assert.Equal(t, "4.12.1", d.Handler().Version().Version)
	require.Len(t, sink.diags, 1)
	assert.ErrorIs(t, sink.diags[0], ErrVersionAnnounced)
}

func TestStats_InstanceNesting(t *testing.T) {
	sink := &diagSink{}
	d := dispatcher.New[Stats](dispatcher.WithReporter(sink))

	feed(t, d,
		"[inst-discovered] MBQI 0x1 #1",
		"[inst-discovered] MBQI 0x2 #1",
		"[instance] 0x1",
		"[instance] 0x2",
		"[end-of-instance]",
		"[end-of-instance]",
		"[instance] 0x2 #5 ; 3",
	)

	require.Len(t, sink.diags, 1)
	assert.ErrorIs(t, sink.diags[0], ErrInstanceOpen)
	assert.Equal(t, 4, sink.diags[0].LineNo)

	instances := d.Handler().Instances()
	require.Len(t, instances, 2)
	assert.True(t, instances[0].Closed)
	assert.False(t, instances[1].Closed)
	assert.Equal(t, 3, instances[1].Generation)
	assert.True(t, d.Handler().Summary(0).OpenInstance)
}

func TestStats_ScopeTracking(t *testing.T) {
	d := dispatcher.New[Stats]()

	feed(t, d, "[push] 0", "[push] 1", "[push] 2", "[pop] 2 3", "[push] 1")

	sum := d.Handler().Summary(0)
	assert.Equal(t, 4, sum.Pushes)
	assert.Equal(t, 1, sum.Pops)
	assert.Equal(t, 3, sum.MaxScope)
	assert.Equal(t, 2, d.Handler().Scope())
}

func TestStats_TopQuantifiers(t *testing.T) {
	d := dispatcher.New[Stats]()
	feed(t, d,
		"[mk-app] #1 a",
		"[mk-quant] #2 first 1 #1",
		"[mk-quant] #3 second 1 #1",
		"[mk-quant] #4 third 1 #1",
		"[new-match] 0x1 #3 #1",
		"[instance] 0x1",
		"[end-of-instance]",
		"[new-match] 0x2 #3 #1",
		"[instance] 0x2",
		"[end-of-instance]",
		"[new-match] 0x3 #4 #1",
		"[instance] 0x3",
		"[end-of-instance]",
	)

	top := d.Handler().Summary(2).TopQuantifiers
	require.Len(t, top, 2)
	assert.Equal(t, "second", top[0].Name)
	assert.Equal(t, 2, top[0].Instances)
	assert.Equal(t, "third", top[1].Name)

	assert.Nil(t, d.Handler().Summary(0).TopQuantifiers)
}

func TestParseVarNames(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single quoted", "(|x| ; |Int|)", []string{"x"}},
		{"embedded spaces", " (|x y| ; |Int|) (|z| ; |Bool|)", []string{"x y", "z"}},
		{"unquoted", "(x ; Int)", []string{"x"}},
		{"parens in sort", "(|a| ; (Array Int Int))", []string{"a"}},
		{"paren inside bars", "(|f(x)| ; |Int|)", []string{"f(x)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVarNames(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStats_QuantifierRedefinitionKeepsCounters(t *testing.T) {
	sink := &diagSink{}
	d := dispatcher.New[Stats](dispatcher.WithReporter(sink))

	feed(t, d,
		"[mk-app] #1 a",
		"[mk-quant] #2 q 1 #1",
		"[new-match] 0x1 #2 #1",
		"[instance] 0x1",
		"[end-of-instance]",
		"[mk-quant] #2 q-renamed 2 #1",
	)
	require.Empty(t, sink.diags)

	sum := d.Handler().Summary(5)
	assert.Equal(t, 1, sum.Quantifiers)
	require.Len(t, sum.TopQuantifiers, 1)
	q := sum.TopQuantifiers[0]
	assert.Equal(t, "q-renamed", q.Name)
	assert.Equal(t, 2, q.NumVars)
	assert.Equal(t, 1, q.Matches)
	assert.Equal(t, 1, q.Instances)
}
