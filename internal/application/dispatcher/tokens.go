package dispatcher

import "strings"

// Separator is the only field delimiter of a trace line.
const Separator = ' '

// Tokens is a single-pass stream of the space separated fields of one line.
// Fields are produced lazily and empty fields are preserved, so two
// consecutive spaces yield an empty token. A consumed field cannot be read
// again.
type Tokens struct {
	rest string
	done bool
}

// Tokenize splits off the first field of line as the opcode tag and returns
// the remaining fields as a stream.
func Tokenize(line string) (string, *Tokens) {
	opcode, rest, found := strings.Cut(line, string(Separator))
	return opcode, &Tokens{rest: rest, done: !found}
}

// NewTokens returns a stream over every field of s.
func NewTokens(s string) *Tokens {
	return &Tokens{rest: s}
}

// Next returns the next field. The second result is false once the stream
// is exhausted.
func (t *Tokens) Next() (string, bool) {
	if t == nil || t.done {
		return "", false
	}

	field, rest, found := strings.Cut(t.rest, string(Separator))
	if found {
		t.rest = rest
	} else {
		t.rest = ""
		t.done = true
	}
	return field, true
}

// Rest drains the stream and returns the fields that were left.
func (t *Tokens) Rest() []string {
	var fields []string
	for {
		field, ok := t.Next()
		if !ok {
			return fields
		}
		fields = append(fields, field)
	}
}

// Remaining drains the stream and returns the unsplit text that was left.
// Handlers use it when a value may contain embedded spaces.
func (t *Tokens) Remaining() string {
	if t == nil || t.done {
		return ""
	}
	rest := t.rest
	t.rest = ""
	t.done = true
	return rest
}

// Exhausted reports whether no field is left.
func (t *Tokens) Exhausted() bool {
	return t == nil || t.done
}
