package dispatcher

// InstantiationHandler holds the line cases every backend must implement.
// They carry the events needed to rebuild terms, matches and instances.
//
// Each method receives the fields that follow the opcode. A non-nil error
// means the line was recognized but could not be used; implementations must
// validate before mutating their state.
type InstantiationHandler interface {
	// VersionInfo handles [tool-version].
	VersionInfo(args *Tokens) error
	// MkQuant handles [mk-quant] and [mk-lambda].
	MkQuant(args *Tokens) error
	// MkVar handles [mk-var].
	MkVar(args *Tokens) error
	// MkProofApp handles [mk-proof] and [mk-app].
	MkProofApp(args *Tokens) error
	// AttachMeaning handles [attach-meaning].
	AttachMeaning(args *Tokens) error
	// AttachVarNames handles [attach-var-names]. Variable names may contain
	// spaces so the raw line is passed along.
	AttachVarNames(args *Tokens, line string) error
	// AttachEnode handles [attach-enode].
	AttachEnode(args *Tokens) error
	// EqExpl handles [eq-expl].
	EqExpl(args *Tokens) error
	// NewMatch handles [new-match].
	NewMatch(args *Tokens, lineNo int) error
	// InstDiscovered handles [inst-discovered].
	InstDiscovered(args *Tokens, lineNo int, line string) error
	// Instance handles [instance].
	Instance(args *Tokens, lineNo int) error
	// EndOfInstance handles [end-of-instance]. It cannot fail.
	EndOfInstance()
}

// SearchHandler holds the auxiliary search-trace line cases. Backends
// that do not care about them embed SearchDefaults.
type SearchHandler interface {
	DecideAndOr(args *Tokens) error
	Decide(args *Tokens) error
	Assign(args *Tokens) error
	Push(args *Tokens) error
	Pop(args *Tokens) error
	BeginCheck(args *Tokens) error
	QueryDone(args *Tokens) error
	ResolveProcess(args *Tokens) error
	ResolveLit(args *Tokens) error
	Conflict(args *Tokens) error
}

// Handler is the full set of line cases a Dispatcher routes to.
type Handler interface {
	InstantiationHandler
	SearchHandler
}

// SearchDefaults accepts every search line case and ignores it. Embed it in
// a backend and override only the methods of interest.
type SearchDefaults struct{}

func (SearchDefaults) DecideAndOr(*Tokens) error    { return nil }
func (SearchDefaults) Decide(*Tokens) error         { return nil }
func (SearchDefaults) Assign(*Tokens) error         { return nil }
func (SearchDefaults) Push(*Tokens) error           { return nil }
func (SearchDefaults) Pop(*Tokens) error            { return nil }
func (SearchDefaults) BeginCheck(*Tokens) error     { return nil }
func (SearchDefaults) QueryDone(*Tokens) error      { return nil }
func (SearchDefaults) ResolveProcess(*Tokens) error { return nil }
func (SearchDefaults) ResolveLit(*Tokens) error     { return nil }
func (SearchDefaults) Conflict(*Tokens) error       { return nil }

// WithSearchDefaults completes a backend that only implements the required
// line cases.
func WithSearchDefaults(h InstantiationHandler) Handler {
	return partialHandler{InstantiationHandler: h}
}

type partialHandler struct {
	InstantiationHandler
	SearchDefaults
}

var _ SearchHandler = SearchDefaults{}
