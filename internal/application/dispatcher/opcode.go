package dispatcher

// Opcode is the bracketed tag that opens every trace line.
type Opcode string

const (
	OpToolVersion    Opcode = "[tool-version]"
	OpMkQuant        Opcode = "[mk-quant]"
	OpMkLambda       Opcode = "[mk-lambda]"
	OpMkVar          Opcode = "[mk-var]"
	OpMkProof        Opcode = "[mk-proof]"
	OpMkApp          Opcode = "[mk-app]"
	OpAttachMeaning  Opcode = "[attach-meaning]"
	OpAttachVarNames Opcode = "[attach-var-names]"
	OpAttachEnode    Opcode = "[attach-enode]"
	OpEqExpl         Opcode = "[eq-expl]"
	OpNewMatch       Opcode = "[new-match]"
	OpInstDiscovered Opcode = "[inst-discovered]"
	OpInstance       Opcode = "[instance]"
	OpEndOfInstance  Opcode = "[end-of-instance]"
	OpDecideAndOr    Opcode = "[decide-and-or]"
	OpDecide         Opcode = "[decide]"
	OpAssign         Opcode = "[assign]"
	OpPush           Opcode = "[push]"
	OpPop            Opcode = "[pop]"
	OpBeginCheck     Opcode = "[begin-check]"
	OpQueryDone      Opcode = "[query-done]"
	OpEOF            Opcode = "[eof]"
	OpResolveProcess Opcode = "[resolve-process]"
	OpResolveLit     Opcode = "[resolve-lit]"
	OpConflict       Opcode = "[conflict]"
)

// lineCase invokes one handler operation for a line whose opcode has
// already been split off.
type lineCase func(h Handler, args *Tokens, lineNo int, line string) error

// lineCases is the fixed opcode table. [mk-quant]/[mk-lambda] and
// [mk-proof]/[mk-app] are aliases. [eof] has no entry because no handler
// runs for it.
var lineCases = map[Opcode]lineCase{
	OpToolVersion: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.VersionInfo(args)
	},
	OpMkQuant:  mkQuant,
	OpMkLambda: mkQuant,
	OpMkVar: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.MkVar(args)
	},
	OpMkProof: mkProofApp,
	OpMkApp:   mkProofApp,
	OpAttachMeaning: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.AttachMeaning(args)
	},
	OpAttachVarNames: func(h Handler, args *Tokens, _ int, line string) error {
		return h.AttachVarNames(args, line)
	},
	OpAttachEnode: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.AttachEnode(args)
	},
	OpEqExpl: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.EqExpl(args)
	},
	OpNewMatch: func(h Handler, args *Tokens, lineNo int, _ string) error {
		return h.NewMatch(args, lineNo)
	},
	OpInstDiscovered: func(h Handler, args *Tokens, lineNo int, line string) error {
		return h.InstDiscovered(args, lineNo, line)
	},
	OpInstance: func(h Handler, args *Tokens, lineNo int, _ string) error {
		return h.Instance(args, lineNo)
	},
	OpEndOfInstance: func(h Handler, _ *Tokens, _ int, _ string) error {
		h.EndOfInstance()
		return nil
	},
	OpDecideAndOr: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.DecideAndOr(args)
	},
	OpDecide: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.Decide(args)
	},
	OpAssign: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.Assign(args)
	},
	OpPush: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.Push(args)
	},
	OpPop: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.Pop(args)
	},
	OpBeginCheck: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.BeginCheck(args)
	},
	OpQueryDone: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.QueryDone(args)
	},
	OpResolveProcess: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.ResolveProcess(args)
	},
	OpResolveLit: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.ResolveLit(args)
	},
	OpConflict: func(h Handler, args *Tokens, _ int, _ string) error {
		return h.Conflict(args)
	},
}

func mkQuant(h Handler, args *Tokens, _ int, _ string) error {
	return h.MkQuant(args)
}

func mkProofApp(h Handler, args *Tokens, _ int, _ string) error {
	return h.MkProofApp(args)
}

// allOpcodes lists every recognized tag in log order of appearance.
var allOpcodes = []Opcode{
	OpToolVersion, OpMkQuant, OpMkLambda, OpMkVar, OpMkProof, OpMkApp,
	OpAttachMeaning, OpAttachVarNames, OpAttachEnode, OpEqExpl, OpNewMatch,
	OpInstDiscovered, OpInstance, OpEndOfInstance, OpDecideAndOr, OpDecide,
	OpAssign, OpPush, OpPop, OpBeginCheck, OpQueryDone, OpEOF,
	OpResolveProcess, OpResolveLit, OpConflict,
}

// Opcodes returns every recognized opcode, [eof] included.
func Opcodes() []Opcode {
	out := make([]Opcode, len(allOpcodes))
	copy(out, allOpcodes)
	return out
}

// LookupOpcode reports whether tag is a recognized opcode.
func LookupOpcode(tag string) (Opcode, bool) {
	op := Opcode(tag)
	if op == OpEOF {
		return op, true
	}
	_, ok := lineCases[op]
	return op, ok
}

// IsTerminal reports whether op ends the stream.
func (op Opcode) IsTerminal() bool {
	return op == OpEOF
}

func (op Opcode) String() string {
	return string(op)
}
