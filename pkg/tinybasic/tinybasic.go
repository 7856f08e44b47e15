package tinybasic

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/antibyte/retrobasic/pkg/logger"
)

// position addresses a statement: a line index into the run snapshot and a
// statement index within that line.
type position struct {
	line int
	stmt int
}

// TinyBASIC is one interpreter instance. It is not meant to be shared
// between sessions; SubmitLine serializes concurrent callers.
type TinyBASIC struct {
	// Dependencies and Configuration (External)
	program   ProgramStore
	out       OutputSink
	in        InputSource
	functions FunctionLibrary
	rng       *rand.Rand
	sessionID string

	maxGosubDepth   int
	maxForLoopDepth int

	// Interpreter State (Internal, protected by mu)
	variables   map[string]BASICValue // Stores variable values (name -> value).
	lines       []ProgramLine         // Snapshot walked by the current run.
	statements  map[int][]string      // Split statements per snapshot index, filled lazily.
	pc          position              // Program counter, valid while running.
	stmtIndex   int                   // Index of the executing statement in its line.
	currentLine int                   // The line number currently being executed (0 in direct mode).
	running     bool                  // Flag indicating if a program is currently executing via RUN.
	jumped      bool                  // A statement moved the program counter.
	skipLine    bool                  // A false IF abandons the rest of the line.
	forLoops    []ForLoopInfo         // Stack for tracking active FOR loops.
	gosubStack  []position            // Stack for tracking GOSUB return points.
	data        []BASICValue          // Values of all DATA statements, collected at RUN.
	dataPointer int                   // Current position within the data items for READ.
	column      int                   // Output column, reported by POS.

	mu sync.Mutex // Protects access to all interpreter state above.
}

// NewTinyBASIC creates and initializes a new TinyBASIC interpreter instance.
func NewTinyBASIC(opts ...Option) *TinyBASIC {
	b := &TinyBASIC{
		program:         NewMemoryProgram(),
		out:             discardSink{},
		in:              eofSource{},
		maxGosubDepth:   DefaultMaxGosubDepth,
		maxForLoopDepth: DefaultMaxForLoopDepth,
		variables:       make(map[string]BASICValue),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rng == nil {
		b.rng = defaultRand()
	}
	b.functions.Random = b.rng.Float64
	b.functions.Column = func() int { return b.column }
	b.functions.OnFault = func(code, fn string) {
		b.conversionFallback(code, fn)
	}
	return b
}

// Program returns the program store.
func (b *TinyBASIC) Program() ProgramStore {
	return b.program
}

// SubmitLine processes a single line of input with a background context.
func (b *TinyBASIC) SubmitLine(input string) error {
	return b.SubmitLineContext(context.Background(), input)
}

// SubmitLineContext processes a single line of input: a numbered line edits
// the program, LIST/RUN/NEW are program commands, anything else executes
// immediately. Errors are written to the output sink and also returned.
// Cancelling ctx stops a RUN between two statements.
func (b *TinyBASIC) SubmitLineContext(ctx context.Context, input string) error {
	input = strings.TrimRight(input, "\r\n")
	if strings.TrimSpace(input) == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	lineNum, code, isLine, err := parseProgramLine(input)
	if isLine {
		if err != nil {
			return b.report(NewBASICError(ErrCategorySyntax, "INVALID_LINE_NUMBER", true, DirectModeLine).Wrap(err))
		}
		return b.editLine(lineNum, code)
	}

	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "LIST":
		return b.reportIf(b.cmdList())
	case "RUN":
		return b.runProgram(ctx)
	case "NEW":
		return b.reportIf(b.cmdNew())
	}
	return b.executeDirect(ctx, input)
}

// editLine stores, replaces or deletes a program line. Assumes lock is held.
func (b *TinyBASIC) editLine(number int, code string) error {
	if code != "" {
		code = upperOutsideQuotes(code)
	}
	if err := b.program.SetLine(number, code); err != nil {
		logger.Error(logger.AreaProgram, "[%s] storing line %d failed: %v", b.sessionID, number, err)
		return b.report(NewBASICError(ErrCategoryRuntime, "STORE_FAILURE", true, DirectModeLine).Wrap(err))
	}
	logger.Debug(logger.AreaProgram, "[%s] line %d set (%d chars)", b.sessionID, number, len(code))
	return nil
}

// executeDirect runs an immediate line once, outside of any run.
func (b *TinyBASIC) executeDirect(ctx context.Context, input string) error {
	b.currentLine = DirectModeLine
	b.skipLine = false
	for i, stmt := range splitStatementsByColon(input) {
		b.stmtIndex = i
		if err := b.executeStatement(ctx, stmt); err != nil {
			var rf runFinished
			if errors.As(err, &rf) {
				return rf.err
			}
			return b.report(b.locate(err))
		}
		if b.skipLine {
			break
		}
	}
	return nil
}

// runProgram is the core execution loop for RUN. It walks the sorted
// snapshot statement by statement until END, the end of the program, an
// error or cancellation. Assumes lock is held.
func (b *TinyBASIC) runProgram(ctx context.Context) error {
	lines, err := b.program.Snapshot()
	if err != nil {
		return b.report(NewBASICError(ErrCategoryRuntime, "STORE_FAILURE", true, DirectModeLine).Wrap(err))
	}

	b.resetRunState()
	if len(lines) == 0 {
		b.writeLine(MsgNoProgram)
		return nil
	}

	b.lines = lines
	b.statements = make(map[int][]string, len(lines))
	b.data = collectData(lines)
	b.pc = position{}
	b.running = true
	logger.InterpreterDebug("[%s] RUN: %d lines, %d data items", b.sessionID, len(lines), len(b.data))

	defer func() {
		b.running = false
		b.currentLine = DirectModeLine
		b.lines = nil
		b.statements = nil
	}()

	for b.running && b.pc.line < len(b.lines) {
		index := b.pc.line
		line := b.lines[index]
		stmts := b.statementsAt(index)
		b.currentLine = line.Number
		b.jumped = false
		b.skipLine = false

		for i := b.pc.stmt; i < len(stmts); i++ {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return b.abortRun(NewBASICError(ErrCategoryBreak, "BREAK", false, line.Number).Wrap(ctxErr))
			}
			b.stmtIndex = i
			if err := b.executeStatement(ctx, stmts[i]); err != nil {
				return b.abortRun(b.locate(err))
			}
			if b.jumped || b.skipLine || !b.running {
				break
			}
		}

		if b.running && !b.jumped {
			b.pc = position{line: index + 1}
		}
	}
	logger.InterpreterDebug("[%s] RUN finished", b.sessionID)
	return nil
}

// statementsAt splits a snapshot line once per run.
func (b *TinyBASIC) statementsAt(index int) []string {
	if stmts, ok := b.statements[index]; ok {
		return stmts
	}
	stmts := splitStatementsByColon(b.lines[index].Text)
	b.statements[index] = stmts
	return stmts
}

// abortRun reports err, clears the control stacks and returns to Idle.
func (b *TinyBASIC) abortRun(err *BASICError) error {
	b.running = false
	b.forLoops = nil
	b.gosubStack = nil
	return b.report(err)
}

// resetRunState clears everything RUN starts from scratch.
func (b *TinyBASIC) resetRunState() {
	b.variables = make(map[string]BASICValue)
	b.forLoops = nil
	b.gosubStack = nil
	b.data = nil
	b.dataPointer = 0
	b.pc = position{}
}

// jumpTo moves the program counter to the first statement of a line.
// Assumes lock is held.
func (b *TinyBASIC) jumpTo(number int, cmd string) error {
	if !b.running {
		return b.newError(ErrCategoryRuntime, "DIRECT_MODE").WithCommand(cmd).Wrap(ErrNotInDirectMode)
	}
	index, ok := findLineIndex(b.lines, number)
	if !ok {
		return b.newError(ErrCategoryRuntime, "LINE_NOT_FOUND").WithCommand(cmd).WithText(fmt.Sprint(number)).Wrap(ErrLineNotFound)
	}
	b.pc = position{line: index}
	b.jumped = true
	return nil
}

// nextPosition is where execution continues after the current statement.
func (b *TinyBASIC) nextPosition() position {
	if b.stmtIndex+1 < len(b.statementsAt(b.pc.line)) {
		return position{line: b.pc.line, stmt: b.stmtIndex + 1}
	}
	return position{line: b.pc.line + 1}
}

// newError builds an error located at the current line.
func (b *TinyBASIC) newError(category, code string) *BASICError {
	return NewBASICError(category, code, !b.running, b.currentLine)
}

// locate converts err to a BASICError and fills in the current line when
// the producer (compiler, evaluator) did not know it.
func (b *TinyBASIC) locate(err error) *BASICError {
	be := WrapError(err, "", !b.running, b.currentLine)
	if be.LineNumber == 0 && b.running {
		be.LineNumber = b.currentLine
		be.DirectMode = false
	} else if !b.running {
		be.DirectMode = true
	}
	return be
}

// reportIf reports err when it is not nil.
func (b *TinyBASIC) reportIf(err error) error {
	if err == nil {
		return nil
	}
	return b.report(b.locate(err))
}

// report writes an error to the sink and returns it.
func (b *TinyBASIC) report(err *BASICError) error {
	logger.InterpreterDebug("[%s] %s (%s)", b.sessionID, err.Error(), err.Kind)
	for _, line := range strings.Split(err.Error(), "\n") {
		b.writeLine(line)
	}
	return err
}

// conversionFallback records a silent coercion. Never shown to the user.
func (b *TinyBASIC) conversionFallback(code, text string) {
	logger.InterpreterDebug("[%s] line %d: %s: %s", b.sessionID, b.currentLine, GetFriendlyErrorText(ErrCategoryConversion, code), text)
}

// write sends text to the sink and tracks the output column for POS.
func (b *TinyBASIC) write(text string, noNewline bool) {
	b.out.Write(text, noNewline)
	if !noNewline {
		b.column = 0
		return
	}
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		b.column = utf8.RuneCountInString(text[i+1:])
		return
	}
	b.column += utf8.RuneCountInString(text)
}

func (b *TinyBASIC) writeLine(text string) {
	b.write(text, false)
}

// Lookup implements Environment.
func (b *TinyBASIC) Lookup(name string) BASICValue {
	if v, ok := b.variables[name]; ok {
		return v
	}
	return defaultValueFor(name)
}

// CallFunction implements Environment.
func (b *TinyBASIC) CallFunction(name string, args []BASICValue) BASICValue {
	return b.functions.Call(name, args)
}

// Fault implements Environment. Evaluation faults are reported and
// execution continues with the fallback value.
func (b *TinyBASIC) Fault(err *BASICError) {
	b.report(b.locate(err))
}

// evalTokens compiles and evaluates an expression.
func (b *TinyBASIC) evalTokens(toks []Token) (BASICValue, error) {
	if len(toks) == 0 {
		return BASICValue{}, b.newError(ErrCategorySyntax, "EXPECTED_EXPRESSION")
	}
	postfix, err := Compile(toks)
	if err != nil {
		return BASICValue{}, err
	}
	return Evaluate(postfix, b)
}

// evalNumber evaluates an expression that must yield a number. Strings are
// coerced with the usual fallback to 0.
func (b *TinyBASIC) evalNumber(toks []Token) (float64, error) {
	v, err := b.evalTokens(toks)
	if err != nil {
		return 0, err
	}
	if v.IsNumeric {
		return v.NumValue, nil
	}
	f, ok := parseBasicVal(v.StrValue)
	if !ok {
		b.conversionFallback("INVALID_NUMBER", v.StrValue)
	}
	return f, nil
}

// setVariable assigns with the coercion rules of the variable's name.
func (b *TinyBASIC) setVariable(name string, v BASICValue) {
	coerced, ok := coerceForName(name, v)
	if !ok {
		b.conversionFallback("INVALID_NUMBER", v.StrValue)
	}
	b.variables[name] = coerced
}

// executeStatement dispatches one colon-separated statement by its leading
// keyword. Assumes lock is held.
func (b *TinyBASIC) executeStatement(ctx context.Context, stmt string) error {
	toks := Tokenize(stmt)
	if len(toks) == 0 {
		return nil
	}
	first, args := toks[0], toks[1:]

	switch first.Kind {
	case TokenKeyword:
		switch first.Value {
		case "REM", "DATA":
			return nil
		case "PRINT":
			return b.cmdPrint(args)
		case "LET":
			return b.cmdLet(args)
		case "INPUT":
			return b.cmdInput(args)
		case "GOTO":
			return b.cmdGoto(args)
		case "GOSUB":
			return b.cmdGosub(args)
		case "RETURN":
			return b.cmdReturn(args)
		case "IF":
			return b.cmdIf(ctx, stmt, toks)
		case "FOR":
			return b.cmdFor(args)
		case "NEXT":
			return b.cmdNext(args)
		case "READ":
			return b.cmdRead(args)
		case "RESTORE":
			return b.cmdRestore(args)
		case "END", "STOP":
			return b.cmdEnd(args)
		case "LIST", "RUN", "NEW":
			return b.programCommand(ctx, first.Value)
		}

	case TokenIdentifier:
		if len(args) > 0 && args[0].IsOperator("=") {
			return b.cmdLet(toks)
		}
		return b.printExpression(toks)

	case TokenNumber, TokenFunction, TokenLParen:
		return b.printExpression(toks)
	}

	return b.newError(ErrCategorySyntax, "UNKNOWN_STATEMENT").WithText(stmt)
}

// printExpression evaluates a bare expression and shows its value.
func (b *TinyBASIC) printExpression(toks []Token) error {
	v, err := b.evalTokens(toks)
	if err != nil {
		return err
	}
	b.writeLine(v.String())
	return nil
}

// State is a point-in-time copy of the interpreter state.
type State struct {
	Running     bool
	CurrentLine int
	Variables   map[string]BASICValue
	ForLoops    []ForLoopInfo
	GosubDepth  int
	DataPointer int
	DataItems   int
	ProgramSize int
}

// State returns a snapshot of the interpreter state.
func (b *TinyBASIC) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	vars := make(map[string]BASICValue, len(b.variables))
	for k, v := range b.variables {
		vars[k] = v
	}
	return State{
		Running:     b.running,
		CurrentLine: b.currentLine,
		Variables:   vars,
		ForLoops:    append([]ForLoopInfo(nil), b.forLoops...),
		GosubDepth:  len(b.gosubStack),
		DataPointer: b.dataPointer,
		DataItems:   len(b.data),
		ProgramSize: b.program.Len(),
	}
}

// Variable returns the current value of a variable.
func (b *TinyBASIC) Variable(name string) BASICValue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Lookup(strings.ToUpper(name))
}
