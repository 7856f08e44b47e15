package tinybasic

import (
	"context"
	"fmt"
	"math"
)

// ForLoopInfo stores the state of an active FOR loop.
type ForLoopInfo struct {
	Variable   string   // Loop control variable name (uppercase).
	EndValue   float64  // Target value for the loop variable.
	Step       float64  // Increment/decrement value per iteration.
	Resume     position // First statement of the loop body.
	ForLineNum int      // The line number of the FOR statement itself.
	GosubDepth int      // GOSUB stack depth at the time of FOR loop creation.
}

// lineTarget evaluates the operand of GOTO/GOSUB/THEN to a line number.
func (b *TinyBASIC) lineTarget(toks []Token, cmd string) (int, error) {
	if len(toks) == 0 {
		return 0, b.newError(ErrCategorySyntax, "INVALID_LINE_NUMBER").WithCommand(cmd)
	}
	f, err := b.evalNumber(toks)
	if err != nil {
		return 0, err
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, b.newError(ErrCategorySyntax, "INVALID_LINE_NUMBER").WithCommand(cmd).WithText(formatBasicFloat(f))
	}
	return int(f), nil
}

// requireProgram rejects control flow outside of a run.
func (b *TinyBASIC) requireProgram(cmd string) error {
	if b.running {
		return nil
	}
	return b.newError(ErrCategoryRuntime, "DIRECT_MODE").WithCommand(cmd).Wrap(ErrNotInDirectMode)
}

// cmdGoto performs an unconditional jump. Assumes lock is held.
func (b *TinyBASIC) cmdGoto(args []Token) error {
	if err := b.requireProgram("GOTO"); err != nil {
		return err
	}
	target, err := b.lineTarget(args, "GOTO")
	if err != nil {
		return err
	}
	return b.jumpTo(target, "GOTO")
}

// cmdGosub calls a subroutine. Assumes lock is held.
func (b *TinyBASIC) cmdGosub(args []Token) error {
	if err := b.requireProgram("GOSUB"); err != nil {
		return err
	}
	target, err := b.lineTarget(args, "GOSUB")
	if err != nil {
		return err
	}
	if len(b.gosubStack) >= b.maxGosubDepth {
		return b.newError(ErrCategoryRuntime, "GOSUB_DEPTH_EXCEEDED").WithCommand("GOSUB").Wrap(ErrGosubDepthExceeded)
	}
	// Rücksprungadresse vor dem Sprung merken
	ret := b.nextPosition()
	if err := b.jumpTo(target, "GOSUB"); err != nil {
		return err
	}
	b.gosubStack = append(b.gosubStack, ret)
	return nil
}

// cmdReturn returns from a subroutine. Assumes lock is held.
func (b *TinyBASIC) cmdReturn(args []Token) error {
	if err := b.requireProgram("RETURN"); err != nil {
		return err
	}
	if len(args) != 0 {
		return b.newError(ErrCategorySyntax, "UNEXPECTED_TOKEN").WithCommand("RETURN").WithText(args[0].Value)
	}
	if len(b.gosubStack) == 0 {
		return b.newError(ErrCategoryRuntime, "RETURN_WITHOUT_GOSUB").WithCommand("RETURN").Wrap(ErrReturnWithoutGosub)
	}
	last := len(b.gosubStack) - 1
	b.pc = b.gosubStack[last]
	b.gosubStack = b.gosubStack[:last]
	b.jumped = true

	// Bereinige FOR-Schleifen, die im Unterprogramm geöffnet wurden
	b.cleanupForLoopsOnReturn(len(b.gosubStack))
	return nil
}

// cleanupForLoopsOnReturn drops loops opened deeper than depth.
func (b *TinyBASIC) cleanupForLoopsOnReturn(depth int) {
	keep := len(b.forLoops)
	for keep > 0 && b.forLoops[keep-1].GosubDepth > depth {
		keep--
	}
	if keep < len(b.forLoops) {
		b.forLoops = b.forLoops[:keep]
	}
}

// cmdIf handles IF cond THEN line, IF cond THEN GOTO line and
// IF cond THEN statement. A false condition skips the rest of the line.
func (b *TinyBASIC) cmdIf(ctx context.Context, stmt string, toks []Token) error {
	thenIdx := -1
	for i, tok := range toks {
		if tok.IsKeyword("THEN") {
			thenIdx = i
			break
		}
	}
	if thenIdx < 0 {
		return b.newError(ErrCategorySyntax, "EXPECTED_THEN").WithCommand("IF")
	}
	if thenIdx == 1 {
		return b.newError(ErrCategorySyntax, "EXPECTED_EXPRESSION").WithCommand("IF")
	}
	rest := toks[thenIdx+1:]
	if len(rest) == 0 {
		return b.newError(ErrCategorySyntax, "INVALID_LINE_NUMBER").WithCommand("IF")
	}

	cond, err := b.evalTokens(toks[1:thenIdx])
	if err != nil {
		return err
	}
	if !isTruthy(cond) {
		b.skipLine = true
		return nil
	}

	if rest[0].Kind == TokenNumber {
		if err := b.requireProgram("IF"); err != nil {
			return err
		}
		target, err := b.lineTarget(rest, "IF")
		if err != nil {
			return err
		}
		return b.jumpTo(target, "IF")
	}
	// THEN GOTO n und THEN <Anweisung>
	return b.executeStatement(ctx, stmt[rest[0].Pos:])
}

// cmdFor starts a loop: FOR v = start TO end [STEP s]. The body always runs
// at least once; NEXT decides about further passes.
func (b *TinyBASIC) cmdFor(args []Token) error {
	if err := b.requireProgram("FOR"); err != nil {
		return err
	}
	if len(args) == 0 || args[0].Kind != TokenIdentifier {
		return b.newError(ErrCategorySyntax, "EXPECTED_VARIABLE").WithCommand("FOR")
	}
	name := args[0].Value
	if isStringName(name) {
		return b.newError(ErrCategorySyntax, "INVALID_VARIABLE_NAME").WithCommand("FOR").WithText(name)
	}
	if len(args) < 2 || !args[1].IsOperator("=") {
		return b.newError(ErrCategorySyntax, "EXPECTED_EQUALS").WithCommand("FOR")
	}

	toIdx, stepIdx := -1, -1
	for i := 2; i < len(args); i++ {
		switch {
		case args[i].IsKeyword("TO") && toIdx < 0:
			toIdx = i
		case args[i].IsKeyword("STEP") && toIdx >= 0 && stepIdx < 0:
			stepIdx = i
		}
	}
	if toIdx < 0 {
		return b.newError(ErrCategorySyntax, "EXPECTED_TO").WithCommand("FOR")
	}
	endToks := args[toIdx+1:]
	if stepIdx >= 0 {
		endToks = args[toIdx+1 : stepIdx]
	}

	start, err := b.evalNumber(args[2:toIdx])
	if err != nil {
		return err
	}
	end, err := b.evalNumber(endToks)
	if err != nil {
		return err
	}
	step := 1.0
	if stepIdx >= 0 {
		if step, err = b.evalNumber(args[stepIdx+1:]); err != nil {
			return err
		}
	}
	if step == 0 {
		return b.newError(ErrCategoryRuntime, "FOR_STEP_ZERO").WithCommand("FOR").Wrap(ErrForStepZero)
	}

	// Eine laufende Schleife mit derselben Variable wird samt inneren Schleifen ersetzt
	for i := len(b.forLoops) - 1; i >= 0; i-- {
		if b.forLoops[i].Variable == name {
			b.forLoops = b.forLoops[:i]
			break
		}
	}
	if len(b.forLoops) >= b.maxForLoopDepth {
		return b.newError(ErrCategoryRuntime, "FOR_LOOP_DEPTH_EXCEEDED").WithCommand("FOR").Wrap(ErrForLoopDepthExceeded)
	}

	b.variables[name] = NumberValue(start)
	b.forLoops = append(b.forLoops, ForLoopInfo{
		Variable:   name,
		EndValue:   end,
		Step:       step,
		Resume:     b.nextPosition(),
		ForLineNum: b.currentLine,
		GosubDepth: len(b.gosubStack),
	})
	return nil
}

// cmdNext advances the innermost loop. Assumes lock is held.
func (b *TinyBASIC) cmdNext(args []Token) error {
	if err := b.requireProgram("NEXT"); err != nil {
		return err
	}
	if len(b.forLoops) == 0 {
		return b.newError(ErrCategoryRuntime, "NEXT_WITHOUT_FOR").WithCommand("NEXT").Wrap(ErrNextWithoutFor)
	}
	top := len(b.forLoops) - 1
	loop := b.forLoops[top]

	if len(args) > 0 {
		if args[0].Kind != TokenIdentifier || len(args) > 1 {
			return b.newError(ErrCategorySyntax, "EXPECTED_VARIABLE").WithCommand("NEXT")
		}
		if args[0].Value != loop.Variable {
			return b.newError(ErrCategoryRuntime, "NEXT_VARIABLE_MISMATCH").
				WithCommand("NEXT").
				WithText(fmt.Sprintf("%s <> %s", args[0].Value, loop.Variable)).
				Wrap(ErrNextVariableMismatch)
		}
	}

	value := b.Lookup(loop.Variable).NumValue + loop.Step
	b.variables[loop.Variable] = NumberValue(value)

	var again bool
	if loop.Step > 0 {
		again = value <= loop.EndValue
	} else {
		again = value >= loop.EndValue
	}
	if !again {
		b.forLoops = b.forLoops[:top]
		return nil
	}
	b.pc = loop.Resume
	b.jumped = true
	return nil
}
