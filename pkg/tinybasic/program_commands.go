package tinybasic

import (
	"context"
	"fmt"

	"github.com/antibyte/retrobasic/pkg/logger"
)

// cmdNew clears the current program and state. Assumes lock is held.
func (b *TinyBASIC) cmdNew() error {
	if err := b.program.Clear(); err != nil {
		return NewBASICError(ErrCategoryRuntime, "STORE_FAILURE", true, DirectModeLine).WithCommand("NEW").Wrap(err)
	}
	b.resetRunState()
	b.currentLine = DirectModeLine
	logger.Info(logger.AreaProgram, "[%s] program cleared", b.sessionID)
	b.writeLine(MsgProgramCleared)
	return nil
}

// cmdList writes the program in ascending order as "<number> <text>".
func (b *TinyBASIC) cmdList() error {
	lines, err := b.program.Snapshot()
	if err != nil {
		return NewBASICError(ErrCategoryRuntime, "STORE_FAILURE", true, DirectModeLine).WithCommand("LIST").Wrap(err)
	}
	for _, line := range lines {
		b.writeLine(fmt.Sprintf("%d %s", line.Number, line.Text))
	}
	return nil
}

// cmdEnd stops the running program. In direct mode it does nothing.
func (b *TinyBASIC) cmdEnd(args []Token) error {
	if len(args) != 0 {
		return b.newError(ErrCategorySyntax, "UNEXPECTED_TOKEN").WithCommand("END").WithText(args[0].Value)
	}
	if b.running {
		logger.InterpreterDebug("[%s] END in line %d", b.sessionID, b.currentLine)
	}
	b.running = false
	return nil
}

// programCommand handles LIST, RUN and NEW appearing as a statement. They
// only make sense typed directly.
func (b *TinyBASIC) programCommand(ctx context.Context, cmd string) error {
	if b.running {
		return b.newError(ErrCategoryRuntime, "PROGRAM_MODE").WithCommand(cmd).Wrap(ErrNotInProgram)
	}
	switch cmd {
	case "LIST":
		return b.cmdList()
	case "NEW":
		return b.cmdNew()
	}
	return runFinished{err: b.runProgram(ctx)}
}

// runFinished ends a direct line after an embedded RUN; the rest of the
// line is ignored.
type runFinished struct {
	err error
}

func (r runFinished) Error() string {
	return "run finished"
}
