package tinybasic

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkWrite struct {
	text      string
	noNewline bool
}

// recordSink captures every write in order.
type recordSink struct {
	writes []sinkWrite
}

func (s *recordSink) Write(text string, noNewline bool) {
	s.writes = append(s.writes, sinkWrite{text, noNewline})
}

func (s *recordSink) lines() []string {
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = w.text
	}
	return out
}

func (s *recordSink) reset() {
	s.writes = nil
}

// NewTestBasic creates a TinyBASIC instance for testing without external dependencies
func NewTestBasic(opts ...Option) (*TinyBASIC, *recordSink) {
	sink := &recordSink{}
	b := NewTinyBASIC(append([]Option{WithOutput(sink), WithSessionID("test-session")}, opts...)...)
	return b, sink
}

// loadProgram enters program lines and clears the output.
func loadProgram(t *testing.T, b *TinyBASIC, sink *recordSink, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, b.SubmitLine(line), line)
	}
	sink.reset()
}

func asBASICError(t *testing.T, err error) *BASICError {
	t.Helper()
	var be *BASICError
	require.True(t, errors.As(err, &be), "expected *BASICError, got %v", err)
	return be
}

func TestRunForLoop(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink,
		"10 FOR I=1 TO 3",
		"20 PRINT I",
		"30 NEXT I",
		"40 END",
	)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []sinkWrite{{"1", false}, {"2", false}, {"3", false}}, sink.writes)
	assert.False(t, b.State().Running)
}

func TestForLoopIterationCount(t *testing.T) {
	tests := []struct {
		start, end, step float64
	}{
		{1, 10, 1},
		{1, 10, 3},
		{0, 0, 1},
		{-5, 5, 2},
		{2, 2.5, 0.5},
	}
	for _, tt := range tests {
		b, sink := NewTestBasic()
		loadProgram(t, b, sink,
			"10 C=0",
			"20 FOR V=S TO E STEP P",
			"30 C=C+1",
			"40 NEXT V",
		)
		require.NoError(t, b.SubmitLine("1 S="+formatBasicFloat(tt.start)))
		require.NoError(t, b.SubmitLine("2 E="+formatBasicFloat(tt.end)))
		require.NoError(t, b.SubmitLine("3 P="+formatBasicFloat(tt.step)))
		require.NoError(t, b.SubmitLine("RUN"))

		want := math.Floor((tt.end-tt.start)/tt.step) + 1
		assert.Equal(t, want, b.Variable("C").NumValue, "%v", tt)
		assert.Equal(t, tt.start+want*tt.step, b.Variable("V").NumValue, "%v", tt)
		assert.Greater(t, b.Variable("V").NumValue, tt.end)
	}
}

func TestForLoopEndJustBelowStep(t *testing.T) {
	tests := []struct {
		name  string
		loop  string
		count string
	}{
		{"up", "20 FOR I=0 TO 1-0.0000000001", "1"},
		{"down", "20 FOR I=0 TO -1+0.0000000001 STEP -1", "1"},
		{"exact", "20 FOR I=0 TO 1", "2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, sink := NewTestBasic()
			loadProgram(t, b, sink,
				"10 C=0",
				tt.loop,
				"30 C=C+1",
				"40 NEXT I",
				"50 PRINT C",
			)
			require.NoError(t, b.SubmitLine("RUN"))
			assert.Equal(t, []string{tt.count}, sink.lines())
		})
	}
}

func TestForLoopBodyRunsOnce(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 FOR I=5 TO 1", "20 PRINT I", "30 NEXT")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"5"}, sink.lines())
}

func TestForLoopNegativeStep(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 FOR I=3 TO 1 STEP -1: PRINT I;: NEXT I", "20 PRINT")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []sinkWrite{{"3", true}, {"2", true}, {"1", true}, {"", false}}, sink.writes)
}

func TestNestedForLoops(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink,
		"10 FOR I=1 TO 2",
		"20 FOR J=1 TO 2",
		"30 PRINT I*10+J",
		"40 NEXT J",
		"50 NEXT I",
	)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"11", "12", "21", "22"}, sink.lines())
}

func TestForStepZeroIsRejected(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 FOR I=1 TO 5 STEP 0", "20 NEXT I")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrForStepZero)
	assert.Equal(t, RuntimeError, asBASICError(t, err).Kind)
	assert.Equal(t, []string{"RUNTIME ERROR IN LINE 10: FOR LOOP STEP MUST NOT BE ZERO"}, sink.lines())
}

func TestNextErrors(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 NEXT")
	require.ErrorIs(t, b.SubmitLine("RUN"), ErrNextWithoutFor)

	loadProgram(t, b, sink, "10 FOR I=1 TO 2", "20 NEXT J")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrNextVariableMismatch)
	assert.Equal(t, 20, asBASICError(t, err).LineNumber)
	assert.Empty(t, b.State().ForLoops)
}

func TestDataRead(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 DATA 5,7", "20 READ A,B", "30 PRINT A+B")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"12"}, sink.lines())
}

func TestReadStringsAndRestore(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink,
		`10 DATA "ADA", 36`,
		"20 READ N$, A",
		"30 RESTORE",
		"40 READ M$",
		`50 PRINT N$;A;M$`,
	)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"ADA36ADA"}, sink.lines())
}

func TestReadOutOfDataContinues(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 READ A,B$", "20 DATA 1", `30 PRINT A;"/";B$;"/"`)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"DATA ERROR IN LINE 10: OUT OF DATA", "1//"}, sink.lines())
}

func TestStringAssignment(t *testing.T) {
	b, _ := NewTestBasic()
	require.NoError(t, b.SubmitLine(`A$ = "X"`))
	assert.Equal(t, StringValue("X"), b.Variable("A$"))

	require.NoError(t, b.SubmitLine(`LET A$ = 5*2`))
	assert.Equal(t, StringValue("10"), b.Variable("A$"))

	require.NoError(t, b.SubmitLine(`N = "12"`))
	assert.Equal(t, NumberValue(12), b.Variable("N"))

	require.NoError(t, b.SubmitLine(`N = "TWELVE"`))
	assert.Equal(t, NumberValue(0), b.Variable("N"))
}

func TestGotoUnknownLine(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT 1", "20 GOTO 99", "30 PRINT 3")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrLineNotFound)
	assert.Equal(t, RuntimeError, asBASICError(t, err).Kind)
	assert.Equal(t, []string{"1", "RUNTIME ERROR IN LINE 20: PROGRAM LINE NOT FOUND: 99"}, sink.lines())
	assert.False(t, b.State().Running)

	// the engine is still usable
	sink.reset()
	require.NoError(t, b.SubmitLine("20 GOTO 30"))
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"1", "3"}, sink.lines())
}

func TestGosubReturn(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink,
		"10 GOSUB 100: PRINT \"BACK\"",
		"20 GOSUB 100",
		"30 END",
		"100 PRINT \"SUB\"",
		"110 RETURN",
	)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"SUB", "BACK", "SUB"}, sink.lines())
	assert.Equal(t, 0, b.State().GosubDepth)
}

func TestReturnWithoutGosub(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 RETURN")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrReturnWithoutGosub)
	assert.Equal(t, RuntimeError, asBASICError(t, err).Kind)
	assert.Contains(t, err.Error(), "NO MATCHING GOSUB")
	assert.Equal(t, []string{"RUNTIME ERROR IN LINE 10: RETURN WITHOUT GOSUB (NO MATCHING GOSUB)"}, sink.lines())
}

func TestGosubDepthLimit(t *testing.T) {
	b, sink := NewTestBasic(WithLimits(3, 0))
	loadProgram(t, b, sink, "10 GOSUB 10")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrGosubDepthExceeded)
	assert.Equal(t, 0, b.State().GosubDepth)
}

func TestReturnDropsInnerLoops(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink,
		"10 FOR I=1 TO 2",
		"20 GOSUB 100",
		"30 NEXT I",
		"40 END",
		"100 FOR J=1 TO 5",
		"110 RETURN",
	)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, NumberValue(3), b.Variable("I"))
	assert.Empty(t, sink.lines())
}

func TestIfThen(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "jump to line",
			lines: []string{"10 A=5", "20 IF A>3 THEN 50", `30 PRINT "NO"`, "40 END", `50 PRINT "YES"`},
			want:  []string{"YES"},
		},
		{
			name:  "then goto",
			lines: []string{"10 IF 1 THEN GOTO 30", `20 PRINT "NO"`, `30 PRINT "YES"`},
			want:  []string{"YES"},
		},
		{
			name:  "false condition skips rest of line",
			lines: []string{`10 IF 0 THEN PRINT "A": PRINT "B"`, `20 PRINT "C"`},
			want:  []string{"C"},
		},
		{
			name:  "true condition runs statement and rest of line",
			lines: []string{`10 IF 1 THEN PRINT "A": PRINT "B"`},
			want:  []string{"A", "B"},
		},
		{
			name:  "string truthiness",
			lines: []string{`10 IF "X" THEN PRINT "S"`, `20 IF "" THEN PRINT "E"`},
			want:  []string{"S"},
		},
		{
			name:  "nested if",
			lines: []string{`10 A=1: B=2`, `20 IF A=1 THEN IF B=2 THEN PRINT "BOTH"`},
			want:  []string{"BOTH"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, sink := NewTestBasic()
			loadProgram(t, b, sink, tt.lines...)
			require.NoError(t, b.SubmitLine("RUN"))
			assert.Equal(t, tt.want, sink.lines())
		})
	}
}

func TestIfWithoutThen(t *testing.T) {
	b, sink := NewTestBasic()
	err := b.SubmitLine(`IF 1 PRINT "X"`)
	be := asBASICError(t, err)
	assert.Equal(t, SyntaxError, be.Kind)
	assert.Equal(t, "EXPECTED_THEN", be.Code)
	assert.Equal(t, []string{
		"SYNTAX ERROR: THEN KEYWORD EXPECTED AFTER IF CONDITION",
		"USAGE: IF condition THEN line",
	}, sink.lines())
}

func TestGotoSelfLoopStopsOnCancel(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 GOTO 10")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := b.SubmitLineContext(ctx, "RUN")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"BREAK IN LINE 10: PROGRAM INTERRUPTED"}, sink.lines())
	assert.False(t, b.State().Running)
}

func TestDirectModeControlFlowRejected(t *testing.T) {
	for _, stmt := range []string{"GOTO 10", "GOSUB 10", "RETURN", "FOR I=1 TO 3", "NEXT I", "IF 1 THEN 10"} {
		t.Run(stmt, func(t *testing.T) {
			b, sink := NewTestBasic()
			loadProgram(t, b, sink, "10 PRINT 1")
			err := b.SubmitLine(stmt)
			require.ErrorIs(t, err, ErrNotInDirectMode)
			assert.Equal(t, RuntimeError, asBASICError(t, err).Kind)
			assert.Len(t, sink.lines(), 1)
			assert.Contains(t, sink.lines()[0], "NOT ALLOWED IN DIRECT MODE")
		})
	}
}

func TestPrintSeparators(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine(`PRINT "A";"B","C"`))
	require.NoError(t, b.SubmitLine(`PRINT 1;`))
	require.NoError(t, b.SubmitLine(`PRINT`))
	require.NoError(t, b.SubmitLine(`PRINT LEFT$("HELLO",2);MID$("HELLO",3,2)`))
	require.NoError(t, b.SubmitLine(`PRINT "X",`))
	assert.Equal(t, []sinkWrite{
		{"AB C", false},
		{"1", true},
		{"", false},
		{"HELL", false},
		{"X", false},
	}, sink.writes)
}

func TestPosTracksColumn(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine(`PRINT "ABC";: PRINT POS`))
	require.NoError(t, b.SubmitLine(`PRINT POS()`))
	assert.Equal(t, []string{"ABC", "3", "0"}, sink.lines())
}

func TestInput(t *testing.T) {
	replies := []string{"BOB", "21"}
	in := FuncSource(func() (string, error) {
		if len(replies) == 0 {
			return "", io.EOF
		}
		r := replies[0]
		replies = replies[1:]
		return r, nil
	})
	b, sink := NewTestBasic(WithInput(in))
	loadProgram(t, b, sink, `10 INPUT "NAME";N$`, "20 INPUT X", "30 PRINT N$;X*2")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []sinkWrite{
		{"NAME? ", true},
		{"? ", true},
		{"BOB42", false},
	}, sink.writes)

	// source exhausted
	sink.reset()
	err := b.SubmitLine("INPUT Y")
	require.ErrorIs(t, err, ErrInputUnavailable)
}

func TestInputNonNumericFallsBackToZero(t *testing.T) {
	b, _ := NewTestBasic(WithInput(NewReaderSource(strings.NewReader("abc\n"))))
	require.NoError(t, b.SubmitLine("INPUT X"))
	assert.Equal(t, NumberValue(0), b.Variable("X"))
}

func TestInputInterrupted(t *testing.T) {
	q := NewLineQueue(1)
	q.Interrupt()
	b, sink := NewTestBasic(WithInput(q))
	loadProgram(t, b, sink, "10 INPUT A", "20 PRINT A")
	err := b.SubmitLine("RUN")
	require.ErrorIs(t, err, ErrBreak)
	assert.Equal(t, []string{"? ", "BREAK IN LINE 10: PROGRAM INTERRUPTED"}, sink.lines())
}

func TestProgramEditingAndList(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "20 print \"Hi\"", "10 PRINT 1", "30 END")
	require.NoError(t, b.SubmitLine("LIST"))
	assert.Equal(t, []string{"10 PRINT 1", `20 PRINT "Hi"`, "30 END"}, sink.lines())

	sink.reset()
	require.NoError(t, b.SubmitLine("10 "))
	require.NoError(t, b.SubmitLine("list"))
	assert.Equal(t, []string{`20 PRINT "Hi"`, "30 END"}, sink.lines())
}

func TestInvalidLineNumber(t *testing.T) {
	b, sink := NewTestBasic()
	err := b.SubmitLine("0 PRINT 1")
	require.ErrorIs(t, err, ErrInvalidLineNumber)
	assert.Equal(t, SyntaxError, asBASICError(t, err).Kind)
	assert.Equal(t, 0, b.Program().Len())
	assert.Len(t, sink.lines(), 1)
}

func TestRunEmptyProgram(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{MsgNoProgram}, sink.lines())
}

func TestRunResetsState(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine("X=42"))
	loadProgram(t, b, sink, "10 PRINT X")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"0"}, sink.lines())
}

func TestNew(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT 1", "X=5")
	require.NoError(t, b.SubmitLine("NEW"))
	assert.Equal(t, []string{MsgProgramCleared}, sink.lines())
	assert.Equal(t, 0, b.Program().Len())
	assert.Equal(t, NumberValue(0), b.Variable("X"))
}

func TestProgramCommandsInsideProgram(t *testing.T) {
	for _, cmd := range []string{"LIST", "RUN", "NEW"} {
		b, sink := NewTestBasic()
		loadProgram(t, b, sink, "10 "+cmd)
		err := b.SubmitLine("RUN")
		require.ErrorIs(t, err, ErrNotInProgram, cmd)
		assert.Equal(t, 1, b.Program().Len())
	}
}

func TestRunInsideDirectLine(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT X")
	require.NoError(t, b.SubmitLine(`PRINT "GO": RUN: PRINT "IGNORED"`))
	assert.Equal(t, []string{"GO", "0"}, sink.lines())
}

func TestEndStopsRun(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT 1: STOP: PRINT 2", "20 PRINT 3")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"1"}, sink.lines())
}

func TestBareExpression(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine("2+3"))
	require.NoError(t, b.SubmitLine("A$=\"HI\""))
	require.NoError(t, b.SubmitLine("A$"))
	require.NoError(t, b.SubmitLine("LEN(A$)"))
	assert.Equal(t, []string{"5", "HI", "2"}, sink.lines())
}

func TestUnknownStatement(t *testing.T) {
	b, sink := NewTestBasic()
	for _, stmt := range []string{"THEN", `"HELLO"`, "TO 5"} {
		err := b.SubmitLine(stmt)
		be := asBASICError(t, err)
		assert.Equal(t, SyntaxError, be.Kind, stmt)
		assert.Equal(t, "UNKNOWN_STATEMENT", be.Code, stmt)
	}
	assert.Equal(t, "SYNTAX ERROR: UNKNOWN STATEMENT: THEN", sink.lines()[0])
}

func TestSyntaxErrorStopsRun(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT 1", "20 PRINT (2", "30 PRINT 3")
	err := b.SubmitLine("RUN")
	be := asBASICError(t, err)
	assert.Equal(t, SyntaxError, be.Kind)
	assert.Equal(t, 20, be.LineNumber)
	assert.Equal(t, []string{"1", "SYNTAX ERROR IN LINE 20: MISMATCHED PARENTHESES: ("}, sink.lines())
}

func TestEvaluationFaultContinues(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 PRINT 1/0", "20 PRINT 2")
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"EVALUATION ERROR IN LINE 10: DIVISION BY ZERO", "0", "2"}, sink.lines())

	sink.reset()
	require.NoError(t, b.SubmitLine(`PRINT "A"*2`))
	assert.Equal(t, []string{"EVALUATION ERROR: TYPE MISMATCH IN EXPRESSION OR ASSIGNMENT", "0"}, sink.lines())
}

func TestSQRModes(t *testing.T) {
	b, sink := NewTestBasic()
	require.NoError(t, b.SubmitLine("PRINT SQR(3)"))
	assert.Equal(t, []string{"9"}, sink.lines())

	b, sink = NewTestBasic(WithSQRMode(SQRRoot))
	require.NoError(t, b.SubmitLine("PRINT SQR(16)"))
	assert.Equal(t, []string{"4"}, sink.lines())
}

func TestSeededRandom(t *testing.T) {
	b1, sink1 := NewTestBasic(WithSeed(7))
	b2, sink2 := NewTestBasic(WithSeed(7))
	require.NoError(t, b1.SubmitLine("PRINT RND(1);RND(1)"))
	require.NoError(t, b2.SubmitLine("PRINT RND(1);RND(1)"))
	assert.Equal(t, sink1.lines(), sink2.lines())
}

func TestRemSwallowsColons(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, `10 REM SKIP: PRINT "NO"`, `20 PRINT "YES"`)
	require.NoError(t, b.SubmitLine("RUN"))
	assert.Equal(t, []string{"YES"}, sink.lines())
}

func TestStateSnapshot(t *testing.T) {
	b, sink := NewTestBasic()
	loadProgram(t, b, sink, "10 DATA 1,2,3", "20 READ A", "30 FOR I=1 TO 2: NEXT I")
	require.NoError(t, b.SubmitLine("RUN"))

	st := b.State()
	assert.False(t, st.Running)
	assert.Equal(t, 3, st.ProgramSize)
	assert.Equal(t, 3, st.DataItems)
	assert.Equal(t, 1, st.DataPointer)
	assert.Equal(t, NumberValue(1), st.Variables["A"])
	assert.Equal(t, NumberValue(3), st.Variables["I"])
	assert.Empty(t, st.ForLoops)
}
