package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/tinybasic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runConsole(t *testing.T, input string, prompts *shared.PromptManager) (*Console, []string) {
	t.Helper()
	var out bytes.Buffer
	c := New(strings.NewReader(input), &out, prompts, tinybasic.WithSeed(1))
	require.NoError(t, c.Run(context.Background()))
	return c, strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
}

func TestConsoleSession(t *testing.T) {
	prompts, err := shared.NewPromptManager("HELLO V{{.Version}}\n", "2")
	require.NoError(t, err)

	_, lines := runConsole(t, "10 PRINT \"A\"\n20 PRINT 1+1\nRUN\nLIST\n", prompts)
	assert.Equal(t, []string{
		"HELLO V2",
		"READY.",
		"A",
		"2",
		"READY.",
		"10 PRINT \"A\"",
		"20 PRINT 1+1",
		"READY.",
	}, lines)
}

func TestConsoleInputReadsNextLine(t *testing.T) {
	_, lines := runConsole(t, "10 INPUT N\n20 PRINT N*2\nRUN\n21\n", nil)
	assert.Equal(t, []string{"READY.", "? 42", "READY."}, lines)
}

func TestConsoleQuit(t *testing.T) {
	c, lines := runConsole(t, "A=5\n%quit\nPRINT A\n", nil)
	assert.Equal(t, []string{"READY.", "READY."}, lines)
	assert.Equal(t, tinybasic.NumberValue(5), c.Interpreter().Variable("A"))
}

func TestConsoleDump(t *testing.T) {
	_, lines := runConsole(t, "%DUMP\n", nil)
	assert.Equal(t, []string{"READY.", "READY."}, lines)
}

func TestConsoleInterrupt(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("10 GOTO 10\nRUN\n"), &out, nil)
	c.interruptible = func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, 20*time.Millisecond)
	}
	require.NoError(t, c.Run(context.Background()))
	assert.Contains(t, out.String(), "BREAK IN LINE 10: PROGRAM INTERRUPTED")
}

func TestConsoleStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	c := New(strings.NewReader("PRINT 1\n"), &out, nil)
	require.NoError(t, c.Run(ctx))
	assert.Equal(t, "READY.\n", out.String())
}
