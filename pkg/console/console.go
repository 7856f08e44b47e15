// Package console runs a single interpreter on the local terminal.
package console

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/tinybasic"

	"github.com/goforj/godump"
	"golang.org/x/term"
)

// Meta-Befehle der Konsole, werden nicht an den Interpreter weitergegeben
const (
	metaQuit = "%QUIT"
	metaDump = "%DUMP"
)

// Console verbindet einen Interpreter mit stdin/stdout
type Console struct {
	basic   *tinybasic.TinyBASIC
	reader  tinybasic.InputSource
	out     io.Writer
	prompts *shared.PromptManager

	// interruptible wraps the context of one command; Ctrl-C cancels it.
	interruptible func(context.Context) (context.Context, context.CancelFunc)
}

// rawReader schaltet das Terminal nur während des Lesens in den Raw-Modus,
// damit Ctrl-C während eines Programmlaufs als Signal ankommt.
type rawReader struct {
	fd   int
	term *term.Terminal
}

func (r *rawReader) ReadLine() (string, error) {
	state, err := term.MakeRaw(r.fd)
	if err != nil {
		return r.term.ReadLine()
	}
	defer term.Restore(r.fd, state)
	return r.term.ReadLine()
}

// New creates a console. A terminal on in gets line editing and history;
// anything else is read line by line.
func New(in io.Reader, out io.Writer, prompts *shared.PromptManager, opts ...tinybasic.Option) *Console {
	c := &Console{
		out:     out,
		prompts: prompts,
		interruptible: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rw := struct {
			io.Reader
			io.Writer
		}{in, out}
		c.reader = &rawReader{fd: int(f.Fd()), term: term.NewTerminal(rw, "")}
		logger.Debug(logger.AreaConsole, "console on terminal fd %d", f.Fd())
	} else {
		c.reader = tinybasic.NewReaderSource(in)
	}

	all := append([]tinybasic.Option{}, opts...)
	all = append(all,
		tinybasic.WithOutput(tinybasic.WriterSink{W: out}),
		tinybasic.WithInput(c.reader),
		tinybasic.WithSessionID("console"),
	)
	c.basic = tinybasic.NewTinyBASIC(all...)
	return c
}

// Interpreter gives access to the console's engine.
func (c *Console) Interpreter() *tinybasic.TinyBASIC {
	return c.basic
}

// Run reads commands until EOF, %QUIT or ctx ends.
func (c *Console) Run(ctx context.Context) error {
	c.greet()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch strings.ToUpper(strings.TrimSpace(line)) {
		case metaQuit:
			return nil
		case metaDump:
			godump.Dump(c.basic.State())
			c.writeLine(shared.ReadyPrompt)
			continue
		}

		cmdCtx, stop := c.interruptible(ctx)
		err = c.basic.SubmitLineContext(cmdCtx, line)
		stop()
		if err != nil {
			logger.Debug(logger.AreaConsole, "%v", err)
		}

		if !tinybasic.IsProgramLine(line) {
			c.writeLine(shared.ReadyPrompt)
		}
	}
}

func (c *Console) greet() {
	if c.prompts != nil {
		banner, err := c.prompts.Banner("console", c.basic.Program().Len())
		if err != nil {
			logger.Error(logger.AreaConsole, "banner: %v", err)
		} else {
			c.writeLine(strings.TrimRight(banner, "\n"))
		}
	}
	c.writeLine(shared.ReadyPrompt)
}

func (c *Console) writeLine(text string) {
	io.WriteString(c.out, text+"\n")
}
