package tinybasic

import (
	"errors"
	"strings"
)

// cmdPrint prints values and strings. Items separated by ";" are joined
// directly, items separated by "," get one space. A trailing ";" keeps the
// cursor on the line. Exactly one sink write per PRINT.
func (b *TinyBASIC) cmdPrint(args []Token) error {
	var out strings.Builder
	var segment []Token
	pendingSep := ""
	wrote := false
	depth := 0

	flush := func() error {
		if len(segment) == 0 {
			return nil
		}
		v, err := b.evalTokens(segment)
		if err != nil {
			return err
		}
		if wrote {
			out.WriteString(pendingSep)
		}
		out.WriteString(v.String())
		wrote = true
		segment = segment[:0]
		return nil
	}

	for _, tok := range args {
		switch {
		case tok.Kind == TokenLParen:
			depth++
		case tok.Kind == TokenRParen:
			depth--
		case depth == 0 && (tok.IsOperator(";") || tok.Kind == TokenComma):
			if err := flush(); err != nil {
				return err
			}
			if tok.Kind == TokenComma {
				pendingSep = " "
			} else {
				pendingSep = ""
			}
			continue
		}
		segment = append(segment, tok)
	}
	if err := flush(); err != nil {
		return err
	}

	noNewline := len(args) > 0 && args[len(args)-1].IsOperator(";")
	b.write(out.String(), noNewline)
	return nil
}

// cmdInput reads one line per variable from the input source:
// INPUT ["prompt";] var [, var].
func (b *TinyBASIC) cmdInput(args []Token) error {
	prompt := ""
	if len(args) >= 2 && args[0].Kind == TokenString && (args[1].IsOperator(";") || args[1].Kind == TokenComma) {
		prompt = args[0].Value
		args = args[2:]
	}
	names, err := b.parseNameList(args, "INPUT")
	if err != nil {
		return err
	}

	for i, name := range names {
		if i == 0 {
			b.write(prompt+InputPrompt, true)
		} else {
			b.write(InputPrompt, true)
		}
		line, err := b.in.ReadLine()
		if err != nil {
			if errors.Is(err, ErrInputInterrupted) {
				return b.newError(ErrCategoryBreak, "BREAK").Wrap(ErrBreak)
			}
			return b.newError(ErrCategoryRuntime, "INPUT_UNAVAILABLE").WithCommand("INPUT").Wrap(ErrInputUnavailable)
		}
		// Die Eingabe wurde mit Enter abgeschlossen
		b.column = 0
		b.setVariable(name, StringValue(strings.TrimRight(line, "\r\n")))
	}
	return nil
}
