package tinybasic

// cmdLet assigns a value to a variable. Assumes lock is held.
// args starts at the variable name; a leading LET was already consumed.
func (b *TinyBASIC) cmdLet(args []Token) error {
	if len(args) == 0 || args[0].Kind != TokenIdentifier {
		return b.newError(ErrCategorySyntax, "EXPECTED_VARIABLE").WithCommand("LET")
	}
	if len(args) < 2 || !args[1].IsOperator("=") {
		return b.newError(ErrCategorySyntax, "EXPECTED_EQUALS").WithCommand("LET")
	}
	if len(args) == 2 {
		return b.newError(ErrCategorySyntax, "EXPECTED_EXPRESSION").WithCommand("LET")
	}

	value, err := b.evalTokens(args[2:])
	if err != nil {
		return err
	}
	b.setVariable(args[0].Value, value)
	return nil
}

// parseNameList reads "A, B$, C" as used by READ and INPUT.
func (b *TinyBASIC) parseNameList(toks []Token, cmd string) ([]string, error) {
	var names []string
	for i := 0; i < len(toks); i += 2 {
		if toks[i].Kind != TokenIdentifier {
			return nil, b.newError(ErrCategorySyntax, "EXPECTED_VARIABLE").WithCommand(cmd).WithText(toks[i].Value)
		}
		names = append(names, toks[i].Value)
		if i+1 < len(toks) && toks[i+1].Kind != TokenComma {
			return nil, b.newError(ErrCategorySyntax, "UNEXPECTED_TOKEN").WithCommand(cmd).WithText(toks[i+1].Value)
		}
	}
	if len(names) == 0 || toks[len(toks)-1].Kind == TokenComma {
		return nil, b.newError(ErrCategorySyntax, "EXPECTED_VARIABLE").WithCommand(cmd)
	}
	return names, nil
}

// cmdRead reads values from DATA statements. Running out of data is
// reported, the variable gets its default and execution continues.
func (b *TinyBASIC) cmdRead(args []Token) error {
	names, err := b.parseNameList(args, "READ")
	if err != nil {
		return err
	}
	for _, name := range names {
		if b.dataPointer >= len(b.data) {
			b.report(b.newError(ErrCategoryData, "OUT_OF_DATA").WithCommand("READ").Wrap(ErrOutOfData))
			b.variables[name] = defaultValueFor(name)
			continue
		}
		b.setVariable(name, b.data[b.dataPointer])
		b.dataPointer++
	}
	return nil
}

// cmdRestore resets the DATA pointer. Assumes lock is held.
func (b *TinyBASIC) cmdRestore(args []Token) error {
	if len(args) != 0 {
		return b.newError(ErrCategorySyntax, "UNEXPECTED_TOKEN").WithCommand("RESTORE").WithText(args[0].Value)
	}
	b.dataPointer = 0
	return nil
}
