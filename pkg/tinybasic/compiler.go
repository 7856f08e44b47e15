package tinybasic

// Compile reorders an infix expression into postfix using the shunting-yard
// algorithm. It does no evaluation and no type checking. Prefix minus is
// marked Unary; prefix plus is dropped.
func Compile(tokens []Token) ([]Token, error) {
	out := make([]Token, 0, len(tokens))
	var stack []Token
	// argument counters for each open parenthesis on the stack
	var args []int

	for i, tok := range tokens {
		switch tok.Kind {
		case TokenNumber, TokenString, TokenIdentifier:
			out = append(out, tok)

		case TokenFunction:
			arity := functionArity[tok.Value]
			if i+1 >= len(tokens) || tokens[i+1].Kind != TokenLParen {
				if arity != 0 {
					return nil, compileError("EXPECTED_OPEN_PAREN", tok.Value)
				}
				out = append(out, tok)
				continue
			}
			stack = append(stack, tok)

		case TokenLParen:
			stack = append(stack, tok)
			if i+1 < len(tokens) && tokens[i+1].Kind == TokenRParen {
				args = append(args, 0)
			} else {
				args = append(args, 1)
			}

		case TokenComma:
			if len(args) == 0 {
				return nil, compileError("UNEXPECTED_TOKEN", ",")
			}
			args[len(args)-1]++
			// das vorige Argument ist abgeschlossen
			for len(stack) > 0 && stack[len(stack)-1].Kind == TokenOperator {
				out = append(out, stack[len(stack)-1])
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, tok)

		case TokenRParen:
			for len(stack) > 0 && stack[len(stack)-1].Kind != TokenLParen {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.Kind != TokenComma {
					out = append(out, top)
				}
			}
			if len(stack) == 0 {
				return nil, compileError("MISMATCHED_PARENTHESES", ")").Wrap(ErrMismatchedParentheses)
			}
			stack = stack[:len(stack)-1]
			argc := args[len(args)-1]
			args = args[:len(args)-1]
			if len(stack) > 0 && stack[len(stack)-1].Kind == TokenFunction {
				fn := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if argc != functionArity[fn.Value] {
					return nil, compileError("INVALID_PARAMETER_COUNT", fn.Value)
				}
				out = append(out, fn)
			} else if argc != 1 {
				return nil, compileError("UNEXPECTED_TOKEN", "(")
			}

		case TokenOperator:
			prec, ok := operatorPrecedence[tok.Value]
			if !ok {
				return nil, compileError("UNEXPECTED_TOKEN", tok.Value)
			}
			if isPrefixPosition(tokens, i) {
				switch tok.Value {
				case "-":
					tok.Unary = true
					stack = append(stack, tok)
					continue
				case "+":
					continue
				}
				return nil, compileError("INCOMPLETE_EXPRESSION", tok.Value)
			}
			for len(stack) > 0 && stack[len(stack)-1].Kind == TokenOperator {
				top := stack[len(stack)-1]
				topPrec := operatorPrecedence[top.Value]
				if top.Unary {
					topPrec = unaryPrecedence
				}
				if topPrec > prec || (topPrec == prec && !isRightAssociative(tok.Value)) {
					out = append(out, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, tok)

		case TokenKeyword:
			return nil, compileError("UNEXPECTED_TOKEN", tok.Value)

		default:
			return nil, compileError("UNEXPECTED_CHARACTER", tok.Value)
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch top.Kind {
		case TokenLParen, TokenRParen:
			return nil, compileError("MISMATCHED_PARENTHESES", "(").Wrap(ErrMismatchedParentheses)
		case TokenComma:
			continue
		}
		out = append(out, top)
	}
	return out, nil
}

// isPrefixPosition reports whether the operator at index i cannot be binary:
// it starts the expression or follows another operator, "(" or ",".
func isPrefixPosition(tokens []Token, i int) bool {
	if i == 0 {
		return true
	}
	switch tokens[i-1].Kind {
	case TokenOperator, TokenLParen, TokenComma:
		return true
	}
	return false
}

func compileError(code, text string) *BASICError {
	return NewBASICError(ErrCategorySyntax, code, false, 0).WithText(text)
}
