package tinybasic

import (
	"math"
)

// Environment supplies variables and functions to Evaluate and receives
// non-fatal faults.
type Environment interface {
	// Lookup returns a variable's value, default-initialised when unset.
	Lookup(name string) BASICValue
	// CallFunction invokes a built-in with arguments in call order.
	CallFunction(name string, args []BASICValue) BASICValue
	// Fault reports a recoverable evaluation problem. Evaluation continues
	// with a fallback value.
	Fault(err *BASICError)
}

// Evaluate runs a postfix expression produced by Compile. Only structural
// problems (missing operands, stray tokens) are returned as errors; numeric
// faults go to env.Fault and evaluate to 0.
func Evaluate(postfix []Token, env Environment) (BASICValue, error) {
	if len(postfix) == 0 {
		return BASICValue{}, NewBASICError(ErrCategorySyntax, "EXPECTED_EXPRESSION", false, 0)
	}
	stack := make([]BASICValue, 0, len(postfix))

	for _, tok := range postfix {
		switch tok.Kind {
		case TokenNumber:
			stack = append(stack, NumberValue(tok.Num))
		case TokenString:
			stack = append(stack, StringValue(tok.Value))
		case TokenIdentifier:
			stack = append(stack, env.Lookup(tok.Value))

		case TokenFunction:
			arity := functionArity[tok.Value]
			if len(stack) < arity {
				return BASICValue{}, incompleteExpression(tok.Value)
			}
			args := make([]BASICValue, arity)
			copy(args, stack[len(stack)-arity:])
			stack = stack[:len(stack)-arity]
			stack = append(stack, env.CallFunction(tok.Value, args))

		case TokenOperator:
			if tok.Value == "-" && (tok.Unary || len(stack) <= 1) {
				if len(stack) == 0 {
					return BASICValue{}, incompleteExpression(tok.Value)
				}
				top := stack[len(stack)-1]
				stack[len(stack)-1] = negate(top, env)
				continue
			}
			if len(stack) < 2 {
				return BASICValue{}, incompleteExpression(tok.Value)
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			result, err := applyOperator(tok.Value, a, b, env)
			if err != nil {
				return BASICValue{}, err
			}
			stack = append(stack, result)

		case TokenComma:
			// separators only matter while compiling

		default:
			return BASICValue{}, NewBASICError(ErrCategorySyntax, "UNEXPECTED_TOKEN", false, 0).WithText(tok.Value)
		}
	}

	if len(stack) != 1 {
		return BASICValue{}, NewBASICError(ErrCategorySyntax, "UNEXPECTED_TOKEN", false, 0)
	}
	return stack[0], nil
}

func incompleteExpression(near string) *BASICError {
	return NewBASICError(ErrCategorySyntax, "INCOMPLETE_EXPRESSION", false, 0).WithText(near)
}

func evalFault(code string, sentinel error) *BASICError {
	return NewBASICError(ErrCategoryEvaluation, code, false, 0).Wrap(sentinel)
}

func negate(v BASICValue, env Environment) BASICValue {
	if !v.IsNumeric {
		env.Fault(evalFault("TYPE_MISMATCH", ErrTypeMismatch))
		return NumberValue(0)
	}
	return NumberValue(-v.NumValue)
}

// applyOperator computes a <op> b.
func applyOperator(op string, a, b BASICValue, env Environment) (BASICValue, error) {
	if isComparisonOperator(op) {
		return compareValues(op, a, b, env), nil
	}

	if !a.IsNumeric || !b.IsNumeric {
		if op == "+" && !a.IsNumeric && !b.IsNumeric {
			return StringValue(a.StrValue + b.StrValue), nil
		}
		env.Fault(evalFault("TYPE_MISMATCH", ErrTypeMismatch))
		return NumberValue(0), nil
	}

	x, y := a.NumValue, b.NumValue
	var r float64
	switch op {
	case "+":
		r = x + y
	case "-":
		r = x - y
	case "*":
		r = x * y
	case "/":
		if y == 0 {
			env.Fault(evalFault("DIVISION_BY_ZERO", ErrDivisionByZero))
			return NumberValue(0), nil
		}
		r = x / y
	case "^":
		r = math.Pow(x, y)
	default:
		return BASICValue{}, NewBASICError(ErrCategoryRuntime, "UNKNOWN_OPERATOR", false, 0).WithText(op)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		env.Fault(evalFault("OVERFLOW", nil))
		return NumberValue(0), nil
	}
	return NumberValue(r), nil
}

// compareValues yields 1 or 0. Numbers compare numerically, strings
// lexicographically; mixed operands are a type fault.
func compareValues(op string, a, b BASICValue, env Environment) BASICValue {
	var c int
	switch {
	case a.IsNumeric && b.IsNumeric:
		switch {
		case a.NumValue < b.NumValue:
			c = -1
		case a.NumValue > b.NumValue:
			c = 1
		}
	case !a.IsNumeric && !b.IsNumeric:
		switch {
		case a.StrValue < b.StrValue:
			c = -1
		case a.StrValue > b.StrValue:
			c = 1
		}
	default:
		env.Fault(evalFault("TYPE_MISMATCH", ErrTypeMismatch))
		return NumberValue(0)
	}

	switch op {
	case "=":
		return boolValue(c == 0)
	case "<>":
		return boolValue(c != 0)
	case "<":
		return boolValue(c < 0)
	case ">":
		return boolValue(c > 0)
	case "<=":
		return boolValue(c <= 0)
	}
	return boolValue(c >= 0)
}
