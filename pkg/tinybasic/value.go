package tinybasic

import (
	"math"
	"strconv"
	"strings"
)

// BASICValue represents a value within the BASIC interpreter (number or string).
type BASICValue struct {
	NumValue  float64 // Numeric value (if IsNumeric is true).
	StrValue  string  // String value (if IsNumeric is false).
	IsNumeric bool    // Flag indicating whether the value is numeric or string.
}

// NumberValue wraps a float64.
func NumberValue(num float64) BASICValue {
	return BASICValue{NumValue: num, IsNumeric: true}
}

// StringValue wraps a string.
func StringValue(str string) BASICValue {
	return BASICValue{StrValue: str}
}

// String renders the value the way PRINT shows it.
func (v BASICValue) String() string {
	if v.IsNumeric {
		return formatBasicFloat(v.NumValue)
	}
	return v.StrValue
}

// isStringName reports whether a variable name carries the string sigil.
func isStringName(name string) bool {
	return strings.HasSuffix(name, "$")
}

// defaultValueFor returns the initial value of a never-assigned variable.
func defaultValueFor(name string) BASICValue {
	if isStringName(name) {
		return StringValue("")
	}
	return NumberValue(0)
}

// formatBasicFloat renders integral values without a fractional part.
func formatBasicFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// parseBasicVal parses user or DATA text as a number.
func parseBasicVal(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// coerceForName converts v to the representation the variable name demands.
// The second return is false when a string had to be replaced by 0.
func coerceForName(name string, v BASICValue) (BASICValue, bool) {
	if isStringName(name) {
		if v.IsNumeric {
			return StringValue(formatBasicFloat(v.NumValue)), true
		}
		return v, true
	}
	if v.IsNumeric {
		return v, true
	}
	f, ok := parseBasicVal(v.StrValue)
	return NumberValue(f), ok
}

// isTruthy returns true if the BASICValue is considered logically true:
// a non-zero number or a non-empty string.
func isTruthy(val BASICValue) bool {
	if val.IsNumeric {
		return val.NumValue != 0
	}
	return val.StrValue != ""
}

func boolValue(b bool) BASICValue {
	if b {
		return NumberValue(1)
	}
	return NumberValue(0)
}
