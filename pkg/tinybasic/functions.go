package tinybasic

import (
	"math"
	"strings"
	"unicode/utf8"
)

// maxSpaces caps SPC and TAB so a stray argument cannot allocate gigabytes.
const maxSpaces = 255

// SQRMode selects what the SQR function computes.
type SQRMode int

const (
	// SQRSquare returns x^2. This matches the dialect this interpreter
	// reproduces, not standard BASIC.
	SQRSquare SQRMode = iota
	// SQRRoot returns the square root.
	SQRRoot
)

// FunctionLibrary holds the built-in functions. Every fault inside a
// function degrades to 0 instead of stopping the program.
type FunctionLibrary struct {
	Random  func() float64         // RND source, [0,1)
	Column  func() int             // POS source
	SQR     SQRMode                // SQR semantics
	OnFault func(code, fn string) // optional hook for silent fallbacks
}

// Call dispatches a built-in by name. args are in call order and have the
// length FunctionArity reports.
func (f *FunctionLibrary) Call(name string, args []BASICValue) BASICValue {
	if want, ok := functionArity[name]; !ok || want != len(args) {
		return f.fault("FUNCTION_FAULT", name)
	}

	switch name {
	case "ABS", "ATN", "COS", "EXP", "INT", "LOG", "SGN", "SIN", "SQR", "TAN":
		x, ok := f.number(args[0], name)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		return f.numeric(name, x)
	case "RND":
		if f.Random == nil {
			return NumberValue(0)
		}
		return NumberValue(f.Random())
	case "PEEK":
		return NumberValue(0)
	case "POS":
		if f.Column == nil {
			return NumberValue(0)
		}
		return NumberValue(float64(f.Column()))
	case "SPC", "TAB":
		n, ok := f.number(args[0], name)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		count := int(math.Max(0, math.Min(maxSpaces, math.Trunc(n))))
		return StringValue(strings.Repeat(" ", count))
	case "CHR$":
		n, ok := f.number(args[0], name)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		r := rune(math.Trunc(n))
		if n < 0 || n > utf8.MaxRune || !utf8.ValidRune(r) {
			return f.fault("FUNCTION_FAULT", name)
		}
		return StringValue(string(r))
	case "STR$":
		n, ok := f.number(args[0], name)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		return StringValue(formatBasicFloat(n))
	case "ASC":
		s := f.text(args[0], name)
		if s == "" {
			return f.fault("FUNCTION_FAULT", name)
		}
		r, _ := utf8.DecodeRuneInString(s)
		return NumberValue(float64(r))
	case "LEN":
		return NumberValue(float64(utf8.RuneCountInString(f.text(args[0], name))))
	case "VAL":
		if args[0].IsNumeric {
			return args[0]
		}
		n, ok := parseBasicVal(args[0].StrValue)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		return NumberValue(n)
	case "LEFT$", "RIGHT$":
		runes := []rune(f.text(args[0], name))
		n, ok := f.number(args[1], name)
		if !ok {
			return f.fault("INVALID_NUMBER", name)
		}
		count := clampIndex(n, len(runes))
		if name == "LEFT$" {
			return StringValue(string(runes[:count]))
		}
		return StringValue(string(runes[len(runes)-count:]))
	case "MID$":
		runes := []rune(f.text(args[0], name))
		start, ok1 := f.number(args[1], name)
		length, ok2 := f.number(args[2], name)
		if !ok1 || !ok2 {
			return f.fault("INVALID_NUMBER", name)
		}
		// 1-based start position
		from := clampIndex(start-1, len(runes))
		to := from + clampIndex(length, len(runes)-from)
		return StringValue(string(runes[from:to]))
	}
	return f.fault("FUNCTION_FAULT", name)
}

func (f *FunctionLibrary) numeric(name string, x float64) BASICValue {
	var r float64
	switch name {
	case "ABS":
		r = math.Abs(x)
	case "ATN":
		r = math.Atan(x)
	case "COS":
		r = math.Cos(x)
	case "EXP":
		r = math.Exp(x)
	case "INT":
		r = math.Trunc(x)
	case "LOG":
		if x <= 0 {
			return f.fault("FUNCTION_FAULT", name)
		}
		r = math.Log(x)
	case "SGN":
		switch {
		case x > 0:
			r = 1
		case x < 0:
			r = -1
		}
	case "SIN":
		r = math.Sin(x)
	case "SQR":
		if f.SQR == SQRRoot {
			if x < 0 {
				return f.fault("FUNCTION_FAULT", name)
			}
			r = math.Sqrt(x)
		} else {
			r = x * x
		}
	case "TAN":
		r = math.Tan(x)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return f.fault("FUNCTION_FAULT", name)
	}
	return NumberValue(r)
}

// number coerces an argument to a float. Strings are parsed.
func (f *FunctionLibrary) number(v BASICValue, name string) (float64, bool) {
	if v.IsNumeric {
		return v.NumValue, true
	}
	return parseBasicVal(v.StrValue)
}

// text coerces an argument to a string. Numbers are rendered.
func (f *FunctionLibrary) text(v BASICValue, name string) string {
	if v.IsNumeric {
		if f.OnFault != nil {
			f.OnFault("STRING_EXPECTED", name)
		}
		return formatBasicFloat(v.NumValue)
	}
	return v.StrValue
}

func (f *FunctionLibrary) fault(code, name string) BASICValue {
	if f.OnFault != nil {
		f.OnFault(code, name)
	}
	return NumberValue(0)
}

// clampIndex truncates n into [0, limit].
func clampIndex(n float64, limit int) int {
	if limit <= 0 || n <= 0 || math.IsNaN(n) {
		return 0
	}
	if n >= float64(limit) {
		return limit
	}
	return int(n)
}
