// Package tinybasic implements a line-numbered classic BASIC interpreter.
package tinybasic

import (
	"errors"
	"fmt"
	"strings"
)

// Error definitions specific to TinyBASIC operations.
var (
	ErrInvalidLineNumber     = errors.New("invalid line number")
	ErrLineNotFound          = errors.New("line not found")
	ErrReturnWithoutGosub    = errors.New("RETURN without GOSUB")
	ErrNextWithoutFor        = errors.New("NEXT without FOR")
	ErrNextVariableMismatch  = errors.New("NEXT variable mismatch")
	ErrOutOfData             = errors.New("OUT OF DATA") // Classic BASIC message
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrSyntaxError           = errors.New("syntax error")
	ErrMismatchedParentheses = errors.New("mismatched parentheses")
	ErrGosubDepthExceeded    = errors.New("GOSUB depth exceeded")
	ErrForLoopDepthExceeded  = errors.New("FOR loop depth exceeded")
	ErrForStepZero           = errors.New("FOR STEP 0")
	ErrNotInDirectMode       = errors.New("not allowed in direct mode")
	ErrNotInProgram          = errors.New("not allowed in program")
	ErrBreak                 = errors.New("break")
	ErrInputUnavailable      = errors.New("input source unavailable")
)

// ErrorKind is the coarse classification of a BASIC error and decides how
// the engine reacts to it.
type ErrorKind int

const (
	// SyntaxError: malformed expression, unmatched parentheses, missing THEN,
	// unrecognized statement. Stops a run.
	SyntaxError ErrorKind = iota
	// RuntimeError: unknown jump target, stack underflow, loop mismatch,
	// arithmetic faults. Stops a run unless raised inside expression evaluation.
	RuntimeError
	// DataExhausted: READ past the last DATA item. Reported, run continues.
	DataExhausted
	// ConversionFallback: forgiving coercion substituted a default. Never reported.
	ConversionFallback
)

func (k ErrorKind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case RuntimeError:
		return "RuntimeError"
	case DataExhausted:
		return "DataExhausted"
	case ConversionFallback:
		return "ConversionFallback"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Fehlerkategorien
const (
	// ErrCategorySyntax kennzeichnet Syntaxfehler.
	ErrCategorySyntax = "SYNTAX ERROR"
	// ErrCategoryRuntime kennzeichnet Laufzeitfehler.
	ErrCategoryRuntime = "RUNTIME ERROR"
	// ErrCategoryEvaluation kennzeichnet Fehler bei der Ausdrucksauswertung.
	ErrCategoryEvaluation = "EVALUATION ERROR"
	// ErrCategoryData kennzeichnet einen erschöpften DATA-Vorrat.
	ErrCategoryData = "DATA ERROR"
	// ErrCategoryConversion kennzeichnet stille Typumwandlungen.
	ErrCategoryConversion = "CONVERSION"
	// ErrCategoryBreak kennzeichnet einen Abbruch von außen.
	ErrCategoryBreak = "BREAK"
)

// BASICError repräsentiert einen strukturierten Fehler im TinyBASIC-Interpreter
type BASICError struct {
	Kind       ErrorKind
	Category   string // Fehlerkategorie (z.B. "SYNTAX ERROR")
	Code       string // Fehlercode, Schlüssel in FriendlyErrorTexts
	Command    string // Der Befehl, bei dem der Fehler aufgetreten ist (optional)
	UsageHint  string // Hinweis zur korrekten Syntax (nur für Syntaxfehler)
	Text       string // Betroffener Quelltext, z.B. eine unbekannte Anweisung
	LineNumber int    // Zeilennummer im Programm (0 für Direktmodus)
	DirectMode bool   // Ob der Fehler im Direktmodus aufgetreten ist
	Err        error  // Zugrundeliegender Fehler für errors.Is
}

// Error implementiert das error-Interface
func (be *BASICError) Error() string {
	friendly := GetFriendlyErrorText(be.Category, be.Code)
	if be.Text != "" {
		friendly += ": " + be.Text
	}
	msg := be.Category
	if !be.DirectMode && be.LineNumber > 0 {
		msg += " IN LINE " + fmt.Sprint(be.LineNumber)
	}
	msg += ": " + friendly
	if be.DirectMode && be.UsageHint != "" {
		msg += "\nUSAGE: " + be.UsageHint
	}
	return msg
}

func (be *BASICError) Unwrap() error {
	return be.Err
}

// NewBASICError erstellt eine neue BASIC-Fehlerinstanz
func NewBASICError(category, code string, directMode bool, lineNumber int) *BASICError {
	return &BASICError{
		Kind:       kindForCategory(category),
		Category:   category,
		Code:       code,
		DirectMode: directMode,
		LineNumber: lineNumber,
	}
}

func kindForCategory(category string) ErrorKind {
	switch category {
	case ErrCategorySyntax:
		return SyntaxError
	case ErrCategoryData:
		return DataExhausted
	case ErrCategoryConversion:
		return ConversionFallback
	}
	return RuntimeError
}

// WithCommand fügt dem Fehler einen Befehlsnamen hinzu
func (be *BASICError) WithCommand(cmd string) *BASICError {
	be.Command = cmd
	// Füge automatisch einen Syntaxhinweis hinzu, wenn verfügbar
	if be.Category == ErrCategorySyntax {
		be.UsageHint = GetCommandUsageHint(cmd)
	}
	return be
}

// WithText hängt den betroffenen Quelltext an.
func (be *BASICError) WithText(text string) *BASICError {
	be.Text = text
	return be
}

// Wrap setzt den zugrundeliegenden Fehler.
func (be *BASICError) Wrap(err error) *BASICError {
	be.Err = err
	return be
}

// FriendlyErrorTexts map error codes to user-friendly messages.
var FriendlyErrorTexts = map[string]map[string]string{
	ErrCategorySyntax: {
		"UNEXPECTED_TOKEN":        "UNEXPECTED TOKEN ENCOUNTERED",
		"MISMATCHED_PARENTHESES":  "MISMATCHED PARENTHESES",
		"INVALID_LINE_NUMBER":     "INVALID LINE NUMBER SPECIFIED",
		"UNKNOWN_STATEMENT":       "UNKNOWN STATEMENT",
		"INVALID_VARIABLE_NAME":   "INVALID VARIABLE NAME",
		"EXPECTED_EQUALS":         "EQUALS SIGN (=) EXPECTED",
		"EXPECTED_VARIABLE":       "VARIABLE NAME EXPECTED",
		"EXPECTED_EXPRESSION":     "EXPRESSION EXPECTED",
		"EXPECTED_TO":             "TO KEYWORD EXPECTED IN FOR LOOP",
		"EXPECTED_THEN":           "THEN KEYWORD EXPECTED AFTER IF CONDITION",
		"EXPECTED_OPEN_PAREN":     "OPEN PARENTHESIS (() EXPECTED",
		"INVALID_PARAMETER_COUNT": "INVALID NUMBER OF PARAMETERS",
		"INCOMPLETE_EXPRESSION":   "OPERAND MISSING IN EXPRESSION",
		"UNEXPECTED_CHARACTER":    "UNEXPECTED CHARACTER IN EXPRESSION",
	},
	ErrCategoryRuntime: {
		"LINE_NOT_FOUND":          "PROGRAM LINE NOT FOUND",
		"RETURN_WITHOUT_GOSUB":    "RETURN WITHOUT GOSUB (NO MATCHING GOSUB)",
		"NEXT_WITHOUT_FOR":        "NEXT STATEMENT WITHOUT A CORRESPONDING FOR",
		"NEXT_VARIABLE_MISMATCH":  "NEXT VARIABLE DOES NOT MATCH FOR VARIABLE",
		"GOSUB_DEPTH_EXCEEDED":    "MAXIMUM GOSUB NESTING DEPTH EXCEEDED",
		"FOR_LOOP_DEPTH_EXCEEDED": "MAXIMUM FOR LOOP NESTING DEPTH EXCEEDED",
		"FOR_STEP_ZERO":           "FOR LOOP STEP MUST NOT BE ZERO",
		"DIRECT_MODE":             "NOT ALLOWED IN DIRECT MODE",
		"PROGRAM_MODE":            "NOT ALLOWED IN PROGRAM",
		"UNKNOWN_OPERATOR":        "UNKNOWN OPERATOR",
		"INPUT_UNAVAILABLE":       "NO INPUT AVAILABLE",
		"STORE_FAILURE":           "PROGRAM STORE FAILURE",
		"EXECUTION_FAILED":        "EXECUTION FAILED",
	},
	ErrCategoryEvaluation: {
		"TYPE_MISMATCH":    "TYPE MISMATCH IN EXPRESSION OR ASSIGNMENT",
		"DIVISION_BY_ZERO": "DIVISION BY ZERO",
		"OVERFLOW":         "NUMERIC OVERFLOW",
	},
	ErrCategoryData: {
		"OUT_OF_DATA": "OUT OF DATA",
	},
	ErrCategoryConversion: {
		"INVALID_NUMBER":  "NOT A NUMBER, 0 ASSUMED",
		"FUNCTION_FAULT":  "FUNCTION FAILED, 0 ASSUMED",
		"STRING_EXPECTED": "STRING EXPECTED, EMPTY STRING ASSUMED",
	},
	ErrCategoryBreak: {
		"BREAK": "PROGRAM INTERRUPTED",
	},
}

// Tabelle mit Syntaxhinweisen für Befehle
var commandUsageHints = map[string]string{
	"PRINT":   "PRINT expr [; expr] [, expr]",
	"LET":     "LET var = expr",
	"INPUT":   "INPUT [\"prompt\";] var [, var]",
	"GOTO":    "GOTO line",
	"GOSUB":   "GOSUB line",
	"IF":      "IF condition THEN line",
	"FOR":     "FOR var = start TO end [STEP step]",
	"NEXT":    "NEXT [var]",
	"READ":    "READ var [, var]",
	"RESTORE": "RESTORE",
	"RETURN":  "RETURN",
}

// GetCommandUsageHint gibt einen Syntaxhinweis für einen Befehl zurück
func GetCommandUsageHint(cmd string) string {
	return commandUsageHints[strings.ToUpper(strings.TrimSpace(cmd))]
}

// GetFriendlyErrorText retrieves a user-friendly error message.
func GetFriendlyErrorText(category, code string) string {
	if texts, ok := FriendlyErrorTexts[category]; ok {
		if text, ok := texts[code]; ok {
			return text
		}
	}
	return strings.ReplaceAll(code, "_", " ")
}

// sentinelCodes maps sentinel errors to their category and code.
var sentinelCodes = map[error][2]string{
	ErrLineNotFound:          {ErrCategoryRuntime, "LINE_NOT_FOUND"},
	ErrReturnWithoutGosub:    {ErrCategoryRuntime, "RETURN_WITHOUT_GOSUB"},
	ErrNextWithoutFor:        {ErrCategoryRuntime, "NEXT_WITHOUT_FOR"},
	ErrNextVariableMismatch:  {ErrCategoryRuntime, "NEXT_VARIABLE_MISMATCH"},
	ErrGosubDepthExceeded:    {ErrCategoryRuntime, "GOSUB_DEPTH_EXCEEDED"},
	ErrForLoopDepthExceeded:  {ErrCategoryRuntime, "FOR_LOOP_DEPTH_EXCEEDED"},
	ErrForStepZero:           {ErrCategoryRuntime, "FOR_STEP_ZERO"},
	ErrNotInDirectMode:       {ErrCategoryRuntime, "DIRECT_MODE"},
	ErrNotInProgram:          {ErrCategoryRuntime, "PROGRAM_MODE"},
	ErrOutOfData:             {ErrCategoryData, "OUT_OF_DATA"},
	ErrTypeMismatch:          {ErrCategoryEvaluation, "TYPE_MISMATCH"},
	ErrDivisionByZero:        {ErrCategoryEvaluation, "DIVISION_BY_ZERO"},
	ErrMismatchedParentheses: {ErrCategorySyntax, "MISMATCHED_PARENTHESES"},
	ErrInvalidLineNumber:     {ErrCategorySyntax, "INVALID_LINE_NUMBER"},
	ErrSyntaxError:           {ErrCategorySyntax, "UNEXPECTED_TOKEN"},
	ErrBreak:                 {ErrCategoryBreak, "BREAK"},
	ErrInputUnavailable:      {ErrCategoryRuntime, "INPUT_UNAVAILABLE"},
}

// WrapError wandelt einen beliebigen Fehler in einen BASICError um (mit optionalem Befehl, Modus, Zeile)
func WrapError(err error, command string, directMode bool, lineNumber int) *BASICError {
	var be *BASICError
	if errors.As(err, &be) {
		if command != "" && be.Command == "" {
			be.Command = command
		}
		return be
	}
	for sentinel, cc := range sentinelCodes {
		if errors.Is(err, sentinel) {
			return NewBASICError(cc[0], cc[1], directMode, lineNumber).WithCommand(command).Wrap(err)
		}
	}
	return NewBASICError(ErrCategoryRuntime, "EXECUTION_FAILED", directMode, lineNumber).WithCommand(command).WithText(err.Error()).Wrap(err)
}
