package tinybasic

import (
	"fmt"
	"strconv"
)

// TokenKind classifies a lexed token.
type TokenKind int

// Token kinds produced by Tokenize.
const (
	TokenUnknown TokenKind = iota
	TokenNumber
	TokenString
	TokenIdentifier
	TokenKeyword
	TokenFunction
	TokenOperator
	TokenLParen
	TokenRParen
	TokenComma
)

var tokenKindNames = map[TokenKind]string{
	TokenUnknown:    "UNKNOWN",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenIdentifier: "NAME",
	TokenKeyword:    "KEYWORD",
	TokenFunction:   "FUNC",
	TokenOperator:   "OP",
	TokenLParen:     "LPAREN",
	TokenRParen:     "RPAREN",
	TokenComma:      "COMMA",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token represents a token in the TinyBASIC interpreter.
type Token struct {
	Kind  TokenKind
	Value string  // Upper-cased for keywords, functions and identifiers; raw text otherwise.
	Num   float64 // Only set for TokenNumber.
	Unary bool    // Set by Compile on prefix minus operators.
	Pos   int     // Byte offset in the source line.
}

func (t Token) String() string {
	switch t.Kind {
	case TokenNumber:
		return "NUMBER(" + strconv.FormatFloat(t.Num, 'g', -1, 64) + ")"
	case TokenString:
		return "STRING(" + strconv.Quote(t.Value) + ")"
	case TokenKeyword:
		return t.Value
	}
	return t.Kind.String() + "(" + t.Value + ")"
}

// IsKeyword reports whether tok is the given keyword.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokenKeyword && t.Value == kw
}

// IsOperator reports whether tok is the given operator symbol.
func (t Token) IsOperator(op string) bool {
	return t.Kind == TokenOperator && t.Value == op
}

// keywords is the fixed statement keyword set. An identifier spelled like
// one of these is always the keyword.
var keywords = map[string]struct{}{
	"PRINT": {}, "LET": {}, "INPUT": {}, "GOTO": {}, "IF": {}, "THEN": {},
	"FOR": {}, "TO": {}, "STEP": {}, "NEXT": {}, "GOSUB": {}, "RETURN": {},
	"REM": {}, "END": {}, "STOP": {}, "DATA": {}, "READ": {}, "RESTORE": {},
	"LIST": {}, "RUN": {}, "NEW": {},
}

// functionArity maps every built-in function to its fixed argument count.
var functionArity = map[string]int{
	"ABS": 1, "ATN": 1, "COS": 1, "EXP": 1, "INT": 1, "LOG": 1,
	"SGN": 1, "SIN": 1, "SQR": 1, "TAN": 1, "RND": 1, "PEEK": 1,
	"POS": 0, "SPC": 1, "TAB": 1, "ASC": 1, "LEN": 1, "VAL": 1,
	"CHR$": 1, "STR$": 1, "LEFT$": 2, "RIGHT$": 2, "MID$": 3,
}

// operatorPrecedence holds binary operator binding strength, low to high.
var operatorPrecedence = map[string]int{
	"=": 1, "<": 1, ">": 1, "<=": 1, ">=": 1, "<>": 1,
	"+": 2, "-": 2,
	"*": 3, "/": 3,
	"^": 4,
}

// unaryPrecedence binds prefix minus tighter than * and / but not tighter
// than ^, so -2^2 is -4.
const unaryPrecedence = 4

// IsKeyword reports whether name (upper case) is a statement keyword.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// FunctionArity returns the argument count of a built-in function.
func FunctionArity(name string) (int, bool) {
	n, ok := functionArity[name]
	return n, ok
}

func isRightAssociative(op string) bool {
	return op == "^"
}

func isComparisonOperator(op string) bool {
	switch op {
	case "=", "<>", "<", ">", "<=", ">=":
		return true
	}
	return false
}
