package tinybasic

import (
	"strconv"
	"strings"
)

// Lexer zerlegt eine Zeile in Tokens.
type Lexer struct {
	input string
	pos   int
}

// NewLexer erstellt einen neuen Lexer
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		pos:   0,
	}
}

// Tokenize converts one line of BASIC source into tokens. It never fails;
// characters it does not understand become TokenUnknown.
func Tokenize(line string) []Token {
	return NewLexer(line).All()
}

// All consumes the remaining input.
func (l *Lexer) All() []Token {
	var tokens []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token, or false at end of input.
func (l *Lexer) Next() (Token, bool) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{}, false
	}
	start := l.pos
	tok := l.scan()
	tok.Pos = start
	return tok, true
}

func (l *Lexer) scan() Token {
	ch := l.input[l.pos]
	switch {
	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		return l.readNumber()
	case ch == '"':
		return l.readString()
	case isAlpha(ch):
		return l.readName()
	case ch == '(':
		l.pos++
		return Token{Kind: TokenLParen, Value: "("}
	case ch == ')':
		l.pos++
		return Token{Kind: TokenRParen, Value: ")"}
	case ch == ',':
		l.pos++
		return Token{Kind: TokenComma, Value: ","}
	}

	// Zwei-Zeichen-Operatoren zuerst
	if l.pos+1 < len(l.input) {
		switch two := l.input[l.pos : l.pos+2]; two {
		case "<=", ">=", "<>":
			l.pos += 2
			return Token{Kind: TokenOperator, Value: two}
		}
	}
	if strings.IndexByte("+-*/^=<>:;", ch) >= 0 {
		l.pos++
		return Token{Kind: TokenOperator, Value: string(ch)}
	}

	// Unbekanntes Zeichen, ganze UTF-8-Sequenz übernehmen
	start := l.pos
	l.pos++
	for l.pos < len(l.input) && l.input[l.pos]&0xC0 == 0x80 {
		l.pos++
	}
	return Token{Kind: TokenUnknown, Value: l.input[start:l.pos]}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	text := l.input[start:l.pos]
	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		// only reachable for absurdly long literals
		return Token{Kind: TokenUnknown, Value: text}
	}
	return Token{Kind: TokenNumber, Value: text, Num: num}
}

// readString reads a double-quoted literal. An unterminated string runs to
// the end of the line.
func (l *Lexer) readString() Token {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		l.pos++
	}
	text := l.input[start:l.pos]
	if l.pos < len(l.input) {
		l.pos++ // closing quote
	}
	return Token{Kind: TokenString, Value: text}
}

func (l *Lexer) readName() Token {
	start := l.pos
	for l.pos < len(l.input) && (isAlpha(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '$') {
		l.pos++
	}
	name := strings.ToUpper(l.input[start:l.pos])
	if IsKeyword(name) {
		return Token{Kind: TokenKeyword, Value: name}
	}
	if _, ok := functionArity[name]; ok {
		return Token{Kind: TokenFunction, Value: name}
	}
	return Token{Kind: TokenIdentifier, Value: name}
}

// isSpace überprüft, ob ein Zeichen ein Leerzeichen ist
func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// isDigit überprüft, ob ein Zeichen eine Ziffer ist
func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}
