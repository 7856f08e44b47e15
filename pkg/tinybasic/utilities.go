package tinybasic

import (
	"strconv"
	"strings"
	"unicode"
)

// parseProgramLine attempts to parse a string as a BASIC program line
// (leading digits, then code). Blank code means delete. Pure function.
func parseProgramLine(line string) (int, string, bool, error) {
	trimmed := strings.TrimLeft(line, " \t")
	end := 0
	for end < len(trimmed) && isDigit(trimmed[end]) {
		end++
	}
	if end == 0 {
		return 0, "", false, nil
	}
	num, err := strconv.Atoi(trimmed[:end])
	if err != nil || num <= 0 {
		return 0, "", true, ErrInvalidLineNumber
	}
	return num, strings.TrimSpace(trimmed[end:]), true, nil
}

// IsProgramLine reports whether input edits the stored program rather than
// running a command. Such input produces no READY prompt.
func IsProgramLine(input string) bool {
	_, _, isLine, _ := parseProgramLine(input)
	return isLine
}

// upperOutsideQuotes upper-cases everything except string literals.
func upperOutsideQuotes(s string) string {
	inQuote := false
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '"' {
			inQuote = !inQuote
		}
		if !inQuote {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitStatementsByColon splits a line at colons outside string literals.
// A REM statement swallows the rest of the line, colons included.
func splitStatementsByColon(line string) []string {
	statements := make([]string, 0, 4)
	start := 0
	inString := false

	for i := 0; i < len(line); i++ {
		if i == start && startsWithRem(line[start:]) {
			break
		}
		switch line[i] {
		case '"':
			inString = !inString
		case ':':
			if inString {
				continue
			}
			if stmt := strings.TrimSpace(line[start:i]); stmt != "" {
				statements = append(statements, stmt)
			}
			start = i + 1
			// skip blanks so the REM check sees the statement start
			for start < len(line) && isSpace(line[start]) {
				start++
			}
			i = start - 1
		}
	}
	if stmt := strings.TrimSpace(line[start:]); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

func startsWithRem(s string) bool {
	s = strings.TrimLeft(s, " \t")
	end := 0
	for end < len(s) && (isAlpha(s[end]) || isDigit(s[end]) || s[end] == '$') {
		end++
	}
	return strings.EqualFold(s[:end], "REM")
}

// parseDataItems splits the text after a DATA keyword into values. Quoted
// items stay strings; unquoted items become numbers when they parse.
func parseDataItems(dataStr string) []BASICValue {
	var items []BASICValue
	var current strings.Builder
	quoted := false
	inQuotes := false

	flush := func() {
		text := current.String()
		current.Reset()
		if quoted {
			items = append(items, StringValue(text))
		} else if text = strings.TrimSpace(text); text != "" {
			if f, ok := parseBasicVal(text); ok {
				items = append(items, NumberValue(f))
			} else {
				items = append(items, StringValue(text))
			}
		}
		quoted = false
	}

	for i := 0; i < len(dataStr); i++ {
		char := dataStr[i]
		switch {
		case char == '"':
			inQuotes = !inQuotes
			if inQuotes {
				quoted = true
				current.Reset()
			}
		case char == ',' && !inQuotes:
			flush()
		case inQuotes || !quoted:
			current.WriteByte(char)
		}
	}
	flush()
	return items
}

// collectData gathers the values of every DATA statement in line order.
func collectData(lines []ProgramLine) []BASICValue {
	var data []BASICValue
	for _, line := range lines {
		for _, stmt := range splitStatementsByColon(line.Text) {
			toks := Tokenize(stmt)
			if len(toks) == 0 || !toks[0].IsKeyword("DATA") {
				continue
			}
			data = append(data, parseDataItems(stmt[toks[0].Pos+len("DATA"):])...)
		}
	}
	return data
}
