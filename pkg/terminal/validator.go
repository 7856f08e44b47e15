package terminal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/antibyte/retrobasic/pkg/configuration"
)

// Request types sent by the browser terminal.
const (
	RequestInput     = "input"
	RequestBreak     = "break"
	RequestKeepalive = "keepalive"
)

// ClientRequest ist eine Nachricht vom Browser
type ClientRequest struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

var (
	ErrUnknownRequest   = errors.New("unknown request type")
	ErrInputTooLong     = errors.New("input line too long")
	ErrInvalidEncoding  = errors.New("input is not valid UTF-8")
	ErrControlCharacter = errors.New("input contains control characters")
)

// InputValidator prüft Browser-Nachrichten, bevor sie den Interpreter erreichen
type InputValidator struct {
	MaxInputLength int
}

// NewInputValidator reads [Security] max_input_length.
func NewInputValidator() *InputValidator {
	return &InputValidator{
		MaxInputLength: configuration.GetInt("Security", "max_input_length", 1024),
	}
}

// DecodeRequest parses and validates one message. Unknown fields are rejected.
func (v *InputValidator) DecodeRequest(data []byte) (*ClientRequest, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var req ClientRequest
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch req.Type {
	case RequestInput:
		if err := v.ValidateLine(req.Content); err != nil {
			return nil, err
		}
	case RequestBreak, RequestKeepalive:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRequest, req.Type)
	}
	return &req, nil
}

// ValidateLine accepts one line of printable text. Tabs are allowed.
func (v *InputValidator) ValidateLine(line string) error {
	if v.MaxInputLength > 0 && len(line) > v.MaxInputLength {
		return fmt.Errorf("%w: maximum %d characters allowed", ErrInputTooLong, v.MaxInputLength)
	}
	if !utf8.ValidString(line) {
		return ErrInvalidEncoding
	}
	for _, r := range line {
		if r != '\t' && unicode.IsControl(r) {
			return ErrControlCharacter
		}
	}
	return nil
}
