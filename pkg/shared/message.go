package shared

// MessageType definiert den Typ einer Nachricht für die WebSocket-Kommunikation.
type MessageType int

// Konstanten für MessageType. Die Werte entsprechen denen des Frontends.
const (
	MessageTypeText         MessageType = 0  // Textausgabe
	MessageTypeClear        MessageType = 1  // Bildschirm löschen
	MessageTypeSession      MessageType = 8  // Session-ID Übermittlung
	MessageTypeInputControl MessageType = 9  // Eingabesteuerung (aktivieren/deaktivieren)
	MessageTypePrompt       MessageType = 12 // Prompt-Informationen (Symbol, Eingabestatus)
	MessageTypeInput        MessageType = 14 // Eingabezeile vom Client
	MessageTypeBreak        MessageType = 15 // Programmabbruch vom Client
	MessageTypeError        MessageType = 100
)

// Message repräsentiert eine Nachricht, die über WebSocket gesendet oder empfangen wird.
type Message struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	// Für TEXT - verhindert automatischen Zeilenumbruch im Frontend
	NoNewline bool `json:"noNewline"`

	// Für SESSION
	SessionID string `json:"sessionId,omitempty"`
	// Für SESSION: Token für spätere Verbindungen
	Token string `json:"token,omitempty"`

	// Für PROMPT oder INPUT_CONTROL
	InputEnabled *bool  `json:"inputEnabled,omitempty"` // Pointer für optionale Booleans
	PromptSymbol string `json:"promptSymbol,omitempty"`
}

// Input control states carried in Message.Content.
const (
	InputControlEnable  = "enable"
	InputControlDisable = "disable"
	InputControlRequest = "input" // program waits on INPUT
)

// BoolPtr is a helper for the optional boolean fields.
func BoolPtr(b bool) *bool {
	return &b
}
