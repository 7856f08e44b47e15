package tinybasic

// Constants for default values and configuration.
const (
	// DefaultMaxGosubDepth defines the maximum nesting level for GOSUB calls.
	DefaultMaxGosubDepth = 100
	// DefaultMaxForLoopDepth defines the maximum nesting level for FOR loops.
	DefaultMaxForLoopDepth = 200
	// InputPrompt is written before each INPUT value.
	InputPrompt = "? "
	// DirectModeLine is the line number sentinel for immediate statements.
	DirectModeLine = 0
)

// Classic messages.
const (
	MsgNoProgram      = "NO PROGRAM."
	MsgProgramCleared = "PROGRAM CLEARED."
)
