package tinybasic

import (
	"math/rand"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/configuration"
)

// Option configures a TinyBASIC instance.
type Option func(*TinyBASIC)

// WithOutput sets the output sink.
func WithOutput(out OutputSink) Option {
	return func(b *TinyBASIC) {
		b.out = out
	}
}

// WithInput sets the input source used by INPUT.
func WithInput(in InputSource) Option {
	return func(b *TinyBASIC) {
		b.in = in
	}
}

// WithProgramStore replaces the in-memory program store.
func WithProgramStore(store ProgramStore) Option {
	return func(b *TinyBASIC) {
		b.program = store
	}
}

// WithSeed makes RND deterministic.
func WithSeed(seed int64) Option {
	return func(b *TinyBASIC) {
		b.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSQRMode selects the SQR semantics.
func WithSQRMode(mode SQRMode) Option {
	return func(b *TinyBASIC) {
		b.functions.SQR = mode
	}
}

// WithLimits sets the GOSUB and FOR nesting limits. Non-positive values keep
// the defaults.
func WithLimits(maxGosub, maxFor int) Option {
	return func(b *TinyBASIC) {
		if maxGosub > 0 {
			b.maxGosubDepth = maxGosub
		}
		if maxFor > 0 {
			b.maxForLoopDepth = maxFor
		}
	}
}

// WithSessionID tags log lines with the owning session.
func WithSessionID(id string) Option {
	return func(b *TinyBASIC) {
		b.sessionID = id
	}
}

// ConfigOptions reads the [Interpreter] section.
func ConfigOptions() []Option {
	opts := []Option{
		WithLimits(
			configuration.GetInt("Interpreter", "max_gosub_depth", DefaultMaxGosubDepth),
			configuration.GetInt("Interpreter", "max_for_depth", DefaultMaxForLoopDepth),
		),
	}
	if strings.EqualFold(configuration.GetString("Interpreter", "sqr_mode", "square"), "root") {
		opts = append(opts, WithSQRMode(SQRRoot))
	}
	if seed := configuration.GetInt("Interpreter", "rnd_seed", 0); seed != 0 {
		opts = append(opts, WithSeed(int64(seed)))
	}
	return opts
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
