package tinybasic

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/antibyte/retrobasic/pkg/shared"
)

// OutputSink receives interpreter output, one logical write at a time.
// noNewline suppresses the implicit line terminator.
type OutputSink interface {
	Write(text string, noNewline bool)
}

// InputSource supplies one line of text per INPUT variable. ReadLine blocks
// until a line is available.
type InputSource interface {
	ReadLine() (string, error)
}

// --- Communication Helpers ---

// WriterSink writes to an io.Writer, appending "\n" unless suppressed.
type WriterSink struct {
	W io.Writer
}

// Write implements OutputSink.
func (s WriterSink) Write(text string, noNewline bool) {
	if !noNewline {
		text += "\n"
	}
	io.WriteString(s.W, text)
}

// FuncSink adapts a function to OutputSink.
type FuncSink func(text string, noNewline bool)

// Write implements OutputSink.
func (f FuncSink) Write(text string, noNewline bool) { f(text, noNewline) }

// FuncSource adapts a function to InputSource.
type FuncSource func() (string, error)

// ReadLine implements InputSource.
func (f FuncSource) ReadLine() (string, error) { return f() }

// ReaderSource reads lines from an io.Reader.
type ReaderSource struct {
	scanner *bufio.Scanner
}

// NewReaderSource wraps r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{scanner: bufio.NewScanner(r)}
}

// ReadLine implements InputSource. It returns io.EOF when r is exhausted.
func (s *ReaderSource) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return strings.TrimRight(s.scanner.Text(), "\r"), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// ErrInputInterrupted is returned by LineQueue.ReadLine after Interrupt.
var ErrInputInterrupted = errors.New("input interrupted")

// LineQueue is an InputSource fed from another goroutine, e.g. a websocket
// read loop.
type LineQueue struct {
	lines      chan string
	interrupts chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once
}

// NewLineQueue creates a queue buffering up to size lines.
func NewLineQueue(size int) *LineQueue {
	return &LineQueue{
		lines:      make(chan string, size),
		interrupts: make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
}

// ReadLine implements InputSource.
func (q *LineQueue) ReadLine() (string, error) {
	select {
	case line := <-q.lines:
		return line, nil
	case <-q.interrupts:
		return "", ErrInputInterrupted
	case <-q.closed:
		return "", io.EOF
	}
}

// Push offers a line. It returns false when the queue is full or closed.
func (q *LineQueue) Push(line string) bool {
	select {
	case <-q.closed:
		return false
	default:
	}
	select {
	case q.lines <- line:
		return true
	default:
		return false
	}
}

// Interrupt wakes a pending ReadLine with ErrInputInterrupted. Without a
// pending reader the next ReadLine is interrupted.
func (q *LineQueue) Interrupt() {
	select {
	case q.interrupts <- struct{}{}:
	default:
	}
}

// Drain discards a stale interrupt and buffered lines.
func (q *LineQueue) Drain() {
	for {
		select {
		case <-q.interrupts:
		case <-q.lines:
		default:
			return
		}
	}
}

// Close makes every ReadLine return io.EOF.
func (q *LineQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// MessageSink forwards output as shared.Message values. Sends block until the
// receiver takes them or done is closed.
type MessageSink struct {
	Out       chan<- shared.Message
	Done      <-chan struct{}
	SessionID string
}

// Write implements OutputSink.
func (s MessageSink) Write(text string, noNewline bool) {
	msg := shared.Message{Type: shared.MessageTypeText, Content: text, NoNewline: noNewline, SessionID: s.SessionID}
	select {
	case s.Out <- msg:
	case <-s.Done:
	}
}

// discardSink drops output; used when no sink is configured.
type discardSink struct{}

func (discardSink) Write(string, bool) {}

// eofSource is the default input source.
type eofSource struct{}

func (eofSource) ReadLine() (string, error) { return "", io.EOF }
