// Package session binds one BASIC interpreter to one remote terminal.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/shared"
	"github.com/antibyte/retrobasic/pkg/tinybasic"
)

var (
	// ErrSessionClosed is returned for input to a removed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrAlreadyAttached is returned when a second terminal connects to a session.
	ErrAlreadyAttached = errors.New("session already has a terminal attached")
	// ErrInputQueueFull is returned when lines arrive faster than they run.
	ErrInputQueueFull = errors.New("input queue full")
)

// Session is one interpreter with its output channel and input queues.
// Commands run one at a time on the session's worker goroutine.
type Session struct {
	ID        string
	Owner     string
	CreatedAt time.Time

	basic    *tinybasic.TinyBASIC
	output   chan shared.Message
	commands chan string
	input    *tinybasic.LineQueue
	done     chan struct{}

	lastActivity atomic.Int64
	busy         atomic.Bool
	awaiting     atomic.Bool
	attached     atomic.Bool

	mu        sync.Mutex
	cancelRun context.CancelFunc
	closeOnce sync.Once
	pending   sync.WaitGroup
}

// inputSource announces a pending INPUT to the terminal before blocking.
type inputSource struct {
	s *Session
}

func (in inputSource) ReadLine() (string, error) {
	in.s.awaiting.Store(true)
	defer in.s.awaiting.Store(false)
	in.s.send(shared.Message{
		Type:         shared.MessageTypeInputControl,
		Content:      shared.InputControlRequest,
		InputEnabled: shared.BoolPtr(true),
		SessionID:    in.s.ID,
	})
	return in.s.input.ReadLine()
}

func newSession(id, owner string, outputBuffer, queueSize int, opts []tinybasic.Option) *Session {
	s := &Session{
		ID:        id,
		Owner:     owner,
		CreatedAt: time.Now(),
		output:    make(chan shared.Message, outputBuffer),
		commands:  make(chan string, queueSize),
		input:     tinybasic.NewLineQueue(queueSize),
		done:      make(chan struct{}),
	}
	s.touch()

	all := append([]tinybasic.Option{}, opts...)
	all = append(all,
		tinybasic.WithSessionID(id),
		tinybasic.WithOutput(tinybasic.MessageSink{Out: s.output, Done: s.done, SessionID: id}),
		tinybasic.WithInput(inputSource{s: s}),
	)
	s.basic = tinybasic.NewTinyBASIC(all...)
	go s.worker()
	return s
}

// Output delivers everything the session wants to show.
func (s *Session) Output() <-chan shared.Message {
	return s.output
}

// Done is closed when the session is removed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Interpreter gives access to the session's engine.
func (s *Session) Interpreter() *tinybasic.TinyBASIC {
	return s.basic
}

// Busy reports whether a command is executing.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// LastActivity returns the time of the last input.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Attach marks the session as connected to a terminal.
func (s *Session) Attach() error {
	if !s.attached.CompareAndSwap(false, true) {
		return ErrAlreadyAttached
	}
	return nil
}

// Detach releases the terminal slot.
func (s *Session) Detach() {
	s.attached.Store(false)
}

// Greet sends the banner followed by READY.
func (s *Session) Greet(prompts *shared.PromptManager) {
	s.send(shared.Message{Type: shared.MessageTypeSession, SessionID: s.ID})
	if prompts != nil {
		banner, err := prompts.Banner(s.ID, s.basic.Program().Len())
		if err != nil {
			logger.Error(logger.AreaSession, "banner for %s: %v", s.ID, err)
		} else {
			s.sendText(strings.TrimRight(banner, "\n"))
		}
	}
	s.sendText(shared.ReadyPrompt)
}

// Submit handles one line from the terminal. A program waiting on INPUT
// receives the line; otherwise it is queued as the next command.
func (s *Session) Submit(line string) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.touch()

	if s.awaiting.Load() {
		if !s.input.Push(line) {
			return ErrInputQueueFull
		}
		return nil
	}

	s.pending.Add(1)
	select {
	case s.commands <- line:
		return nil
	default:
		s.pending.Done()
		return ErrInputQueueFull
	}
}

func (s *Session) worker() {
	for {
		select {
		case line := <-s.commands:
			s.execute(line)
			s.pending.Done()
		case <-s.done:
			s.dropQueued()
			return
		}
	}
}

// dropQueued verwirft Befehle, die noch nicht gestartet wurden
func (s *Session) dropQueued() {
	for {
		select {
		case <-s.commands:
			s.pending.Done()
		default:
			return
		}
	}
}

func (s *Session) execute(line string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()
	s.input.Drain()
	s.busy.Store(true)
	s.send(shared.Message{Type: shared.MessageTypeInputControl, Content: shared.InputControlDisable, InputEnabled: shared.BoolPtr(false)})

	if err := s.basic.SubmitLineContext(ctx, line); err != nil {
		logger.SessionDebug("[%s] %v", s.ID, err)
	}

	s.mu.Lock()
	s.cancelRun = nil
	s.mu.Unlock()
	s.input.Drain()
	s.busy.Store(false)

	// gespeicherte Programmzeilen bekommen kein READY
	if !tinybasic.IsProgramLine(line) {
		s.sendText(shared.ReadyPrompt)
	}
	s.send(shared.Message{Type: shared.MessageTypeInputControl, Content: shared.InputControlEnable, InputEnabled: shared.BoolPtr(true)})
}

// Break stops the running command and drops queued ones. A program waiting
// on INPUT is woken.
func (s *Session) Break() {
	s.touch()
	s.dropQueued()

	s.mu.Lock()
	cancel := s.cancelRun
	if cancel != nil {
		cancel()
		s.input.Interrupt()
	}
	s.mu.Unlock()

	if cancel != nil {
		logger.SessionInfo("break requested for session %s", s.ID)
	}
}

// Wait blocks until every submitted command has finished.
func (s *Session) Wait() {
	s.pending.Wait()
}

// Close stops the session and releases the output channel's writers.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Break()
		close(s.done)
		s.input.Close()
	})
}

func (s *Session) sendText(text string) {
	s.send(shared.Message{Type: shared.MessageTypeText, Content: text, SessionID: s.ID})
}

func (s *Session) send(msg shared.Message) {
	select {
	case s.output <- msg:
	case <-s.done:
	}
}
