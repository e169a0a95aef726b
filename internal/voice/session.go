// Package voice runs speech recognition turns and speaks replies.
package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"voicetransit/internal/logger"
)

// Recognizer error codes
const (
	CodeNoSpeech   = "no-speech"
	CodeNotAllowed = "not-allowed"
	CodeNetwork    = "network"
	CodeAborted    = "aborted"
)

// ErrAlreadyListening is returned by Start while a run is active
var ErrAlreadyListening = errors.New("voice: session already listening")

// Recognizer yields final transcripts. Listen blocks until one utterance
// was recognized, the context ends or the source is exhausted (io.EOF).
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// RecognitionError is a recognizer failure identified by a code such as
// "network" or "no-speech"
type RecognitionError struct {
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil {
		return "recognition " + e.Code + ": " + e.Err.Error()
	}
	return "recognition " + e.Code
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// ErrorCode returns the recognizer code carried by err, or "" when err is
// not a recognition error
func ErrorCode(err error) string {
	var re *RecognitionError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// EventType identifies a session event
type EventType int

const (
	EventStart EventType = iota
	EventTranscript
	EventError
	EventEnd
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventTranscript:
		return "transcript"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is delivered on the channel returned by Session.Start
type Event struct {
	Type       EventType
	Transcript string
	Code       string // recognizer error code for EventError
	Err        error
}

// Option configures a Session
type Option func(*Session)

// WithContinuous keeps listening after a transcript until Stop is called
// or the recognizer is exhausted
func WithContinuous(continuous bool) Option {
	return func(s *Session) { s.continuous = continuous }
}

// WithRetry bounds how often a network failure is retried within one turn.
// A non-positive baseDelay keeps the default.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Session) {
		s.maxAttempts = maxAttempts
		s.baseDelay = baseDelay
	}
}

// WithLogger sets the session logger
func WithLogger(log *logger.Logger) Option {
	return func(s *Session) { s.log = log }
}

// Session is a caller-owned recognition session with an explicit
// Start/Stop lifecycle
type Session struct {
	recognizer  Recognizer
	continuous  bool
	maxAttempts int
	baseDelay   time.Duration
	log         *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

const defaultRetryDelay = 500 * time.Millisecond

// NewSession creates a session reading from recognizer
func NewSession(recognizer Recognizer, opts ...Option) *Session {
	s := &Session{
		recognizer:  recognizer,
		maxAttempts: 3,
		baseDelay:   defaultRetryDelay,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	if s.baseDelay <= 0 {
		s.baseDelay = defaultRetryDelay
	}
	return s
}

// Start begins a run. Events arrive on the returned channel, which is
// closed after EventEnd. Once the run is stopped, events the caller does
// not receive in time are dropped.
func (s *Session) Start(ctx context.Context) (<-chan Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil, ErrAlreadyListening
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	events := make(chan Event, 4)

	go s.run(runCtx, events, s.done)
	return events, nil
}

// Stop ends the current run and waits for it to finish. An interrupted
// turn ends without an error event.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Listening reports whether a run is active
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) run(ctx context.Context, events chan<- Event, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.cancel()
		s.cancel, s.done = nil, nil
		s.mu.Unlock()
		close(events)
		close(done)
	}()

	emit := func(ev Event) {
		select {
		case events <- ev:
			return
		default:
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	emit(Event{Type: EventStart})
	defer emit(Event{Type: EventEnd})

	heard := false
	for {
		text, err := s.listen(ctx)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				heard = true
				emit(Event{Type: EventTranscript, Transcript: text})
			}
			if !s.continuous {
				return
			}
			continue
		}

		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return
		}
		code := ErrorCode(err)
		switch {
		case code == CodeAborted:
			return
		case code == CodeNoSpeech && heard:
			// silence after an utterance is not a failure
			continue
		}

		s.log.Debug("recognition failed", "code", code, "error", err)
		emit(Event{Type: EventError, Code: code, Err: err})
		if !s.continuous || code == CodeNotAllowed {
			return
		}
	}
}

// listen runs one recognition turn, retrying network failures with
// exponential backoff
func (s *Session) listen(ctx context.Context) (string, error) {
	b := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewExponential(s.baseDelay))

	var text string
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		text, err = s.recognizer.Listen(ctx)
		if err != nil && ErrorCode(err) == CodeNetwork {
			s.log.Debug("retrying recognition after network error", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return text, err
}
