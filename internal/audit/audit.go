// Package audit records security-relevant events as immutable, append-only
// entries. Recording is fire-and-forget: a full buffer drops the entry rather
// than stalling or failing the request that triggered it.
package audit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a security event.
type EventType string

const (
	EventAuthentication EventType = "Authentication"
	EventAuthorization  EventType = "Authorization"
	EventRateLimit      EventType = "RateLimit"
	EventRevocation     EventType = "Revocation"
	EventSecurityAlert  EventType = "SecurityAlert"
)

// Outcome is the decision recorded with the event.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFailure Outcome = "Failure"
	OutcomeDenied  Outcome = "Denied"
)

// Entry is created once per event and never mutated or deleted by the
// application; retention is an external concern.
type Entry struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	EventType     EventType         `json:"event_type"`
	SubjectID     string            `json:"subject_id,omitempty"`
	SourceAddress string            `json:"source_address"`
	Resource      string            `json:"resource"`
	Action        string            `json:"action"`
	Outcome       Outcome           `json:"outcome"`
	Details       map[string]string `json:"details,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// Sink receives completed entries. Implementations must not panic; Emit is
// called from the single drain goroutine.
type Sink interface {
	Emit(entry Entry)
}

// Logger buffers entries through a channel drained by one goroutine, keeping
// entry order aligned with request order while never blocking the response
// path.
type Logger struct {
	sink    Sink
	ch      chan Entry
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// NewLogger starts the drain goroutine. A nil sink discards entries.
func NewLogger(bufferSize int, sink Sink) *Logger {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if sink == nil {
		sink = discardSink{}
	}

	l := &Logger{
		sink: sink,
		ch:   make(chan Entry, bufferSize),
		done: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Logger) run() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.ch:
			l.sink.Emit(entry)
		case <-l.done:
			// Drain what is already buffered, then stop.
			for {
				select {
				case entry := <-l.ch:
					l.sink.Emit(entry)
				default:
					return
				}
			}
		}
	}
}

// Record stamps the entry and enqueues it. Never blocks and never panics into
// the caller; entries offered after Close or into a full buffer are counted
// as dropped.
func (l *Logger) Record(entry Entry) {
	if l == nil || l.closed.Load() {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case l.ch <- entry:
	case <-l.done:
	default:
		l.dropped.Add(1)
	}
}

// Dropped reports how many entries were discarded due to backpressure.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes buffered entries and stops the drain goroutine.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
		l.wg.Wait()
	})
}

type discardSink struct{}

func (discardSink) Emit(Entry) {}
