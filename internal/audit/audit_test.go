package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects entries for assertions.
type recordingSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *recordingSink) Emit(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func TestLoggerRecordsEntries(t *testing.T) {
	sink := &recordingSink{}
	logger := NewLogger(16, sink)

	logger.Record(Entry{
		EventType:     EventAuthentication,
		SubjectID:     "subject-1",
		SourceAddress: "10.0.0.1",
		Resource:      "/auth/login",
		Action:        "login",
		Outcome:       OutcomeSuccess,
	})
	logger.Close()

	entries := sink.all()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, EventAuthentication, entry.EventType)
	assert.Equal(t, OutcomeSuccess, entry.Outcome)
}

func TestLoggerPreservesOrder(t *testing.T) {
	sink := &recordingSink{}
	logger := NewLogger(64, sink)

	for i := 0; i < 10; i++ {
		logger.Record(Entry{
			EventType: EventRateLimit,
			Action:    "consume",
			Outcome:   OutcomeDenied,
			Details:   map[string]string{"seq": string(rune('a' + i))},
		})
	}
	logger.Close()

	entries := sink.all()
	require.Len(t, entries, 10)
	for i, entry := range entries {
		assert.Equal(t, string(rune('a'+i)), entry.Details["seq"])
	}
}

func TestLoggerDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}
	logger := NewLogger(1, sink)

	// First entry occupies the drain goroutine, second fills the buffer,
	// the rest must be dropped without blocking.
	for i := 0; i < 10; i++ {
		logger.Record(Entry{EventType: EventAuthentication, Outcome: OutcomeFailure})
	}
	assert.Greater(t, logger.Dropped(), uint64(0))

	close(block)
	logger.Close()
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(Entry) {
	<-s.release
}

func TestLoggerRecordAfterCloseIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	logger := NewLogger(4, sink)
	logger.Close()

	assert.NotPanics(t, func() {
		logger.Record(Entry{EventType: EventRevocation, Outcome: OutcomeSuccess})
	})
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() {
		logger.Record(Entry{})
		logger.Close()
	})
	assert.Equal(t, uint64(0), logger.Dropped())
}

func TestLoggerCloseFlushesBuffer(t *testing.T) {
	sink := &recordingSink{}
	logger := NewLogger(128, sink)

	for i := 0; i < 50; i++ {
		logger.Record(Entry{EventType: EventAuthorization, Outcome: OutcomeDenied, Timestamp: time.Now()})
	}
	logger.Close()

	assert.Len(t, sink.all(), 50)
	assert.Equal(t, uint64(0), logger.Dropped())
}
