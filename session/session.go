// Package session keeps a bounded question and answer history per client.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/auditel/textproc"
)

const (
	// DefaultLimit is the number of turns kept per session.
	DefaultLimit = 10

	// headTurns are the earliest turns that survive trimming.
	headTurns = 2

	// MaxAnswerChars is the longest answer stored before truncation.
	MaxAnswerChars = 10000

	// TruncatedSuffix marks a truncated answer.
	TruncatedSuffix = "... [truncado]"
)

// Turn is one answered question.
type Turn struct {
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Category     string    `json:"auditoria"`
	Entity       string    `json:"ente"`
	Timestamp    time.Time `json:"timestamp"`
	TotalResults int       `json:"total_resultados"`
	WebResults   int       `json:"resultados_web"`
}

// Bound trims history to limit turns, keeping the first two and the most
// recent ones, and truncates oversized answers.
func Bound(history []Turn, limit int) []Turn {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(history) > limit {
		if limit > headTurns {
			tail := history[len(history)-(limit-headTurns):]
			history = append(append([]Turn{}, history[:headTurns]...), tail...)
		} else {
			history = append([]Turn{}, history[len(history)-limit:]...)
		}
	}
	for i := range history {
		history[i].Answer, _ = textproc.Truncate(history[i].Answer, MaxAnswerChars, TruncatedSuffix)
	}
	return history
}

// Store holds session histories by id.
type Store interface {
	// Get returns a copy of the history for id, oldest first.
	Get(id string) []Turn

	// Append adds turn to the history for id and returns the bounded history.
	Append(id string, turn Turn) []Turn

	// Clear forgets the history for id.
	Clear(id string)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	limit    int
	logger   *slog.Logger
}

var _ Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithLimit sets the number of turns kept per session.
// Default is 10.
func WithLimit(limit int) Option {
	return func(s *MemoryStore) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *MemoryStore) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string][]Turn),
		limit:    DefaultLimit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	return s
}

func (s *MemoryStore) Get(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn{}, s.sessions[id]...)
}

func (s *MemoryStore) Append(id string, turn Turn) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := Bound(append(s.sessions[id], turn), s.limit)
	s.sessions[id] = history
	s.logger.Debug("turn stored", "session", id, "turns", len(history))
	return append([]Turn{}, history...)
}

func (s *MemoryStore) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of sessions with history.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
