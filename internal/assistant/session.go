package assistant

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

var (
	ErrSessionNotFound = errors.New("assistant session not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLong  = errors.New("message too long")
)

// Message is one transcript entry. IDs are sequential within a session.
type Message struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Topic     string    `json:"topic,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a transcript snapshot.
type Session struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Messages       []Message `json:"messages"`
	QuickQuestions []string  `json:"quick_questions,omitempty"`
}

// Options configures a SessionStore.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	MaxMessageLen   int
	Logger          *slog.Logger
	Now             func() time.Time
}

// SessionStore keeps transcripts in an expiring in-memory cache. Every access
// extends the session's lifetime by TTL.
type SessionStore struct {
	cache  *cache.Cache
	ttl    time.Duration
	maxLen int
	logger *slog.Logger
	now    func() time.Time
}

// sessionEntry is the cached value. mu serializes writes to one transcript.
type sessionEntry struct {
	mu   sync.Mutex
	sess Session
}

// NewSessionStore creates a store. Zero options fall back to 30 minute
// sessions, 10 minute cleanup and 500 character messages.
func NewSessionStore(opts Options) *SessionStore {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 10 * time.Minute
	}
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = 500
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SessionStore{
		cache:  cache.New(opts.TTL, opts.CleanupInterval),
		ttl:    opts.TTL,
		maxLen: opts.MaxMessageLen,
		logger: opts.Logger.With(slog.String("component", "assistant")),
		now:    opts.Now,
	}
}

// Create starts a session holding the greeting.
func (s *SessionStore) Create() Session {
	now := s.now()
	e := &sessionEntry{sess: Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Messages: []Message{{
			ID:        1,
			Text:      Greeting,
			Sender:    SenderBot,
			Timestamp: now,
		}},
	}}
	out := snapshot(&e.sess)
	s.cache.Set(e.sess.ID, e, s.ttl)

	s.logger.Debug("assistant session created", slog.String("session_id", e.sess.ID))
	return out
}

// Get returns a copy of the session transcript.
func (s *SessionStore) Get(id string) (Session, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s.cache.Set(id, e, s.ttl)
	return snapshot(&e.sess), nil
}

// Ask appends the user's question and the answer to the session and returns both.
func (s *SessionStore) Ask(id, text string) (question, reply Message, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, Message{}, ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > s.maxLen {
		return Message{}, Message{}, fmt.Errorf("%w: %d characters, limit is %d", ErrMessageTooLong, n, s.maxLen)
	}

	e, ok := s.lookup(id)
	if !ok {
		return Message{}, Message{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	topic, answer := Match(text)
	now := s.now()
	next := len(e.sess.Messages) + 1

	question = Message{ID: next, Text: text, Sender: SenderUser, Timestamp: now}
	reply = Message{ID: next + 1, Text: answer, Sender: SenderBot, Topic: topic, Timestamp: now}
	e.sess.Messages = append(e.sess.Messages, question, reply)
	s.cache.Set(id, e, s.ttl)

	s.logger.Debug("assistant answered",
		slog.String("session_id", id),
		slog.String("topic", topic))
	return question, reply, nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	return s.cache.ItemCount()
}

// Flush drops every session.
func (s *SessionStore) Flush() {
	s.cache.Flush()
}

func (s *SessionStore) lookup(id string) (*sessionEntry, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*sessionEntry)
	return e, ok
}

func snapshot(sess *Session) Session {
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	if len(out.Messages) == 1 {
		out.QuickQuestions = QuickQuestions
	}
	return out
}
