// Package session keeps per-session chat state in memory: the message
// history and the extracted transaction currently awaiting confirmation.
// State is process-local and lost on restart; the backing spreadsheet is
// the only durable store.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/smart-finance-tracker/internal/extract"
)

// Role identifies who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message in a session.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the state of one chat conversation. Within a session there is
// exactly one in-flight transaction at a time.
type Session struct {
	ID        string           `json:"id"`
	Messages  []Message        `json:"messages"`
	Current   extract.FieldMap `json:"current,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store is an in-memory session store, safe for concurrent use across
// sessions. Each session has a single writer by construction.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session and returns a copy of it.
func (s *Store) Create() Session {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return copySession(sess)
}

// Get retrieves a session by ID.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session not found: %s", id)
	}
	return copySession(sess), nil
}

// AppendMessage adds a chat message to the session history.
func (s *Store) AppendMessage(id string, role Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Messages = append(sess.Messages, Message{
		Role:    role,
		Content: content,
		At:      time.Now(),
	})
	sess.UpdatedAt = time.Now()
	return nil
}

// SetCurrent stores the extracted transaction awaiting confirmation.
func (s *Store) SetCurrent(id string, fields extract.FieldMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Current = copyFields(fields)
	sess.UpdatedAt = time.Now()
	return nil
}

// Current returns the transaction awaiting confirmation, if any.
func (s *Store) Current(id string) (extract.FieldMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if sess.Current == nil {
		return nil, fmt.Errorf("session %s has no transaction awaiting confirmation", id)
	}
	return copyFields(sess.Current), nil
}

// ClearCurrent drops the in-flight transaction after it was saved or
// abandoned.
func (s *Store) ClearCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}

	sess.Current = nil
	sess.UpdatedAt = time.Now()
	return nil
}

// copySession returns a defensive copy so callers cannot mutate stored
// state.
func copySession(sess *Session) Session {
	out := *sess
	out.Messages = append([]Message(nil), sess.Messages...)
	out.Current = copyFields(sess.Current)
	return out
}

func copyFields(fields extract.FieldMap) extract.FieldMap {
	if fields == nil {
		return nil
	}
	out := make(extract.FieldMap, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
