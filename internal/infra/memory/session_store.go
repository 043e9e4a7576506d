package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/simonbarrel6/aakora/internal/domain"
	"github.com/simonbarrel6/aakora/internal/domain/model"
	"github.com/simonbarrel6/aakora/internal/domain/ports/repository"
	"github.com/simonbarrel6/aakora/internal/infra/metrics"
)

var (
	_ repository.SessionStore   = (*SessionStore)(nil)
	_ repository.SessionSweeper = (*SessionStore)(nil)
)

// SessionStore keeps sessions in a process local map. Values are copied on the
// way in and out so no caller shares a session with the store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*model.Session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*model.Session), now: time.Now}
}

func (s *SessionStore) Get(_ context.Context, userID int64) (*model.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	if ok {
		// MergeFields writes Fields in place, so the copy is taken under the lock.
		sess = sess.Clone()
	}
	s.mu.RUnlock()
	metrics.IncSessionLookup("memory", ok)
	if !ok {
		return model.NewSession(userID), nil
	}
	return sess, nil
}

func (s *SessionStore) Put(_ context.Context, userID int64, sess *model.Session) error {
	if sess == nil || sess.State == model.StateNone {
		if sess != nil && len(sess.Fields) > 0 {
			return fmt.Errorf("%w: idle session with %d field(s)", domain.ErrInvariant, len(sess.Fields))
		}
		s.delete(userID)
		return nil
	}
	if !sess.State.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrInvariant, sess.State)
	}
	cp := sess.Clone()
	cp.UserID = userID
	if cp.Fields == nil {
		cp.Fields = model.Fields{}
	}
	cp.UpdatedAt = s.now()

	s.mu.Lock()
	s.sessions[userID] = cp
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
	return nil
}

func (s *SessionStore) Clear(_ context.Context, userID int64) error {
	s.delete(userID)
	return nil
}

func (s *SessionStore) MergeFields(_ context.Context, userID int64, partial model.Fields) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, fmt.Errorf("%w: merge into idle session", domain.ErrInvariant)
	}
	for k, v := range partial {
		sess.Fields[k] = v
	}
	sess.UpdatedAt = s.now()
	return sess.Clone(), nil
}

// Sweep drops sessions idle for longer than idle and returns how many went.
func (s *SessionStore) Sweep(_ context.Context, idle time.Duration) (int, error) {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
	return removed, nil
}

// Len reports the number of active sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) delete(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	n := len(s.sessions)
	s.mu.Unlock()
	metrics.SetSessionsActive(n)
}
