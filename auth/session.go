package auth

import (
	"context"
	"sync"
	"sync/atomic"
)

// SessionManager serializes the requests of each user. A request holds its
// user's session until it finishes or closes the session early.
type SessionManager struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	ch   chan struct{}
	refs int
}

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{locks: make(map[string]*userLock)}
}

// Begin waits for the user's session and acquires it.
func (m *SessionManager) Begin(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	l := m.locks[userID]
	if l == nil {
		l = &userLock{ch: make(chan struct{}, 1)}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(userID, l)
		return nil, ctx.Err()
	}

	s := &Session{userID: userID}
	s.release = func() {
		<-l.ch
		m.unref(userID, l)
	}
	return s, nil
}

func (m *SessionManager) unref(userID string, l *userLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, userID)
	}
}

// Active returns the number of users with a pending or held session.
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Session is the per-request lock on a user's state.
type Session struct {
	userID  string
	closed  atomic.Bool
	once    sync.Once
	release func()
}

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// Close releases the session. Further calls are no-ops.
func (s *Session) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.release != nil {
			s.release()
		}
	})
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool { return s.closed.Load() }
