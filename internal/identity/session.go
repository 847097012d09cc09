package identity

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// SessionListener is told when a user signs in or out.
type SessionListener interface {
	SessionStarted(ctx context.Context, p Principal)
	SessionEnded(ctx context.Context, p Principal)
}

// Sessions fans session changes out to registered listeners.  The owner
// registers listeners and must call the returned function to stop
// receiving notifications.
type Sessions struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]SessionListener
}

func NewSessions() *Sessions {
	return &Sessions{listeners: make(map[int]SessionListener)}
}

// Subscribe registers l and returns its unsubscribe function.
func (s *Sessions) Subscribe(l SessionListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.listeners[id] = l
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Sessions) Started(ctx context.Context, p Principal) {
	for _, l := range s.snapshot() {
		l.SessionStarted(ctx, p)
	}
}

func (s *Sessions) Ended(ctx context.Context, p Principal) {
	for _, l := range s.snapshot() {
		l.SessionEnded(ctx, p)
	}
}

func (s *Sessions) snapshot() []SessionListener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SessionListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

// LogListener writes session changes to the application log.
type LogListener struct{}

func (LogListener) SessionStarted(_ context.Context, p Principal) {
	log.WithFields(log.Fields{"user_id": p.UserID, "role": p.Role}).Info("session started")
}

func (LogListener) SessionEnded(_ context.Context, p Principal) {
	log.WithField("user_id", p.UserID).Info("session ended")
}
