package enroll

import (
	"sync"
	"time"
)

// loginAttempt is the mutable state of one user's in-progress login. At
// most one exists per user; terminal outcomes remove it rather than mark
// it. The entry exclusively owns its network connection through conn.
type loginAttempt struct {
	ID               string
	UserID           string
	Phase            LoginPhase
	Phone            string
	Country          string
	CodeToken        string
	PasswordFailures int
	CreatedAt        time.Time
	conn             *clientConn
}

// loginAttemptStore maps user IDs to in-progress attempts. Individual
// operations are atomic; read-modify-write sequences are made safe by the
// bridge's per-user serialization, which guarantees no two events for the
// same user are in flight at once.
//
// Entries live in process memory, not Redis, because each one owns a live
// network connection handle that cannot be serialized.
type loginAttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*loginAttempt
}

func newLoginAttemptStore() *loginAttemptStore {
	return &loginAttemptStore{
		attempts: make(map[string]*loginAttempt),
	}
}

func (s *loginAttemptStore) get(userID string) *loginAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts[userID]
}

func (s *loginAttemptStore) put(att *loginAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[att.UserID] = att
}

// remove deletes and returns the user's attempt, nil when none exists.
func (s *loginAttemptStore) remove(userID string) *loginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	att := s.attempts[userID]
	delete(s.attempts, userID)
	return att
}

func (s *loginAttemptStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// staleUserIDs lists users whose attempts started before cutoff. Callers
// still go through the bridge per user before touching the entries.
func (s *loginAttemptStore) staleUserIDs(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for userID, att := range s.attempts {
		if att.CreatedAt.Before(cutoff) {
			ids = append(ids, userID)
		}
	}
	return ids
}
