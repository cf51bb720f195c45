package usecase

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/satriahrh/irp-helper/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps every session of the process in memory. Sessions are
// never evicted.
type SessionStore struct {
	svc      *ChatService
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore(svc *ChatService) *SessionStore {
	return &SessionStore{svc: svc, sessions: make(map[string]*Session)}
}

// Open runs the onboarding gate for profile and registers the session only
// when the gate opens.
func (st *SessionStore) Open(profile domain.Profile) (*Session, error) {
	sess := st.svc.NewSession(uuid.NewString())
	if err := sess.Onboarding.SetName(profile.Name); err != nil {
		return nil, err
	}
	if err := sess.Onboarding.SelectGender(profile.Gender); err != nil {
		return nil, err
	}
	if err := sess.Onboarding.StartChat(); err != nil {
		return nil, err
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
