package agent

import "sync"

// Store maps call SIDs to conversation sessions. Membership is guarded by a
// read-write mutex; each session carries its own lock so mutation on one call
// never blocks another.
type Store struct {
	generator Generator
	settings  Settings

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore(generator Generator, settings Settings) *Store {
	if generator == nil {
		panic("agent: generator cannot be nil")
	}
	return &Store{
		generator: generator,
		settings:  settings,
		sessions:  make(map[string]*Session),
	}
}

// GetOrCreate returns the session for callID, creating an active one with an
// empty history if none exists.
func (st *Store) GetOrCreate(callID string) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[callID]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[callID]; ok {
		return sess
	}
	sess = newSession(callID, st.generator, st.settings)
	st.sessions[callID] = sess
	return sess
}

// Get returns the session for callID if one exists.
func (st *Store) Get(callID string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[callID]
	return sess, ok
}

// Remove evicts the session for callID. Removing an absent session is a no-op.
func (st *Store) Remove(callID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, callID)
}

// ActiveCount returns the number of registered sessions.
func (st *Store) ActiveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
