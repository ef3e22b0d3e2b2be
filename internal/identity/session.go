package identity

import (
	"sync"
	"time"
)

// Session is the per-sign-in context passed to Sync. It remembers whether
// the daily login was already credited so redundant syncs are no-ops.
type Session struct {
	ID        string
	CreatedAt time.Time

	// mu serializes Sync calls on one session, including the persist.
	mu        sync.Mutex
	principal Principal
	credited  string // owner credited for the daily login in this session
}

func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, CreatedAt: now.UTC(), principal: Unauthenticated{}}
}

func (s *Session) Principal() Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal
}

// DailyLoginCredited reports whether owner's daily login was credited in
// this session.
func (s *Session) DailyLoginCredited(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credited != "" && s.credited == owner
}

// setPrincipal must be called with mu held. Switching owners clears the flag.
func (s *Session) setPrincipal(p Principal) {
	prev, _ := OwnerKey(s.principal)
	next, _ := OwnerKey(p)
	if prev != next {
		s.credited = ""
	}
	s.principal = p
}
