package session

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"souls/internal/apperr"
)

// Registry maps room ids to live sessions. Operations on different rooms
// never wait on each other.
type Registry struct {
	sessions *xsync.MapOf[string, *Session]
}

func NewRegistry() *Registry {
	return &Registry{sessions: xsync.NewMapOf[string, *Session]()}
}

// Register fails with AlreadyExists if roomID already has a session.
func (r *Registry) Register(roomID string, s *Session) error {
	if _, loaded := r.sessions.LoadOrStore(roomID, s); loaded {
		return apperr.New(apperr.AlreadyExists, "room %s already has a running session", roomID)
	}
	return nil
}

// Lookup returns the session for roomID. A session that has stopped is
// reported as SessionNotFound even if its entry has not been removed yet.
func (r *Registry) Lookup(roomID string) (*Session, error) {
	s, ok := r.sessions.Load(roomID)
	if !ok || s.stopped() {
		return nil, apperr.New(apperr.SessionNotFound, "no running session for room %s", roomID)
	}
	return s, nil
}

func (r *Registry) Unregister(roomID string) {
	r.sessions.Delete(roomID)
}

// remove deletes the entry only while it still points at s.
func (r *Registry) remove(roomID string, s *Session) {
	r.sessions.Compute(roomID, func(old *Session, loaded bool) (*Session, bool) {
		// Asking to delete an absent key keeps it absent instead of storing nil.
		return old, !loaded || old == s
	})
}

// Stale lists rooms whose entry points at a session that has stopped.
// Stop leaves the registry before it reports done, so any entry listed
// here was leaked.
func (r *Registry) Stale() []string {
	var rooms []string
	r.sessions.Range(func(roomID string, s *Session) bool {
		if s.stopped() {
			rooms = append(rooms, roomID)
		}
		return true
	})
	sort.Strings(rooms)
	return rooms
}

func (r *Registry) Len() int {
	return r.sessions.Size()
}

func (r *Registry) Range(f func(roomID string, s *Session) bool) {
	r.sessions.Range(f)
}
