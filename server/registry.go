package server

import (
	"net"
	"sort"
	"sync"
)

// session is the per-connection state. username stays empty until a
// LOGIN succeeds on the connection.
type session struct {
	conn     net.Conn
	remote   string
	username string
}

// registry tracks live sessions and which usernames currently have an
// open, authenticated connection. All access goes through one mutex.
type registry struct {
	mu       sync.Mutex
	sessions map[*session]struct{}
	byUser   map[string]*session
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[*session]struct{}),
		byUser:   make(map[string]*session),
	}
}

func (r *registry) add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s] = struct{}{}
}

// bind associates a username with the session. A later login on the
// same connection, or the same username on another connection, rebinds
// presence to the most recent login.
func (r *registry) bind(s *session, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.username != "" && r.byUser[s.username] == s {
		delete(r.byUser, s.username)
	}
	s.username = username
	r.byUser[username] = s
}

func (r *registry) remove(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
	if s.username != "" && r.byUser[s.username] == s {
		delete(r.byUser, s.username)
	}
}

func (r *registry) online(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byUser[username]
	return ok
}

func (r *registry) snapshot() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions := make([]*session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// stats returns the number of open connections and the sorted list of
// usernames currently online.
func (r *registry) stats() (int, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return len(r.sessions), users
}
