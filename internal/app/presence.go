package app

import (
	"slices"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionEntry pairs a session with its transport endpoint.
type SessionEntry struct {
	domain.Session
	Conn core.SignalConnection
}

// PresenceRegistry is the single source of truth for who is connected.
// A user has at most one current session (last connection wins); superseded
// connections stay addressable by connection id until they disconnect.
//
// Not safe for concurrent use: owned by the dispatcher.
type PresenceRegistry struct {
	byUser map[domain.UserID]*SessionEntry
	byConn map[domain.ConnID]*SessionEntry
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[domain.UserID]*SessionEntry),
		byConn: make(map[domain.ConnID]*SessionEntry),
	}
}

// Add makes s the current session of its user and returns the session it
// superseded, if any.
func (r *PresenceRegistry) Add(s domain.Session, conn core.SignalConnection) *SessionEntry {
	e := &SessionEntry{Session: s, Conn: conn}
	prev := r.byUser[s.UserID]
	r.byUser[s.UserID] = e
	r.byConn[s.ConnID] = e
	if prev != nil {
		log.Info().Str("module", "app.presence").Str("user", string(s.UserID)).
			Str("conn", string(s.ConnID)).Str("superseded", string(prev.ConnID)).Msg("session replaced")
	} else {
		log.Info().Str("module", "app.presence").Str("user", string(s.UserID)).
			Str("conn", string(s.ConnID)).Msg("session added")
	}
	return prev
}

// Remove forgets a connection. wentOffline is true only when it was the
// user's current session.
func (r *PresenceRegistry) Remove(connID domain.ConnID) (e *SessionEntry, wentOffline bool) {
	e, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	if cur, ok := r.byUser[e.UserID]; ok && cur.ConnID == connID {
		delete(r.byUser, e.UserID)
		wentOffline = true
	}
	log.Info().Str("module", "app.presence").Str("user", string(e.UserID)).
		Str("conn", string(connID)).Bool("offline", wentOffline).Msg("session removed")
	return e, wentOffline
}

func (r *PresenceRegistry) IsOnline(u domain.UserID) bool {
	_, ok := r.byUser[u]
	return ok
}

// Session returns the current session of u.
func (r *PresenceRegistry) Session(u domain.UserID) (*SessionEntry, bool) {
	e, ok := r.byUser[u]
	return e, ok
}

func (r *PresenceRegistry) Conn(c domain.ConnID) (*SessionEntry, bool) {
	e, ok := r.byConn[c]
	return e, ok
}

// Online returns the online user ids in lexical order.
func (r *PresenceRegistry) Online() []domain.UserID {
	out := make([]domain.UserID, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	slices.Sort(out)
	return out
}

// Conns returns every open connection, current or superseded.
func (r *PresenceRegistry) Conns() []*SessionEntry {
	out := make([]*SessionEntry, 0, len(r.byConn))
	for _, e := range r.byConn {
		out = append(out, e)
	}
	return out
}

func (r *PresenceRegistry) UserCount() int { return len(r.byUser) }
func (r *PresenceRegistry) ConnCount() int { return len(r.byConn) }
