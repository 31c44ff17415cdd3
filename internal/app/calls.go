package app

import (
	"errors"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrCallExists = errors.New("call already exists")

// CallRegistry holds live calls keyed by id, with a per-user index so a
// disconnect finds its calls without a scan.
//
// Not safe for concurrent use: owned by the dispatcher.
type CallRegistry struct {
	calls  map[domain.CallID]*domain.Call
	byUser map[domain.UserID]map[domain.CallID]struct{}
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{
		calls:  make(map[domain.CallID]*domain.Call),
		byUser: make(map[domain.UserID]map[domain.CallID]struct{}),
	}
}

func (r *CallRegistry) Add(c *domain.Call) error {
	if _, ok := r.calls[c.ID]; ok {
		return ErrCallExists
	}
	r.calls[c.ID] = c
	r.index(c.CallerID, c.ID)
	r.index(c.ReceiverID, c.ID)
	log.Debug().Str("module", "app.calls").Str("call", string(c.ID)).
		Str("caller", string(c.CallerID)).Str("receiver", string(c.ReceiverID)).Msg("call added")
	return nil
}

func (r *CallRegistry) Get(id domain.CallID) (*domain.Call, bool) {
	c, ok := r.calls[id]
	return c, ok
}

func (r *CallRegistry) Remove(id domain.CallID) (*domain.Call, bool) {
	c, ok := r.calls[id]
	if !ok {
		return nil, false
	}
	delete(r.calls, id)
	r.unindex(c.CallerID, id)
	r.unindex(c.ReceiverID, id)
	log.Debug().Str("module", "app.calls").Str("call", string(id)).Str("status", string(c.Status)).Msg("call removed")
	return c, true
}

// OfUser returns the calls naming u as caller or receiver.
func (r *CallRegistry) OfUser(u domain.UserID) []*domain.Call {
	ids := r.byUser[u]
	out := make([]*domain.Call, 0, len(ids))
	for id := range ids {
		out = append(out, r.calls[id])
	}
	return out
}

func (r *CallRegistry) Len() int { return len(r.calls) }

func (r *CallRegistry) index(u domain.UserID, id domain.CallID) {
	set, ok := r.byUser[u]
	if !ok {
		set = make(map[domain.CallID]struct{})
		r.byUser[u] = set
	}
	set[id] = struct{}{}
}

func (r *CallRegistry) unindex(u domain.UserID, id domain.CallID) {
	set, ok := r.byUser[u]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byUser, u)
	}
}
