package app

import (
	"cmp"
	"slices"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

type streamSet map[domain.StreamID]struct{}

// StreamRegistry holds live broadcasts keyed by id. Two connection indexes
// (hosting, watching) keep disconnect cleanup proportional to what the
// connection touched.
//
// Not safe for concurrent use: owned by the dispatcher.
type StreamRegistry struct {
	streams  map[domain.StreamID]*domain.LiveStream
	hosting  map[domain.ConnID]streamSet
	watching map[domain.ConnID]streamSet
}

func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{
		streams:  make(map[domain.StreamID]*domain.LiveStream),
		hosting:  make(map[domain.ConnID]streamSet),
		watching: make(map[domain.ConnID]streamSet),
	}
}

func (r *StreamRegistry) Add(s *domain.LiveStream) {
	r.streams[s.ID] = s
	add(r.hosting, s.HostConnID, s.ID)
	log.Info().Str("module", "app.streams").Str("stream", string(s.ID)).
		Str("host", string(s.HostUserID)).Str("title", s.Title).Msg("stream started")
}

func (r *StreamRegistry) Get(id domain.StreamID) (*domain.LiveStream, bool) {
	s, ok := r.streams[id]
	return s, ok
}

// Remove deletes a stream and every index entry pointing at it. The removed
// stream keeps its viewer set so the caller can notify them.
func (r *StreamRegistry) Remove(id domain.StreamID) (*domain.LiveStream, bool) {
	s, ok := r.streams[id]
	if !ok {
		return nil, false
	}
	delete(r.streams, id)
	del(r.hosting, s.HostConnID, id)
	for v := range s.Viewers {
		del(r.watching, v, id)
	}
	log.Info().Str("module", "app.streams").Str("stream", string(id)).Int("viewers", len(s.Viewers)).Msg("stream removed")
	return s, true
}

// AddViewer reports false when the stream is unknown or the viewer is
// already present.
func (r *StreamRegistry) AddViewer(id domain.StreamID, viewer domain.ConnID) bool {
	s, ok := r.streams[id]
	if !ok || s.HasViewer(viewer) {
		return false
	}
	s.Viewers[viewer] = struct{}{}
	add(r.watching, viewer, id)
	return true
}

func (r *StreamRegistry) RemoveViewer(id domain.StreamID, viewer domain.ConnID) bool {
	s, ok := r.streams[id]
	if !ok || !s.HasViewer(viewer) {
		return false
	}
	delete(s.Viewers, viewer)
	del(r.watching, viewer, id)
	return true
}

func (r *StreamRegistry) HostedBy(c domain.ConnID) []domain.StreamID { return keys(r.hosting[c]) }
func (r *StreamRegistry) WatchedBy(c domain.ConnID) []domain.StreamID { return keys(r.watching[c]) }

// List is a point-in-time directory ordered by start time.
func (r *StreamRegistry) List() []domain.StreamInfo {
	out := make([]domain.StreamInfo, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s.Info())
	}
	slices.SortFunc(out, func(a, b domain.StreamInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r *StreamRegistry) Len() int { return len(r.streams) }

func (r *StreamRegistry) ViewerCount() int {
	n := 0
	for _, s := range r.streams {
		n += len(s.Viewers)
	}
	return n
}

func add(idx map[domain.ConnID]streamSet, c domain.ConnID, id domain.StreamID) {
	set, ok := idx[c]
	if !ok {
		set = make(streamSet)
		idx[c] = set
	}
	set[id] = struct{}{}
}

func del(idx map[domain.ConnID]streamSet, c domain.ConnID, id domain.StreamID) {
	set, ok := idx[c]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(idx, c)
	}
}

func keys(set streamSet) []domain.StreamID {
	out := make([]domain.StreamID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
