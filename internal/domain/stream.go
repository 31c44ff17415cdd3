package domain

import (
	"time"

	"github.com/google/uuid"
)

type StreamID string

func NewStreamID() StreamID { return StreamID(uuid.NewString()) }

// LiveStream is a one-to-many broadcast. Viewers are anonymous connections,
// each with its own peer link negotiated by the host.
type LiveStream struct {
	ID         StreamID
	HostUserID UserID
	HostConnID ConnID
	Title      string
	StartedAt  time.Time
	Viewers    map[ConnID]struct{}
}

func NewLiveStream(id StreamID, host UserID, hostConn ConnID, title string, now time.Time) *LiveStream {
	return &LiveStream{
		ID:         id,
		HostUserID: host,
		HostConnID: hostConn,
		Title:      title,
		StartedAt:  now,
		Viewers:    make(map[ConnID]struct{}),
	}
}

func (s *LiveStream) HasViewer(c ConnID) bool {
	_, ok := s.Viewers[c]
	return ok
}

// StreamInfo is the directory view of a stream.
type StreamInfo struct {
	ID          StreamID  `json:"streamId"`
	Title       string    `json:"title"`
	HostUserID  UserID    `json:"hostUserId"`
	StartedAt   time.Time `json:"startedAt"`
	ViewerCount int       `json:"viewerCount"`
}

func (s *LiveStream) Info() StreamInfo {
	return StreamInfo{
		ID:          s.ID,
		Title:       s.Title,
		HostUserID:  s.HostUserID,
		StartedAt:   s.StartedAt,
		ViewerCount: len(s.Viewers),
	}
}
