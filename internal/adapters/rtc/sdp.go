package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

var (
	ErrBadPayload     = errors.New("malformed payload")
	ErrWrongSDPType   = errors.New("unexpected sdp type")
	ErrNoMediaSection = errors.New("sdp has no media section")
)

// Validator checks signaling payloads before they are relayed. The hub
// never terminates a peer connection; it only refuses garbage.
type Validator struct {
	// Strict parses SDP bodies and candidate lines. When false only the
	// JSON shape is checked.
	Strict bool
}

// Description checks a session description of the wanted type.
func (v Validator) Description(raw json.RawMessage, want webrtc.SDPType) error {
	if !json.Valid(raw) {
		return ErrBadPayload
	}
	if !v.Strict {
		return nil
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if desc.Type != want {
		return fmt.Errorf("%w: got %s, want %s", ErrWrongSDPType, desc.Type, want)
	}
	parsed, err := desc.Unmarshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return checkMedia(parsed)
}

func checkMedia(s *sdp.SessionDescription) error {
	if len(s.MediaDescriptions) == 0 {
		return ErrNoMediaSection
	}
	return nil
}

// Candidate checks an ICE candidate init. An empty candidate line is the
// end-of-candidates marker and is accepted.
func (v Validator) Candidate(raw json.RawMessage) error {
	if !json.Valid(raw) {
		return ErrBadPayload
	}
	if !v.Strict {
		return nil
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	line := strings.TrimPrefix(init.Candidate, "candidate:")
	if line == "" {
		return nil
	}
	if _, err := ice.UnmarshalCandidate(line); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return nil
}
