package core

import (
	"time"

	"github.com/dkeye/voicelink/internal/domain"
)

// RoomEvent is one notification from the room transport.
type RoomEvent interface {
	roomEvent()
}

type ParticipantConnected struct {
	Participant domain.Participant
}

type ParticipantDisconnected struct {
	Participant domain.Participant
}

// TrackSubscribed reports a remote audio track now flowing to us.
type TrackSubscribed struct {
	Participant domain.Participant
	Track       RemoteAudioTrack
}

// ChatReceived carries a chat message. Sender is nil when the room could not
// attribute the message to a participant.
type ChatReceived struct {
	Sender    *domain.Participant
	Text      string
	Timestamp time.Time
}

type MetadataChanged struct {
	Participant domain.Participant
	Metadata    string
}

func (ParticipantConnected) roomEvent()    {}
func (ParticipantDisconnected) roomEvent() {}
func (TrackSubscribed) roomEvent()         {}
func (ChatReceived) roomEvent()            {}
func (MetadataChanged) roomEvent()         {}
