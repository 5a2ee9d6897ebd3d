package session

import (
	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/domain"
)

// Event is one notification delivered to the host by Poll. The set of
// implementations is closed; hosts switch on the concrete type.
type Event interface {
	Kind() string
}

// Op names the operation an Error event originated from.
type Op string

const (
	OpConnect  Op = "connect"
	OpPublish  Op = "publish"
	OpChat     Op = "chat"
	OpMetadata Op = "metadata"
	OpInternal Op = "internal"
)

type RoomConnected struct{}

type RoomDisconnected struct{}

type ParticipantJoined struct {
	ID domain.ParticipantID
}

type ParticipantLeft struct {
	ID domain.ParticipantID
}

// AudioFrame is one decoded unit of a remote participant's audio.
type AudioFrame struct {
	ID      domain.ParticipantID
	Samples []audio.Stereo
}

type ChatMessage struct {
	Sender domain.ParticipantID
	Text   string
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64
}

// MetadataChanged reports a participant's new display name.
type MetadataChanged struct {
	ID       domain.ParticipantID
	Username string
}

type Error struct {
	Op      Op
	Message string
}

func (e Error) Error() string { return e.Message }

func (RoomConnected) Kind() string     { return "room_connected" }
func (RoomDisconnected) Kind() string  { return "room_disconnected" }
func (ParticipantJoined) Kind() string { return "participant_joined" }
func (ParticipantLeft) Kind() string   { return "participant_left" }
func (AudioFrame) Kind() string        { return "audio_frame" }
func (ChatMessage) Kind() string       { return "chat_message" }
func (MetadataChanged) Kind() string   { return "metadata_changed" }
func (Error) Kind() string             { return "error" }
