package core

import (
	"context"

	"github.com/dkeye/voicelink/internal/domain"
)

// ConnectOptions tune how a room connection is established.
type ConnectOptions struct {
	// Room is the room to join when the URL does not carry one.
	Room domain.RoomName
	// Name is the display name announced on join.
	Name string
	// AutoSubscribe asks the server to forward every remote track.
	AutoSubscribe bool
}

// TrackOptions describe the local audio track to publish.
type TrackOptions struct {
	Name       string
	SampleRate int
	Channels   int
}

// RoomConnector opens room connections. It is the boundary with the transport.
type RoomConnector interface {
	// Connect joins the room and returns the handle plus its event stream.
	// The stream is closed once the room connection has ended.
	Connect(ctx context.Context, url, token string, opts ConnectOptions) (Room, <-chan RoomEvent, error)
}

// Room is a live room connection.
type Room interface {
	LocalIdentity() domain.ParticipantID
	// RemoteParticipants lists participants already present, in the order
	// the server reported them.
	RemoteParticipants() []domain.Participant
	PublishAudioTrack(ctx context.Context, opts TrackOptions) (LocalAudioTrack, error)
	SendChatMessage(ctx context.Context, text string) error
	SetMetadata(ctx context.Context, metadata string) error
	Close() error
}
