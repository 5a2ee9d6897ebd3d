package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the client side of a WebRTC peer connection to the room.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// CreateAndSetOffer starts a negotiation from our side.
	CreateAndSetOffer() (*webrtc.SessionDescription, error)
	// ApplyAnswer completes a negotiation we started.
	ApplyAnswer(webrtc.SessionDescription) error
	// ApplyOfferAndCreateAnswer handles a renegotiation started by the server.
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// AddLocalTrack attaches a local track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	// OnClosed sets a callback for cleanup media session.
	OnClosed(func())
}

// LocalAudioTrack accepts the local participant's microphone audio.
type LocalAudioTrack interface {
	// WriteFrame transmits one 10ms mono PCM16 frame.
	WriteFrame(pcm []int16) error
	SampleRate() int
}

// RemoteAudioTrack yields a remote participant's decoded audio.
type RemoteAudioTrack interface {
	ID() string
	// ReadFrame blocks until the next decoded mono PCM16 unit is available.
	// It returns io.EOF once the track has ended.
	ReadFrame(ctx context.Context) ([]int16, error)
}
