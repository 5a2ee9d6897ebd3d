package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/codec"
)

const (
	// PlaybackRate is the rate remote audio is decoded at.
	PlaybackRate = 48000

	rtpBufferSize        = 1500
	maxConsecutiveErrors = 50
	frameDuration        = time.Second / audio.FramesPerSecond
)

// LocalAudioTrack encodes 10ms mono frames to Opus and sends them as samples.
type LocalAudioTrack struct {
	track *webrtc.TrackLocalStaticSample

	mu  sync.Mutex
	enc *codec.Encoder
}

// NewLocalAudioTrack creates a track in stream streamID. The stream ID is how
// the server attributes the track to us.
func NewLocalAudioTrack(name, streamID string, sampleRate int) (*LocalAudioTrack, error) {
	enc, err := codec.NewEncoder(sampleRate)
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(opusCapability, name+"-"+uuid.NewString(), streamID)
	if err != nil {
		return nil, fmt.Errorf("create local audio track: %w", err)
	}
	return &LocalAudioTrack{track: track, enc: enc}, nil
}

func (t *LocalAudioTrack) Track() webrtc.TrackLocal { return t.track }

func (t *LocalAudioTrack) SampleRate() int { return t.enc.SampleRate() }

func (t *LocalAudioTrack) WriteFrame(pcm []int16) error {
	t.mu.Lock()
	packet, err := t.enc.Encode(pcm)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.track.WriteSample(media.Sample{Data: packet, Duration: frameDuration})
}

// RemoteAudioTrack decodes a remote Opus track to mono PCM16 at PlaybackRate.
type RemoteAudioTrack struct {
	track *webrtc.TrackRemote
	dec   *codec.Decoder
	buf   []byte
}

func NewRemoteAudioTrack(track *webrtc.TrackRemote) (*RemoteAudioTrack, error) {
	if mime := track.Codec().MimeType; mime != webrtc.MimeTypeOpus {
		return nil, fmt.Errorf("unsupported codec %q", mime)
	}
	dec, err := codec.NewDecoder(PlaybackRate)
	if err != nil {
		return nil, err
	}
	return &RemoteAudioTrack{track: track, dec: dec, buf: make([]byte, rtpBufferSize)}, nil
}

func (t *RemoteAudioTrack) ID() string { return t.track.ID() }

// ReadFrame returns the next decoded packet. Undecodable packets are skipped.
func (t *RemoteAudioTrack) ReadFrame(ctx context.Context) ([]int16, error) {
	stop := context.AfterFunc(ctx, func() { _ = t.track.SetReadDeadline(time.Now()) })
	defer stop()

	consecutiveErrors := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, _, err := t.track.Read(t.buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			consecutiveErrors++
			if consecutiveErrors >= maxConsecutiveErrors {
				return nil, fmt.Errorf("read remote track: %w", err)
			}
			continue
		}
		consecutiveErrors = 0

		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(t.buf[:n]); err != nil || len(pkt.Payload) == 0 {
			continue
		}
		pcm, err := t.dec.Decode(pkt.Payload)
		if err != nil {
			continue
		}
		return pcm, nil
	}
}
