package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/adapters/rtc"
	"github.com/dkeye/voicelink/internal/adapters/signal"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
)

const eventBuffer = 64

// Room is one joined room over a signaling client and a peer connection.
type Room struct {
	sig     *signal.Client
	timeout time.Duration
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// evMu guards events against emits from pion callbacks after dispatch ends.
	evMu     sync.RWMutex
	events   chan core.RoomEvent
	evClosed bool

	joined  chan error
	answers chan webrtc.SessionDescription
	negMu   sync.Mutex

	mu       sync.Mutex
	pc       core.MediaConnection
	name     string
	self     domain.Participant
	initial  []domain.Participant
	members  map[domain.ParticipantID]domain.Participant
	isJoined bool

	// local candidates are held until the first offer is on the wire
	offerSent  bool
	candidates []webrtc.ICECandidateInit

	closeOnce sync.Once
}

var _ core.Room = (*Room)(nil)

func newRoom(sig *signal.Client, timeout time.Duration) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		sig:     sig,
		timeout: timeout,
		logger:  log.With().Str("module", "room").Logger(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		events:  make(chan core.RoomEvent, eventBuffer),
		joined:  make(chan error, 1),
		answers: make(chan webrtc.SessionDescription, 1),
		members: make(map[domain.ParticipantID]domain.Participant),
	}
}

func (r *Room) join(ctx context.Context, opts core.ConnectOptions, token string) error {
	var metadata string
	if opts.Name != "" {
		md, err := domain.EncodeUsernameMetadata(opts.Name)
		if err != nil {
			return err
		}
		metadata = md
	}
	if err := r.sig.Join(string(opts.Room), opts.Name, token, metadata); err != nil {
		return fmt.Errorf("send join: %w", err)
	}
	return r.awaitJoin(ctx)
}

func (r *Room) awaitJoin(ctx context.Context) error {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case err := <-r.joined:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrJoinTimeout
	case <-r.done:
		return ErrSignalingClosed
	}
}

func (r *Room) attachMedia(pc core.MediaConnection) {
	pc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		r.mu.Lock()
		if !r.offerSent {
			r.candidates = append(r.candidates, ci)
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
		r.sendCandidate(ci)
	})
	pc.OnTrack(r.onTrack)
	pc.OnClosed(func() {
		r.logger.Warn().Msg("media connection closed")
		r.cancel()
	})
	r.mu.Lock()
	r.pc = pc
	r.mu.Unlock()
}

func (r *Room) sendCandidate(ci webrtc.ICECandidateInit) {
	if err := r.sig.SendCandidate(ci); err != nil {
		r.logger.Warn().Err(err).Msg("send candidate")
	}
}

// flushCandidates sends candidates gathered before the server saw our offer.
func (r *Room) flushCandidates() {
	r.mu.Lock()
	r.offerSent = true
	pending := r.candidates
	r.candidates = nil
	r.mu.Unlock()
	for _, ci := range pending {
		r.sendCandidate(ci)
	}
}

func (r *Room) media() core.MediaConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pc
}

// negotiate sends a fresh offer and applies the server's answer. Calls are
// serialized.
func (r *Room) negotiate(ctx context.Context) error {
	r.negMu.Lock()
	defer r.negMu.Unlock()

	pc := r.media()
	offer, err := pc.CreateAndSetOffer()
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := r.sig.SendOffer(offer.SDP); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	r.flushCandidates()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case answer := <-r.answers:
		if err := pc.ApplyAnswer(answer); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrNegotiationStale
	case <-r.done:
		return ErrSignalingClosed
	}
}

func (r *Room) onTrack(_ context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	remote, err := rtc.NewRemoteAudioTrack(track)
	if err != nil {
		r.logger.Error().Err(err).Str("track_id", track.ID()).Msg("unusable remote track")
		return
	}
	p := r.member(domain.ParticipantID(track.StreamID()))
	r.emit(core.TrackSubscribed{Participant: p, Track: remote})
}

func (r *Room) member(id domain.ParticipantID) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.members[id]; ok {
		return p
	}
	return domain.Participant{ID: id}
}

func (r *Room) emit(ev core.RoomEvent) {
	r.evMu.RLock()
	defer r.evMu.RUnlock()
	if r.evClosed {
		return
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// closeEvents ends the event stream. The room is over once signaling stops,
// so the room context is cancelled first to release blocked emitters.
func (r *Room) closeEvents() {
	r.cancel()
	r.evMu.Lock()
	r.evClosed = true
	close(r.events)
	r.evMu.Unlock()
}

func (r *Room) LocalIdentity() domain.ParticipantID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self.ID
}

// RemoteParticipants lists who was present when we joined, in the order the
// server reported them.
func (r *Room) RemoteParticipants() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Participant(nil), r.initial...)
}

func (r *Room) PublishAudioTrack(ctx context.Context, opts core.TrackOptions) (core.LocalAudioTrack, error) {
	if opts.Channels != 1 {
		return nil, fmt.Errorf("only mono tracks are supported, got %d channels", opts.Channels)
	}
	track, err := rtc.NewLocalAudioTrack(opts.Name, string(r.LocalIdentity()), opts.SampleRate)
	if err != nil {
		return nil, err
	}
	if _, err := r.media().AddLocalTrack(track.Track()); err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	if err := r.negotiate(ctx); err != nil {
		return nil, err
	}
	r.logger.Info().Str("track", opts.Name).Int("sample_rate", opts.SampleRate).Msg("local audio published")
	return track, nil
}

func (r *Room) SendChatMessage(_ context.Context, text string) error {
	return r.sig.SendChat(text)
}

func (r *Room) SetMetadata(_ context.Context, metadata string) error {
	return r.sig.SendMetadata(metadata)
}

// Close leaves the room and releases the media and signaling connections.
func (r *Room) Close() error {
	r.closeOnce.Do(func() {
		if err := r.sig.Leave(); err != nil && !errors.Is(err, signal.ErrClosed) {
			r.logger.Warn().Err(err).Msg("leave")
		}
		if pc := r.media(); pc != nil {
			pc.Close()
		}
		r.sig.Close()
		r.cancel()
		<-r.done
	})
	return nil
}
