package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
)

const localTrackName = "mic"

// task owns one room connection from dial to teardown.
type task struct {
	m      *Manager
	url    string
	token  string
	opts   core.ConnectOptions
	rate   int
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	// prev is closed once the task this one replaces has fully stopped.
	prev <-chan struct{}
	done chan struct{}

	outbound *Queue[[]float32]

	mu         sync.Mutex
	stopping   bool
	// noOutbound is set once no local track will ever consume outbound audio.
	noOutbound bool
	wg         sync.WaitGroup
}

func newTask(ctx context.Context, m *Manager, url, token string, opts core.ConnectOptions, rate int, prev <-chan struct{}) *task {
	ctx, cancel := context.WithCancel(ctx)
	return &task{
		m:        m,
		url:      url,
		token:    token,
		opts:     opts,
		rate:     rate,
		logger:   log.With().Str("module", "session").Str("url", url).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		prev:     prev,
		done:     make(chan struct{}),
		outbound: NewQueue[[]float32](),
	}
}

func (t *task) emit(ev Event) { t.m.emit(ev) }

func (t *task) run() {
	defer close(t.done)

	if t.prev != nil {
		<-t.prev
	}
	if t.ctx.Err() != nil {
		t.logger.Info().Msg("connect cancelled before dialing")
		return
	}

	t.m.state.Store(StateConnecting)
	t.m.metrics.ConnectAttempts.Inc()
	t.logger.Info().Msg("connecting")

	room, roomEvents, err := t.m.connector.Connect(t.ctx, t.url, t.token, t.opts)
	if err != nil {
		t.m.state.Store(StateIdle)
		if t.ctx.Err() != nil {
			t.logger.Info().Err(err).Msg("connect aborted by disconnect")
			return
		}
		t.cancel()
		t.m.metrics.ConnectFailures.Inc()
		t.logger.Error().Err(err).Msg("connect failed")
		t.emit(Error{Op: OpConnect, Message: fmt.Sprintf("Failed to connect: %v", err)})
		return
	}

	t.m.bindRoom(t, room)
	t.m.state.Store(StateConnected)
	t.m.metrics.Connected.Set(1)
	t.logger.Info().Str("identity", string(room.LocalIdentity())).Msg("connected")
	t.emit(RoomConnected{})

	for _, p := range room.RemoteParticipants() {
		t.emit(ParticipantJoined{ID: p.ID})
		t.emitUsername(p.ID, p.Metadata)
	}

	track, err := room.PublishAudioTrack(t.ctx, core.TrackOptions{
		Name:       localTrackName,
		SampleRate: t.rate,
		Channels:   1,
	})
	if err != nil {
		t.logger.Error().Err(err).Msg("publish local audio failed")
		t.closeOutbound()
		t.emit(Error{Op: OpPublish, Message: fmt.Sprintf("Failed to publish mic: %v", err)})
	} else {
		t.spawn("feed", func() { t.feed(track) })
	}

	t.loop(roomEvents)
	t.teardown(room)
}

// loop multiplexes room events with the disconnect signal. Whichever is
// ready first is handled.
func (t *task) loop(roomEvents <-chan core.RoomEvent) {
	for {
		select {
		case <-t.ctx.Done():
			t.logger.Info().Msg("disconnect requested, stopping room loop")
			return
		case ev, ok := <-roomEvents:
			if !ok {
				t.logger.Warn().Msg("room event stream closed")
				return
			}
			t.handle(ev)
		}
	}
}

func (t *task) handle(ev core.RoomEvent) {
	switch e := ev.(type) {
	case core.ParticipantConnected:
		t.emit(ParticipantJoined{ID: e.Participant.ID})
		t.emitUsername(e.Participant.ID, e.Participant.Metadata)
	case core.ParticipantDisconnected:
		t.emit(ParticipantLeft{ID: e.Participant.ID})
	case core.TrackSubscribed:
		id, track := e.Participant.ID, e.Track
		t.logger.Info().Str("participant", string(id)).Str("track_id", track.ID()).Msg("audio track subscribed")
		t.spawn("decode", func() { t.decode(id, track) })
	case core.ChatReceived:
		sender := domain.UnknownSender
		if e.Sender != nil {
			sender = e.Sender.ID
		}
		t.emit(ChatMessage{Sender: sender, Text: e.Text, Timestamp: e.Timestamp.UnixMilli()})
	case core.MetadataChanged:
		t.emitUsername(e.Participant.ID, e.Metadata)
	default:
		t.logger.Debug().Type("event", ev).Msg("ignoring room event")
	}
}

func (t *task) emitUsername(id domain.ParticipantID, metadata string) {
	username, ok := domain.UsernameFromMetadata(metadata)
	if !ok {
		if metadata != "" {
			t.logger.Debug().Str("participant", string(id)).Msg("metadata without username")
		}
		return
	}
	t.emit(MetadataChanged{ID: id, Username: username})
}

// decode forwards one remote track's audio until it ends or the session stops.
func (t *task) decode(id domain.ParticipantID, track core.RemoteAudioTrack) {
	t.m.metrics.ActiveTracks.Inc()
	defer t.m.metrics.ActiveTracks.Dec()

	logger := t.logger.With().Str("participant", string(id)).Str("track_id", track.ID()).Logger()
	for t.ctx.Err() == nil {
		pcm, err := track.ReadFrame(t.ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || t.ctx.Err() != nil {
				logger.Info().Msg("remote track ended")
			} else {
				logger.Error().Err(err).Msg("remote track read failed, stopping")
			}
			return
		}
		if len(pcm) == 0 {
			continue
		}
		t.m.framesDecoded.Add(1)
		t.m.metrics.FramesDecoded.Inc()
		t.emit(AudioFrame{ID: id, Samples: audio.PCM16ToStereo(pcm)})
	}
}

// feed turns host microphone chunks into 10ms frames on the local track.
func (t *task) feed(track core.LocalAudioTrack) {
	acc := audio.NewFrameAccumulator(audio.SamplesPer10ms(track.SampleRate()))
	var pcm []int16
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.outbound.Ready():
		}

		for _, chunk := range t.outbound.Drain() {
			pcm = audio.AppendFloatToPCM16(pcm[:0], chunk)
			for _, frame := range acc.Push(pcm) {
				if err := track.WriteFrame(frame); err != nil {
					t.m.framesFailed.Add(1)
					t.m.metrics.FramesFailed.Inc()
					t.logger.Error().Err(err).Msg("failed to capture audio frame")
					continue
				}
				t.m.framesSent.Add(1)
				t.m.metrics.FramesSent.Inc()
			}
		}
		t.m.pendingSamples.Store(int64(acc.Pending()))
		t.m.metrics.OutboundPendingSamples.Set(float64(acc.Pending()))
	}
}

// pushOutbound queues one mono chunk for the feeder. Chunks are dropped once
// the session has no local track.
func (t *task) pushOutbound(chunk []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.noOutbound || t.stopping {
		return
	}
	t.outbound.Push(chunk)
}

// closeOutbound drops queued audio and refuses further chunks.
func (t *task) closeOutbound() {
	t.mu.Lock()
	t.noOutbound = true
	t.mu.Unlock()
	t.outbound.Drain()
}

// spawn runs fn as a sub-task of this session. Sub-tasks are awaited on
// teardown; a panicking sub-task is reported instead of crashing the host.
func (t *task) spawn(name string, fn func()) bool {
	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return false
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error().Str("subtask", name).Interface("panic", r).Msg("sub-task crashed")
				t.emit(Error{Op: OpInternal, Message: fmt.Sprintf("%s stopped: %v", name, r)})
			}
		}()
		fn()
	}()
	return true
}

func (t *task) teardown(room core.Room) {
	t.m.state.Store(StateDisconnecting)
	t.cancel()
	t.m.unbindRoom(t)

	if err := room.Close(); err != nil {
		t.logger.Error().Err(err).Msg("room close")
	}

	t.mu.Lock()
	t.stopping = true
	t.mu.Unlock()
	t.wg.Wait()
	t.outbound.Drain()

	t.m.pendingSamples.Store(0)
	t.m.metrics.OutboundPendingSamples.Set(0)
	t.m.metrics.Connected.Set(0)
	t.m.state.Store(StateIdle)
	t.logger.Info().Msg("disconnected")
	t.emit(RoomDisconnected{})
}
