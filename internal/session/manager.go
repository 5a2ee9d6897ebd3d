// Package session bridges an asynchronous room connection to a host that
// polls once per tick.
//
// A Manager owns at most one room session at a time. Host-facing calls never
// block on the network: connection outcomes, participant changes, chat and
// decoded remote audio arrive as Events drained by Poll.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/codec"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
	"github.com/dkeye/voicelink/internal/metrics"
)

const DefaultSampleRate = 48000

var ErrNotConnected = errors.New("not connected to a room")

// Option configures a Manager.
type Option func(*Manager)

// WithSampleRate sets the local microphone sample rate. Defaults to 48000.
func WithSampleRate(rate int) Option {
	return func(m *Manager) { m.sampleRate = rate }
}

// WithRoom sets the room joined when the URL does not name one.
func WithRoom(name domain.RoomName) Option {
	return func(m *Manager) { m.room = name }
}

// WithDisplayName sets the name announced when joining.
func WithDisplayName(name string) Option {
	return func(m *Manager) { m.displayName = name }
}

// WithMetrics exports session counters through the given metrics.
func WithMetrics(s *metrics.Session) Option {
	return func(m *Manager) { m.metrics = s }
}

// Stats is a point-in-time view of the session for diagnostics.
type Stats struct {
	State          string `json:"state"`
	Identity       string `json:"identity"`
	SampleRate     int    `json:"sample_rate"`
	QueuedEvents   int    `json:"queued_events"`
	PendingSamples int64  `json:"pending_samples"`
	FramesSent     uint64 `json:"frames_sent"`
	FramesFailed   uint64 `json:"frames_failed"`
	FramesDecoded  uint64 `json:"frames_decoded"`
}

// Manager is the façade the host drives every tick. It is safe for
// concurrent use.
type Manager struct {
	connector core.RoomConnector
	metrics   *metrics.Session
	events    *Queue[Event]
	state     stateCell

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	sampleRate  int
	room        domain.RoomName
	displayName string
	current     *task
	active      core.Room
	activeTask  *task

	pendingSamples atomic.Int64
	framesSent     atomic.Uint64
	framesFailed   atomic.Uint64
	framesDecoded  atomic.Uint64
}

func NewManager(connector core.RoomConnector, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		connector:  connector,
		events:     NewQueue[Event](),
		ctx:        ctx,
		cancel:     cancel,
		sampleRate: DefaultSampleRate,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.New(nil)
	}
	return m
}

// SetSampleRate changes the microphone rate used by the next Connect.
func (m *Manager) SetSampleRate(rate int) error {
	if !codec.SupportedSampleRate(rate) {
		return fmt.Errorf("%w: %d", codec.ErrUnsupportedSampleRate, rate)
	}
	m.mu.Lock()
	m.sampleRate = rate
	m.mu.Unlock()
	log.Info().Str("module", "session").Int("sample_rate", rate).Msg("mic sample rate set")
	return nil
}

func (m *Manager) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// Connect starts a new session and returns immediately. Any previous
// session is told to stop; the new one dials only after it has finished.
func (m *Manager) Connect(url, token string) {
	m.mu.Lock()
	var prev <-chan struct{}
	if m.current != nil {
		m.current.cancel()
		prev = m.current.done
	}
	opts := core.ConnectOptions{Room: m.room, Name: m.displayName, AutoSubscribe: true}
	t := newTask(m.ctx, m, url, token, opts, m.sampleRate, prev)
	m.current = t
	m.mu.Unlock()

	log.Info().Str("module", "session").Str("url", url).Msg("connect requested")
	go t.run()
}

// Disconnect stops the active session. It is a no-op when nothing is running.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	t := m.current
	m.mu.Unlock()
	if t == nil || t.ctx.Err() != nil {
		return
	}
	log.Info().Str("module", "session").Msg("disconnecting from room")
	t.cancel()
}

// Close disconnects and waits for the background session to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	t := m.current
	m.mu.Unlock()
	m.cancel()
	if t != nil {
		<-t.done
	}
}

func (m *Manager) State() State { return m.state.Load() }

func (m *Manager) IsConnected() bool { return m.state.Load() == StateConnected }

// LocalIdentity reports our identity in the room, or "local" when not joined.
func (m *Manager) LocalIdentity() domain.ParticipantID {
	room, _ := m.activeRoom()
	if room == nil {
		return domain.LocalIdentity
	}
	return room.LocalIdentity()
}

// PushLocalAudio queues one tick of captured stereo microphone audio.
// Audio pushed while not connected, or after publishing the local track
// failed, is dropped.
func (m *Manager) PushLocalAudio(samples []audio.Stereo) {
	if len(samples) == 0 || !m.IsConnected() {
		return
	}
	m.mu.Lock()
	t := m.current
	m.mu.Unlock()
	if t == nil || t.ctx.Err() != nil {
		return
	}
	t.pushOutbound(audio.DownmixToMono(samples))
}

// SendMessage sends a chat message in the background. Failures are logged
// and reported as an Error event with OpChat.
func (m *Manager) SendMessage(text string) error {
	room, t := m.activeRoom()
	if room == nil {
		log.Warn().Str("module", "session").Msg("cannot send chat message: not connected to room")
		return ErrNotConnected
	}
	t.spawn("chat", func() {
		if err := room.SendChatMessage(t.ctx, text); err != nil {
			t.logger.Error().Err(err).Msg("failed to send chat message")
			m.emit(Error{Op: OpChat, Message: fmt.Sprintf("Failed to send chat message: %v", err)})
		}
	})
	return nil
}

// SetLocalIdentityMetadata publishes value as our display name. Failures
// are logged and reported as an Error event with OpMetadata.
func (m *Manager) SetLocalIdentityMetadata(value string) error {
	if err := domain.ValidateUsername(value); err != nil {
		return err
	}
	room, t := m.activeRoom()
	if room == nil {
		log.Warn().Str("module", "session").Msg("cannot update username: not connected to room")
		return ErrNotConnected
	}
	metadata, err := domain.EncodeUsernameMetadata(value)
	if err != nil {
		return err
	}
	t.spawn("metadata", func() {
		if err := room.SetMetadata(t.ctx, metadata); err != nil {
			t.logger.Error().Err(err).Msg("failed to update username")
			m.emit(Error{Op: OpMetadata, Message: fmt.Sprintf("Failed to update username: %v", err)})
			return
		}
		t.logger.Info().Str("username", value).Msg("username updated")
	})
	return nil
}

// Poll drains every event queued since the previous call, oldest first.
func (m *Manager) Poll() []Event {
	events := m.events.Drain()
	m.metrics.EventsQueued.Set(float64(m.events.Len()))
	return events
}

func (m *Manager) Stats() Stats {
	return Stats{
		State:          m.State().String(),
		Identity:       string(m.LocalIdentity()),
		SampleRate:     m.SampleRate(),
		QueuedEvents:   m.events.Len(),
		PendingSamples: m.pendingSamples.Load(),
		FramesSent:     m.framesSent.Load(),
		FramesFailed:   m.framesFailed.Load(),
		FramesDecoded:  m.framesDecoded.Load(),
	}
}

func (m *Manager) emit(ev Event) {
	m.events.Push(ev)
	m.metrics.EventsEmitted.WithLabelValues(ev.Kind()).Inc()
	m.metrics.EventsQueued.Inc()
}

func (m *Manager) bindRoom(t *task, room core.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = room
	m.activeTask = t
}

func (m *Manager) unbindRoom(t *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeTask == t {
		m.active = nil
		m.activeTask = nil
	}
}

func (m *Manager) activeRoom() (core.Room, *task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.activeTask
}
