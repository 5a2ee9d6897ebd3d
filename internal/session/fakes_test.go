package session

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicelink/internal/audio"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
)

type connectFunc func(ctx context.Context, url, token string, opts core.ConnectOptions) (core.Room, <-chan core.RoomEvent, error)

type fakeConnector struct {
	fn    connectFunc
	calls atomic.Int32
}

func (c *fakeConnector) Connect(ctx context.Context, url, token string, opts core.ConnectOptions) (core.Room, <-chan core.RoomEvent, error) {
	c.calls.Add(1)
	return c.fn(ctx, url, token, opts)
}

func connectorFor(rooms ...*fakeRoom) *fakeConnector {
	var next atomic.Int32
	return &fakeConnector{fn: func(context.Context, string, string, core.ConnectOptions) (core.Room, <-chan core.RoomEvent, error) {
		r := rooms[int(next.Add(1))-1]
		return r, r.events, nil
	}}
}

type fakeRoom struct {
	identity     domain.ParticipantID
	participants []domain.Participant
	events       chan core.RoomEvent
	publishErr   error
	chatErr      error
	metadataErr  error
	writeErr     func(n int) error

	mu        sync.Mutex
	published []core.TrackOptions
	track     *fakeLocalTrack
	chats     []string
	metadata  []string
	closed    atomic.Int32
}

func newFakeRoom(identity domain.ParticipantID, participants ...domain.Participant) *fakeRoom {
	return &fakeRoom{
		identity:     identity,
		participants: participants,
		events:       make(chan core.RoomEvent, 16),
	}
}

func (r *fakeRoom) LocalIdentity() domain.ParticipantID      { return r.identity }
func (r *fakeRoom) RemoteParticipants() []domain.Participant { return r.participants }

func (r *fakeRoom) PublishAudioTrack(_ context.Context, opts core.TrackOptions) (core.LocalAudioTrack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, opts)
	if r.publishErr != nil {
		return nil, r.publishErr
	}
	r.track = &fakeLocalTrack{rate: opts.SampleRate, writeErr: r.writeErr}
	return r.track, nil
}

func (r *fakeRoom) SendChatMessage(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.chatErr != nil {
		return r.chatErr
	}
	r.chats = append(r.chats, text)
	return nil
}

func (r *fakeRoom) SetMetadata(_ context.Context, metadata string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadataErr != nil {
		return r.metadataErr
	}
	r.metadata = append(r.metadata, metadata)
	return nil
}

func (r *fakeRoom) Close() error {
	r.closed.Add(1)
	return nil
}

func (r *fakeRoom) localTrack() *fakeLocalTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.track
}

func (r *fakeRoom) sentChats() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.chats...)
}

func (r *fakeRoom) sentMetadata() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.metadata...)
}

type fakeLocalTrack struct {
	rate     int
	writeErr func(n int) error

	mu       sync.Mutex
	attempts int
	frames   [][]int16
}

func (t *fakeLocalTrack) SampleRate() int { return t.rate }

func (t *fakeLocalTrack) WriteFrame(pcm []int16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if t.writeErr != nil {
		if err := t.writeErr(t.attempts); err != nil {
			return err
		}
	}
	t.frames = append(t.frames, append([]int16(nil), pcm...))
	return nil
}

func (t *fakeLocalTrack) written() [][]int16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]int16(nil), t.frames...)
}

type fakeRemoteTrack struct {
	id     string
	frames chan []int16
	panics bool
}

func newFakeRemoteTrack(id string) *fakeRemoteTrack {
	return &fakeRemoteTrack{id: id, frames: make(chan []int16, 16)}
}

func (t *fakeRemoteTrack) ID() string { return t.id }

func (t *fakeRemoteTrack) ReadFrame(ctx context.Context) ([]int16, error) {
	if t.panics {
		panic("decoder exploded")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-t.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	}
}

const waitFor = 2 * time.Second

// collect polls until at least n events arrived.
func collect(t *testing.T, m *Manager, n int) []Event {
	t.Helper()
	var got []Event
	require.Eventually(t, func() bool {
		got = append(got, m.Poll()...)
		return len(got) >= n
	}, waitFor, 5*time.Millisecond, "got %d events: %#v", len(got), got)
	return got
}

// settle waits for the current session task to exit.
func settle(t *testing.T, m *Manager) {
	t.Helper()
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if cur == nil {
		return
	}
	select {
	case <-cur.done:
	case <-time.After(waitFor):
		t.Fatal("session task did not stop")
	}
}

func currentTask(m *Manager) *task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func waitConnected(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, m.IsConnected, waitFor, 5*time.Millisecond)
}

func stereo(n int, v float32) []audio.Stereo {
	out := make([]audio.Stereo, n)
	for i := range out {
		out[i] = audio.Stereo{L: v, R: v}
	}
	return out
}
