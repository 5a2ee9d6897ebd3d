package room

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/voicelink/internal/adapters/rtc"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
)

// fakeServer is a scripted room server: it replies to join with joinReply,
// answers every offer with a real peer connection and records the rest.
type fakeServer struct {
	t         *testing.T
	url       string
	joinReply func(join map[string]any) any

	received chan map[string]any
	hungUp   chan struct{}

	mu sync.Mutex
	ws *websocket.Conn
}

func newFakeServer(t *testing.T, joinReply func(join map[string]any) any) *fakeServer {
	t.Helper()
	s := &fakeServer{
		t:         t,
		joinReply: joinReply,
		received:  make(chan map[string]any, 32),
		hungUp:    make(chan struct{}),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.ws = ws
		s.mu.Unlock()
		s.serve(ws)
	}))
	t.Cleanup(srv.Close)
	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

func (s *fakeServer) serve(ws *websocket.Conn) {
	defer close(s.hungUp)
	defer ws.Close()

	api, err := rtc.NewAPI()
	if err != nil {
		return
	}
	pc, err := rtc.NewWebRTCConnection(api, rtc.Config{})
	if err != nil {
		return
	}
	defer pc.Close()
	if err := pc.Start(context.Background()); err != nil {
		return
	}

	for {
		var msg map[string]any
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		switch msg["type"] {
		case "join":
			s.send(s.joinReply(msg))
		case "offer":
			answer, err := pc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer,
				SDP:  msg["sdp"].(string),
			})
			if err != nil {
				s.send(map[string]any{"type": "error", "error": err.Error()})
				continue
			}
			s.send(map[string]any{"type": "answer", "sdp": answer.SDP})
		case "candidate":
		default:
			s.received <- msg
		}
	}
}

func (s *fakeServer) send(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return
	}
	_ = s.ws.WriteJSON(v)
}

func (s *fakeServer) hangUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.ws.Close()
}

func (s *fakeServer) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m := <-s.received:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("server received nothing")
		return nil
	}
}

func welcome(members ...map[string]any) func(map[string]any) any {
	return func(join map[string]any) any {
		return map[string]any{
			"type":    "room_state",
			"room":    join["room"],
			"self":    map[string]any{"id": "me", "username": join["name"]},
			"members": members,
		}
	}
}

func nextEvent(t *testing.T, events <-chan core.RoomEvent) core.RoomEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no room event")
		return nil
	}
}

func connect(t *testing.T, srv *fakeServer) (core.Room, <-chan core.RoomEvent) {
	t.Helper()
	conn, err := NewConnector(Options{JoinTimeout: 5 * time.Second})
	require.NoError(t, err)
	room, events, err := conn.Connect(context.Background(), srv.url, "tok",
		core.ConnectOptions{Room: "lobby", Name: "neo", AutoSubscribe: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = room.Close() })
	return room, events
}

func TestConnectRejected(t *testing.T) {
	srv := newFakeServer(t, func(map[string]any) any {
		return map[string]any{"type": "error", "error": "auth rejected"}
	})
	conn, err := NewConnector(Options{JoinTimeout: 5 * time.Second})
	require.NoError(t, err)

	_, _, err = conn.Connect(context.Background(), srv.url, "bad", core.ConnectOptions{Room: "lobby"})
	require.ErrorIs(t, err, ErrJoinRejected)
	assert.Equal(t, "auth rejected", err.Error())
}

func TestConnectTimesOutWithoutRoomState(t *testing.T) {
	srv := newFakeServer(t, func(map[string]any) any {
		return map[string]any{"type": "pong"}
	})
	conn, err := NewConnector(Options{JoinTimeout: 100 * time.Millisecond})
	require.NoError(t, err)

	_, _, err = conn.Connect(context.Background(), srv.url, "", core.ConnectOptions{Room: "lobby"})
	require.ErrorIs(t, err, ErrJoinTimeout)
}

func TestConnectReportsParticipants(t *testing.T) {
	srv := newFakeServer(t, welcome(
		map[string]any{"id": "alice", "username": "Alice"},
		map[string]any{"id": "me", "username": "neo"},
		map[string]any{"id": "bob", "metadata": `{"username":"Bobby"}`},
	))
	room, _ := connect(t, srv)

	assert.Equal(t, domain.ParticipantID("me"), room.LocalIdentity())
	assert.Equal(t, []domain.Participant{
		{ID: "alice", Username: "Alice", Metadata: `{"username":"Alice"}`},
		{ID: "bob", Metadata: `{"username":"Bobby"}`},
	}, room.RemoteParticipants())
}

func TestServerMessagesBecomeRoomEvents(t *testing.T) {
	srv := newFakeServer(t, welcome())
	_, events := connect(t, srv)

	srv.send(map[string]any{"type": "member_joined", "user": map[string]any{"id": "carol", "username": "Carol"}})
	ev := nextEvent(t, events)
	require.IsType(t, core.ParticipantConnected{}, ev)
	assert.Equal(t, domain.ParticipantID("carol"), ev.(core.ParticipantConnected).Participant.ID)

	srv.send(map[string]any{"type": "chat", "from": "carol", "text": "hi", "ts": 1700000000000})
	ev = nextEvent(t, events)
	chat := ev.(core.ChatReceived)
	require.NotNil(t, chat.Sender)
	assert.Equal(t, domain.ParticipantID("carol"), chat.Sender.ID)
	assert.Equal(t, "hi", chat.Text)
	assert.Equal(t, int64(1700000000000), chat.Timestamp.UnixMilli())

	srv.send(map[string]any{"type": "chat", "text": "anon"})
	ev = nextEvent(t, events)
	assert.Nil(t, ev.(core.ChatReceived).Sender)

	srv.send(map[string]any{"type": "member_updated", "user": map[string]any{"id": "carol", "username": "Caz"}})
	ev = nextEvent(t, events)
	assert.Equal(t, core.MetadataChanged{
		Participant: domain.Participant{ID: "carol", Username: "Caz", Metadata: `{"username":"Caz"}`},
		Metadata:    `{"username":"Caz"}`,
	}, ev)

	srv.send(map[string]any{"type": "member_left", "user": map[string]any{"id": "carol"}})
	ev = nextEvent(t, events)
	assert.Equal(t, domain.ParticipantID("carol"), ev.(core.ParticipantDisconnected).Participant.ID)
	assert.Equal(t, "Caz", ev.(core.ParticipantDisconnected).Participant.Username)
}

func TestOutboundChatAndMetadata(t *testing.T) {
	srv := newFakeServer(t, welcome())
	room, _ := connect(t, srv)

	require.NoError(t, room.SendChatMessage(context.Background(), "hello"))
	assert.Equal(t, map[string]any{"type": "chat", "text": "hello"}, srv.next(t))

	require.NoError(t, room.SetMetadata(context.Background(), `{"username":"trinity"}`))
	assert.Equal(t, map[string]any{"type": "metadata", "metadata": `{"username":"trinity"}`}, srv.next(t))
}

func TestPublishAudioTrackRenegotiates(t *testing.T) {
	srv := newFakeServer(t, welcome())
	room, _ := connect(t, srv)

	_, err := room.PublishAudioTrack(context.Background(), core.TrackOptions{Name: "mic", SampleRate: 48000, Channels: 2})
	require.Error(t, err)

	track, err := room.PublishAudioTrack(context.Background(), core.TrackOptions{Name: "mic", SampleRate: 16000, Channels: 1})
	require.NoError(t, err)
	assert.Equal(t, 16000, track.SampleRate())
}

func TestCloseSendsLeaveAndEndsEvents(t *testing.T) {
	srv := newFakeServer(t, welcome())
	room, events := connect(t, srv)

	require.NoError(t, room.Close())
	assert.Equal(t, "leave", srv.next(t)["type"])

	_, ok := <-events
	assert.False(t, ok)
	require.NoError(t, room.Close())
}

func TestServerHangUpEndsEvents(t *testing.T) {
	srv := newFakeServer(t, welcome())
	_, events := connect(t, srv)

	srv.hangUp()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("event stream not closed after hang-up")
	}
}
