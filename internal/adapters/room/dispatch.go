package room

import (
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/voicelink/internal/adapters/signal"
	"github.com/dkeye/voicelink/internal/core"
	"github.com/dkeye/voicelink/internal/domain"
)

// dispatch turns signaling messages into room events until the signaling
// stream ends or the room is closed. It owns the events channel.
func (r *Room) dispatch() {
	defer close(r.done)
	defer r.closeEvents()

	for {
		select {
		case <-r.ctx.Done():
			return
		case m, ok := <-r.sig.Messages():
			if !ok {
				r.logger.Info().Msg("signaling stream ended")
				return
			}
			r.handle(m)
		}
	}
}

func (r *Room) handle(m signal.Message) {
	switch m.Type {
	case signal.TypeRoomState:
		r.handleRoomState(m)
	case signal.TypeError:
		r.handleError(m)
	case signal.TypeMemberJoined:
		if ev, ok := decodeMember(r, m); ok {
			p := r.upsert(ev.User)
			r.emit(core.ParticipantConnected{Participant: p})
		}
	case signal.TypeMemberLeft:
		if ev, ok := decodeMember(r, m); ok {
			p := r.remove(ev.User)
			r.emit(core.ParticipantDisconnected{Participant: p})
		}
	case signal.TypeMemberUpdated:
		if ev, ok := decodeMember(r, m); ok {
			p := r.upsert(ev.User)
			r.emit(core.MetadataChanged{Participant: p, Metadata: p.Metadata})
		}
	case signal.TypeChat:
		r.handleChat(m)
	case signal.TypeAnswer:
		p, err := signal.Decode[signal.SDP](m)
		if err != nil {
			r.logger.Error().Err(err).Msg("bad answer")
			return
		}
		select {
		case r.answers <- webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}:
		default:
			r.logger.Warn().Msg("unexpected answer dropped")
		}
	case signal.TypeOffer:
		r.handleOffer(m)
	case signal.TypeCandidate:
		c, err := signal.Decode[signal.Candidate](m)
		if err != nil {
			r.logger.Error().Err(err).Msg("bad candidate")
			return
		}
		if pc := r.media(); pc != nil {
			if err := pc.AddICECandidate(c.Init()); err != nil {
				r.logger.Error().Err(err).Msg("add ice candidate")
			}
		}
	case signal.TypePong:
		r.logger.Debug().Msg("pong")
	default:
		r.logger.Warn().Str("type", m.Type).Msg("unknown signal")
	}
}

func (r *Room) handleRoomState(m signal.Message) {
	state, err := signal.Decode[signal.RoomState](m)
	if err != nil {
		r.logger.Error().Err(err).Msg("bad room_state")
		return
	}

	r.mu.Lock()
	first := !r.isJoined
	r.isJoined = true
	r.name = state.Room
	r.self = toParticipant(state.Self)
	r.initial = r.initial[:0]
	for _, mem := range state.Members {
		p := toParticipant(mem)
		if p.ID == r.self.ID {
			continue
		}
		r.members[p.ID] = p
		r.initial = append(r.initial, p)
	}
	r.mu.Unlock()

	if first {
		select {
		case r.joined <- nil:
		default:
		}
	}
}

func (r *Room) handleError(m signal.Message) {
	e, err := signal.Decode[signal.ErrorMessage](m)
	if err != nil {
		r.logger.Error().Err(err).Msg("bad error message")
		return
	}
	r.mu.Lock()
	joining := !r.isJoined
	r.mu.Unlock()

	if joining {
		select {
		case r.joined <- &JoinError{Reason: e.Error}:
		default:
		}
		return
	}
	r.logger.Warn().Str("error", e.Error).Msg("server error")
}

func (r *Room) handleChat(m signal.Message) {
	c, err := signal.Decode[signal.Chat](m)
	if err != nil {
		r.logger.Error().Err(err).Msg("bad chat")
		return
	}
	ev := core.ChatReceived{Text: c.Text, Timestamp: c.Time()}
	if c.From != "" {
		p := r.member(domain.ParticipantID(c.From))
		ev.Sender = &p
	}
	r.emit(ev)
}

// handleOffer answers a renegotiation started by the server.
func (r *Room) handleOffer(m signal.Message) {
	p, err := signal.Decode[signal.SDP](m)
	if err != nil {
		r.logger.Error().Err(err).Msg("bad offer")
		return
	}
	pc := r.media()
	if pc == nil {
		r.logger.Warn().Msg("offer before media is ready")
		return
	}
	answer, err := pc.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.SDP})
	if err != nil {
		r.logger.Error().Err(err).Msg("apply offer")
		return
	}
	if err := r.sig.SendAnswer(answer.SDP); err != nil {
		r.logger.Error().Err(err).Msg("send answer")
	}
}

func decodeMember(r *Room, m signal.Message) (signal.MemberEvent, bool) {
	ev, err := signal.Decode[signal.MemberEvent](m)
	if err != nil || ev.User.ID == "" {
		r.logger.Error().Err(err).Str("type", m.Type).Msg("bad member payload")
		return ev, false
	}
	return ev, true
}

func (r *Room) upsert(mem signal.Member) domain.Participant {
	p := toParticipant(mem)
	r.mu.Lock()
	r.members[p.ID] = p
	r.mu.Unlock()
	return p
}

func (r *Room) remove(mem signal.Member) domain.Participant {
	p := toParticipant(mem)
	r.mu.Lock()
	if known, ok := r.members[p.ID]; ok {
		p = known
	}
	delete(r.members, p.ID)
	r.mu.Unlock()
	return p
}

// toParticipant prefers explicit metadata and otherwise derives it from the
// server-side username.
func toParticipant(m signal.Member) domain.Participant {
	p := domain.Participant{
		ID:       domain.ParticipantID(m.ID),
		Username: m.Username,
		Metadata: m.Metadata,
	}
	if p.Metadata == "" && p.Username != "" {
		if md, err := domain.EncodeUsernameMetadata(p.Username); err == nil {
			p.Metadata = md
		}
	}
	return p
}
