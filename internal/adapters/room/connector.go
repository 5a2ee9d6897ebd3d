// Package room implements core.RoomConnector on top of the signaling client
// and a pion peer connection.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicelink/internal/adapters/rtc"
	"github.com/dkeye/voicelink/internal/adapters/signal"
	"github.com/dkeye/voicelink/internal/core"
)

var (
	ErrJoinRejected     = errors.New("join rejected")
	ErrJoinTimeout      = errors.New("join timed out")
	ErrSignalingClosed  = errors.New("signaling closed")
	ErrNegotiationStale = errors.New("negotiation answer not received")
)

// JoinError is the server's reason for refusing a join.
type JoinError struct {
	Reason string
}

func (e *JoinError) Error() string { return e.Reason }

func (e *JoinError) Is(target error) bool { return target == ErrJoinRejected }

type Options struct {
	Signal signal.Options
	RTC    rtc.Config
	// JoinTimeout bounds the join handshake and each SDP negotiation.
	JoinTimeout time.Duration
}

type Connector struct {
	opts Options
	api  *webrtc.API
}

var _ core.RoomConnector = (*Connector)(nil)

func NewConnector(opts Options) (*Connector, error) {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 15 * time.Second
	}
	api, err := rtc.NewAPI()
	if err != nil {
		return nil, err
	}
	return &Connector{opts: opts, api: api}, nil
}

// Connect dials the signaling server, joins the room and completes the
// first media negotiation before returning.
func (c *Connector) Connect(ctx context.Context, url, token string, opts core.ConnectOptions) (core.Room, <-chan core.RoomEvent, error) {
	sig, err := signal.Dial(ctx, url, token, c.opts.Signal)
	if err != nil {
		return nil, nil, err
	}

	r := newRoom(sig, c.opts.JoinTimeout)
	// Signaling stops on sig.Close, not with r.ctx.
	go func() {
		if err := sig.Run(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("signaling stopped")
		}
	}()
	go r.dispatch()

	if err := r.join(ctx, opts, token); err != nil {
		r.Close()
		return nil, nil, err
	}

	pc, err := rtc.NewWebRTCConnection(c.api, c.opts.RTC)
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	r.attachMedia(pc)
	if err := pc.Start(r.ctx); err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("start media: %w", err)
	}
	if err := r.negotiate(ctx); err != nil {
		r.Close()
		return nil, nil, err
	}

	log.Info().Str("module", "room").
		Str("room", r.name).
		Str("identity", string(r.LocalIdentity())).
		Int("participants", len(r.initial)).
		Msg("joined room")
	return r, r.events, nil
}
