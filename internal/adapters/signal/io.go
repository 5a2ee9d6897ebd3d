package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Message is one inbound signaling message with its raw payload.
type Message struct {
	Type string
	Data []byte
}

// Decode unmarshals a message payload into T.
func Decode[T any](m Message) (T, error) {
	var v T
	if err := json.Unmarshal(m.Data, &v); err != nil {
		return v, fmt.Errorf("bad %s payload: %w", m.Type, err)
	}
	return v, nil
}

// Run pumps the websocket until ctx is done, the server hangs up or a pump
// fails. A normal close from either side returns nil.
func (c *Client) Run(ctx context.Context) error {
	c.conn.mu.Lock()
	if c.conn.closed {
		c.conn.mu.Unlock()
		return ErrClosed
	}
	c.conn.pumping = true
	c.conn.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(func() error { return c.readPump(gctx) })
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) writePump(ctx context.Context) error {
	ws := c.conn.conn
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("writePump ctx done")
			c.conn.Close()
			return nil
		case data, ok := <-c.conn.send:
			if !ok {
				c.logger.Info().Msg("writePump channel closed")
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return nil
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				c.logger.Error().Err(err).Msg("writePump set deadline")
				return err
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error().Err(err).Msg("writePump write error")
				return err
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Error().Err(err).Msg("writePump ping")
				return err
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context) error {
	ws := c.conn.conn
	defer func() {
		c.logger.Info().Msg("readPump closing")
		close(c.inbox)
		c.conn.Close()
	}()

	pongWait := c.opts.PingPeriod * 10 / 9
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.conn.isClosed() || isNormalClose(err) {
				return nil
			}
			c.logger.Error().Err(err).Msg("readPump read error")
			return fmt.Errorf("read signaling: %w", err)
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.logger.Error().Err(err).Msg("bad json")
			continue
		}
		select {
		case c.inbox <- Message{Type: env.Type, Data: data}:
		case <-ctx.Done():
			return nil
		}
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return errors.Is(err, websocket.ErrCloseSent)
}
