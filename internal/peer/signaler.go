// Package peer is the client-side counterpart of the hub's signaling relay.
// It owns one pion PeerConnection per remote participant, decides the
// initiator/answerer role, performs trickle ICE, and exposes inbound media
// tracks to the application. Coupling to the transport is via the Signaler
// interface only.
package peer

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campuslink/realtime/internal/core"
)

// Signaler carries event envelopes between this client and the hub.
type Signaler interface {
	Send(event string, data any) error
	Subscribe() (<-chan *core.Envelope, func())
}

var ErrClosed = errors.New("signaler closed")

// WSClient is a gorilla/websocket Signaler speaking the hub's envelope
// protocol.
type WSClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	subMu sync.Mutex
	subs  map[int]chan *core.Envelope
	next  int

	done chan struct{}
	stop sync.Once
}

// Dial connects to the hub's WebSocket endpoint and starts the read loop.
func Dial(ctx context.Context, url string) (*WSClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &WSClient{
		conn: conn,
		subs: make(map[int]chan *core.Envelope),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) Send(event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	frame, err := core.EncodeEvent(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *WSClient) Subscribe() (<-chan *core.Envelope, func()) {
	ch := make(chan *core.Envelope, 32)
	c.subMu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
		c.subMu.Unlock()
	}
	return ch, cancel
}

func (c *WSClient) Close() {
	c.stop.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *WSClient) readLoop() {
	defer func() {
		c.Close()
		c.subMu.Lock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
		c.subMu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "peer").Msg("signaler read loop done")
			return
		}
		env, err := core.DecodeEnvelope(data)
		if err != nil {
			log.Error().Err(err).Str("module", "peer").Msg("bad envelope from hub")
			continue
		}
		c.subMu.Lock()
		for _, ch := range c.subs {
			select {
			case ch <- env:
			default:
				// Slow subscriber loses the envelope; signaling is lossy by
				// contract.
			}
		}
		c.subMu.Unlock()
	}
}
