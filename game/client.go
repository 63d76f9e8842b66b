package game

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	sendQueueSize = 256
	pingPeriod    = 30 * time.Second

	// Generous enough for chat plus typing signals, tight enough to
	// shed a client flooding intents.
	intentRate  = 20
	intentBurst = 40
)

// client is one live connection. send is drained by writePump; enqueue
// never blocks, and a full queue closes the connection rather than
// letting one stalled reader hold up a room.
type client struct {
	id   string
	sess NetworkSession
	send chan []byte

	limiter *rate.Limiter
	gw      *Gateway

	// room codes this connection is subscribed to, guarded by gw.mu.
	rooms map[string]struct{}
}

func newClient(id string, sess NetworkSession, gw *Gateway) *client {
	return &client{
		id:      id,
		sess:    sess,
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(intentRate, intentBurst),
		gw:      gw,
		rooms:   make(map[string]struct{}),
	}
}

func (c *client) readPump() {
	defer c.gw.dropClient(c)

	for {
		data, err := c.sess.Read()
		if err != nil {
			log.Debug().Str("conn", c.id).Err(err).Msg("read loop ended")
			return
		}
		if !c.limiter.Allow() {
			continue
		}
		c.gw.dispatch(c, data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sess.Close("")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.sess.Write(frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.sess.Ping(); err != nil {
				return
			}
		}
	}
}

// enqueue queues a frame for delivery. Called either from the client's
// own dispatch or while the gateway lock holds this client in a
// subscriber set, so it never races the channel close in dropClient.
func (c *client) enqueue(frame []byte) {
	if frame == nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("conn", c.id).Msg("send queue full, dropping connection")
		c.sess.Close("slow-consumer")
	}
}
