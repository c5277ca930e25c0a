package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var (
	framesSentTotal    = metrics.NewCounter("duckserve_frames_sent_total")
	framesDroppedTotal = metrics.NewCounter("duckserve_frames_dropped_total")
	connectionsActive  = metrics.NewCounter("duckserve_connections_active")
)

// Connection is one WebSocket client. Replies are queued in a bounded buffer
// and written by a single writer goroutine, in order.
type Connection struct {
	id      string
	ws      *websocket.Conn
	out     chan Reply
	blocked atomic.Bool
	closed  sync.Once
	done    chan struct{}
	log     logrus.FieldLogger
}

func newConnection(id string, ws *websocket.Conn, buffer int, log logrus.FieldLogger) *Connection {
	if buffer < 1 {
		buffer = 1
	}
	return &Connection{
		id:   id,
		ws:   ws,
		out:  make(chan Reply, buffer),
		done: make(chan struct{}),
		log:  log.WithField("conn", id),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string {
	return c.id
}

// Send queues reply without blocking. It returns false when the queue is
// full; the reply is then dropped.
func (c *Connection) Send(reply Reply) bool {
	select {
	case c.out <- reply:
		return true
	default:
		c.blocked.Store(true)
		framesDroppedTotal.Inc()
		return false
	}
}

// writeLoop writes queued replies until the queue is closed or a write fails.
func (c *Connection) writeLoop() {
	defer close(c.done)

	for reply := range c.out {
		messageType := websocket.TextMessage
		if reply.Binary {
			messageType = websocket.BinaryMessage
		}

		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(messageType, reply.Payload); err != nil {
			c.log.WithError(err).Debug("Write failed")
			c.ws.Close()
			for range c.out {
			}
			return
		}
		framesSentTotal.Inc()

		if len(c.out) == 0 && c.blocked.CompareAndSwap(true, false) {
			c.log.Debug("Send queue drained")
		}
	}

	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// closeSend stops accepting replies and waits for queued ones to be written.
func (c *Connection) closeSend() {
	c.closed.Do(func() { close(c.out) })
	<-c.done
}
