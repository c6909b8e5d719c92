package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"relay/internal/event"

	"golang.org/x/net/websocket"
)

const defaultWriteTimeout = 10 * time.Second

var (
	errOutboxFull = errors.New("ws: outbox full")
	errClosed     = errors.New("ws: connection closed")
)

// conn is one client socket. Events reach the socket only through the outbox
// and the single writer goroutine, so pushes from other connections never
// block on a slow client.
type conn struct {
	ws           *websocket.Conn
	outbox       chan event.Event
	done         chan struct{}
	closeOnce    sync.Once
	writer       sync.WaitGroup
	writeTimeout time.Duration
	log          *slog.Logger
}

func newConn(wsc *websocket.Conn, outboxSize int, writeTimeout time.Duration, log *slog.Logger) *conn {
	c := &conn{
		ws:           wsc,
		outbox:       make(chan event.Event, outboxSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log,
	}
	c.writer.Add(1)
	go c.writeLoop()
	return c
}

// Deliver queues a pushed event without blocking. It fails when the outbox is
// full or the connection is gone.
func (c *conn) Deliver(ev event.Event) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}
	select {
	case c.outbox <- ev:
		return nil
	default:
		return errOutboxFull
	}
}

// reply queues a response to the client's own request. It waits for room in
// the outbox since the caller is this connection's reader.
func (c *conn) reply(ev event.Event) {
	select {
	case c.outbox <- ev:
	case <-c.done:
	}
}

func (c *conn) writeLoop() {
	defer c.writer.Done()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case ev := <-c.outbox:
			if err := c.write(ev); err != nil {
				c.log.Debug("ws write failed", "type", ev.Type, "error", err)
				c.stop()
				_ = c.ws.Close()
				return
			}
		}
	}
}

func (c *conn) write(ev event.Event) error {
	timeout := c.writeTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(timeout))
	return websocket.JSON.Send(c.ws, ev)
}

// flush writes whatever is still queued. It stops at the first write error.
func (c *conn) flush() {
	for {
		select {
		case ev := <-c.outbox:
			if err := c.write(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// stop tells the writer to flush the outbox and exit. New pushes are refused
// from then on.
func (c *conn) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// wait blocks until the writer goroutine has exited.
func (c *conn) wait() { c.writer.Wait() }
