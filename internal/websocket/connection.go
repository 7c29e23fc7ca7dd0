package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const closeGrace = time.Second

// Options tunes a connection's transport.
type Options struct {
	BufferSize     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

// DefaultOptions matches config.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		BufferSize:     256,
		WriteTimeout:   10 * time.Second,
		PingInterval:   25 * time.Second,
		ReadTimeout:    60 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// Connection wraps one WebSocket. All writes, pings included, go through a
// single writer goroutine; Send never blocks the caller.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	opts      Options
	log       zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection starts the writer goroutine for conn.
func NewConnection(id string, conn *websocket.Conn, opts Options, log zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      id,
		conn:    conn,
		writeCh: make(chan []byte, opts.BufferSize),
		opts:    opts,
		log:     log.With().Str("conn", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) ID() string { return c.id }

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} { return c.ctx.Done() }

func (c *Connection) IsClosed() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Send queues an encoded frame. A full queue returns ErrBufferFull and
// leaves the decision to drop the connection to the caller.
func (c *Connection) Send(data []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrBufferFull
	}
}

// Close stops the writer, which then sends a close frame and releases the
// socket. It never waits on the network. Safe to call repeatedly.
func (c *Connection) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

// Abort drops the socket at once without a close frame. A writer blocked on
// a peer that stopped reading fails immediately.
func (c *Connection) Abort() {
	c.closeOnce.Do(c.cancel)
	if c.conn != nil {
		_ = c.conn.NetConn().Close()
	}
}

// CloseAfterFlush closes the connection once every frame queued before the
// call has been written. A full queue means the peer is not reading, so the
// socket is aborted instead.
func (c *Connection) CloseAfterFlush() {
	select {
	case c.writeCh <- nil:
	default:
		c.Abort()
	}
}

func (c *Connection) writeLoop() {
	defer c.shutdown()

	var ping <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case data := <-c.writeCh:
			if data == nil {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ping:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// shutdown runs when the writer stops: the connection is marked closed, a
// close frame is attempted and the socket is released.
func (c *Connection) shutdown() {
	c.closeOnce.Do(c.cancel)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGrace))
	_ = c.conn.Close()
}

// readLoop delivers text frames to fn until the socket fails or closes.
func (c *Connection) readLoop(fn func(data []byte)) {
	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		if messageType == websocket.TextMessage {
			fn(data)
		}
	}
}
