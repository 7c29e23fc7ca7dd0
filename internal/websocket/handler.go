package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Sink receives the lifecycle and inbound frames of every connection.
// Connect runs before the first frame; Disconnect runs once, after the last.
type Sink interface {
	Connect(conn *Connection) error
	Receive(conn *Connection, data []byte)
	Disconnect(conn *Connection)
}

// Handler upgrades HTTP requests on /ws and pumps frames into a Sink.
type Handler struct {
	sink     Sink
	opts     Options
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(sink Sink, opts Options, log zerolog.Logger) *Handler {
	h := &Handler{
		sink: sink,
		opts: opts,
		log:  log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(opts.AllowedOrigins),
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(uuid.NewString(), ws, h.opts, h.log)
	if err := h.sink.Connect(conn); err != nil {
		h.log.Error().Err(err).Str("conn", conn.ID()).Msg("failed to register connection")
		_ = conn.Close()
		return
	}
	h.log.Debug().Str("conn", conn.ID()).Str("remote", r.RemoteAddr).Msg("connection opened")

	go func() {
		defer func() {
			_ = conn.Close()
			h.sink.Disconnect(conn)
			h.log.Debug().Str("conn", conn.ID()).Msg("connection closed")
		}()
		conn.readLoop(func(data []byte) {
			h.sink.Receive(conn, data)
		})
	}()
}

// originChecker allows requests without an Origin header, and any origin
// when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			allowed = nil
			break
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if strings.EqualFold(o, origin) || strings.EqualFold(o, u.Host) {
				return true
			}
		}
		return false
	}
}
