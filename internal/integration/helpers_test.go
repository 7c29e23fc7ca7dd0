package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"liveclass/internal/app"
	"liveclass/internal/config"
	"liveclass/pkg/types"
)

const readTimeout = 3 * time.Second

type server struct {
	base string
	cfg  *config.Config
	app  *app.Application
}

func startServer(t *testing.T) *server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.Chat.Path = filepath.Join(t.TempDir(), "chat.json")

	ctx := context.Background()
	application, err := app.NewApplication(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, application.Serve(ctx, ln))

	s := &server{base: "http://" + application.Addr(), cfg: cfg, app: application}
	t.Cleanup(s.stop)
	return s
}

func (s *server) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.app.Stop(ctx)
}

func (s *server) createSession(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(s.base+"/api/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data struct {
			SessionID string `json:"sessionId"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Data.SessionID)
	return body.Data.SessionID
}

// client is one browser tab.
type client struct {
	t    *testing.T
	name string
	conn *websocket.Conn
}

func (s *server) dial(t *testing.T, name string) *client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.base, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, name: name, conn: conn}
}

func (c *client) send(event string, data any) {
	c.t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(c.t, err)
	frame, err := json.Marshal(types.Envelope{Event: event, Data: payload})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

// expect reads frames until event arrives and decodes its payload into v.
// Frames for other events are skipped.
func (c *client) expect(event string, v any) {
	c.t.Helper()
	deadline := time.Now().Add(readTimeout)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, data, err := c.conn.ReadMessage()
		require.NoErrorf(c.t, err, "%s waiting for %s", c.name, event)

		var env types.Envelope
		require.NoError(c.t, json.Unmarshal(data, &env))
		if env.Event != event {
			continue
		}
		if v != nil {
			require.NoError(c.t, json.Unmarshal(env.Data, v))
		}
		return
	}
}

// collect reads every frame that arrives within wait and returns the event
// names in order. The read deadline error is terminal, so collect must be
// the last read on c.
func (c *client) collect(wait time.Duration) []string {
	c.t.Helper()
	var names []string
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return names
		}
		var env types.Envelope
		if json.Unmarshal(data, &env) == nil {
			names = append(names, env.Event)
		}
	}
}
