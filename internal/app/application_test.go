package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveclass/internal/config"
	"liveclass/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.Chat.Path = filepath.Join(dir, "chat.json")
	cfg.Database.Path = filepath.Join(dir, "liveclass.db")
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) (*Application, string) {
	t.Helper()
	ctx := context.Background()
	application, err := NewApplication(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, application.Serve(ctx, ln))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	})
	return application, "http://" + application.Addr()
}

func TestApplication_ServesHealth(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Chat.Backend = backend
			_, base := startApp(t, cfg)

			resp, err := http.Get(base + "/health")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var body struct {
				Status string `json:"status"`
				Chat   struct {
					Backend string `json:"backend"`
				} `json:"chat"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "healthy", body.Status)
			assert.Equal(t, backend, body.Chat.Backend)
		})
	}
}

func TestApplication_CreateSession(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Token = "tok"
	_, base := startApp(t, cfg)

	req, err := http.NewRequest(http.MethodPost, base+"/api/sessions", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplication_MetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	_, base := startApp(t, cfg)

	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplication_LoadPrunesExpiredChat(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := OpenChatStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, store.Save(ctx, []types.ChatMessage{
		{ID: "old", SessionID: "s", Text: "old", Timestamp: now.Add(-8 * 24 * time.Hour)},
		{ID: "new", SessionID: "s", Text: "new", Timestamp: now.Add(-time.Hour)},
	}))
	require.NoError(t, store.Close())

	application, err := NewApplication(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, application.chatLog.Len())
	require.NoError(t, application.chatLog.Close())

	store, err = OpenChatStore(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	kept, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "new", kept[0].ID)
}

func TestApplication_StartsWithCorruptChatFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.Backend = config.BackendJSON
	corrupt := []byte("{not json")
	require.NoError(t, os.WriteFile(cfg.Chat.Path, corrupt, 0o644))

	application, base := startApp(t, cfg)
	assert.Equal(t, 0, application.chatLog.Len())

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := os.ReadFile(cfg.Chat.Path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data, "the unreadable file is kept until a message is posted")
}

func TestApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.Backend = "redis"
	_, err := NewApplication(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestICEServers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ICE.Servers = append(cfg.ICE.Servers, config.ICEServer{
		URLs:       []string{"turn:turn.example.com:3478"},
		Username:   "class",
		Credential: "secret",
	})

	servers := ICEServers(cfg)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, servers[0].URLs)
	assert.Nil(t, servers[0].Credential)
	assert.Equal(t, "class", servers[1].Username)
	assert.Equal(t, "secret", servers[1].Credential)
}
