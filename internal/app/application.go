// Package app wires the server together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"liveclass/internal/admission"
	"liveclass/internal/api"
	"liveclass/internal/chat"
	"liveclass/internal/config"
	"liveclass/internal/database"
	"liveclass/internal/hub"
	"liveclass/internal/logging"
	"liveclass/internal/metrics"
	"liveclass/internal/roster"
	"liveclass/internal/router"
	"liveclass/internal/session"
	"liveclass/internal/signaling"
	"liveclass/internal/syncer"
	"liveclass/internal/websocket"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// Application owns every long-lived component.
// Initialization order: chat store, chat log, registry, router, controllers,
// hub, API, HTTP. Shutdown runs in reverse.
type Application struct {
	config     *config.Config
	log        zerolog.Logger
	metrics    *metrics.Metrics
	chatLog    *chat.Log
	registry   *websocket.Registry
	limiter    *router.RateLimiter
	messageHub *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
	stopSweep  context.CancelFunc
}

// OpenChatStore opens the durable chat store selected by cfg.
func OpenChatStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (interfaces.ChatStore, error) {
	switch cfg.Chat.Backend {
	case config.BackendSQLite:
		dbConfig := database.DefaultConfig(cfg.Database.Path)
		dbConfig.Timeout = cfg.Database.Timeout
		return database.NewManager(ctx, dbConfig, logging.Component(log, "database"))
	case config.BackendJSON:
		return chat.NewJSONFileStore(cfg.Chat.Path)
	default:
		return nil, fmt.Errorf("unknown chat backend %q", cfg.Chat.Backend)
	}
}

// ICEServers converts the configured servers for the API.
func ICEServers(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICE.Servers))
	for _, s := range cfg.ICE.Servers {
		server := webrtc.ICEServer{
			URLs:     append([]string(nil), s.URLs...),
			Username: s.Username,
		}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	return servers
}

func NewApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	store, err := OpenChatStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat store: %w", err)
	}
	chatLog := chat.NewLog(store, chat.Options{
		Retention: cfg.Chat.Retention,
		MaxLength: cfg.Chat.MaxLength,
	}, logging.Component(log, "chat"), m)
	if err := chatLog.Load(ctx); err != nil {
		log.Error().Err(err).Str("backend", chatLog.Backend()).Msg("chat history unavailable, continuing with what was read")
	}
	log.Info().Str("backend", chatLog.Backend()).Int("messages", chatLog.Len()).Msg("chat history loaded")

	registry := websocket.NewRegistry(logging.Component(log, "registry"), m)
	limiter := router.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateWindow)
	messageRouter := router.NewRouter(limiter, types.EventChatMessage)

	sessions := session.NewStore(session.Defaults{
		MaxParticipants: cfg.Session.MaxParticipants,
		StrokeThrottle:  cfg.Session.StrokeThrottle,
	})
	participants := roster.NewParticipants()
	waiting := roster.NewWaiting()

	messageHub := hub.NewHub(hub.Components{
		Registry: registry,
		Router:   messageRouter,
		Admission: admission.NewController(registry, participants, waiting, sessions, chatLog,
			logging.Component(log, "admission"), m),
		Relay: signaling.NewRelay(registry, logging.Component(log, "signaling"), m),
		Sync: syncer.NewBroadcaster(registry, participants, sessions, chatLog,
			logging.Component(log, "sync"), m),
	}, logging.Component(log, "hub"), m)

	wsHandler := websocket.NewHandler(messageHub, websocket.Options{
		BufferSize:     cfg.WebSocket.BufferSize,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, logging.Component(log, "websocket"))

	deps := api.Deps{
		Hub:          messageHub,
		Sessions:     sessions,
		Participants: participants,
		Waiting:      waiting,
		Connections:  registry,
		Chat:         chatLog,
		WebSocket:    wsHandler,
		Metrics:      m,
	}
	if hc, ok := store.(api.HealthChecker); ok {
		deps.ChatHealth = hc
	}
	apiOpts := api.Options{
		PublicURL:      cfg.HTTP.PublicURL,
		Token:          cfg.API.Token,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		ICEServers:     ICEServers(cfg),
	}
	if cfg.Metrics.Enabled {
		apiOpts.MetricsPath = cfg.Metrics.Path
	}
	apiServer := api.NewServer(deps, apiOpts, logging.Component(log, "api"))

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		metrics:    m,
		chatLog:    chatLog,
		registry:   registry,
		limiter:    limiter,
		messageHub: messageHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start binds the configured address and serves on it.
func (app *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ctx, ln)
}

// Serve runs the hub and begins serving HTTP on ln. It returns once the
// hub is running.
func (app *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := app.messageHub.Start(ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start message hub: %w", err)
	}
	app.listener = ln

	sweepCtx, cancel := context.WithCancel(ctx)
	app.stopSweep = cancel
	go app.sweep(sweepCtx)

	go func() {
		if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	app.log.Info().Str("addr", ln.Addr().String()).Msg("liveclass started")
	return nil
}

// sweep drops idle rate limiter entries.
func (app *Application) sweep(ctx context.Context) {
	ticker := time.NewTicker(app.config.Chat.RateWindow)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			app.limiter.Cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// Stop shuts down HTTP, closes live sockets, stops the hub and flushes the
// chat store.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info().Msg("shutting down")

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if app.stopSweep != nil {
		app.stopSweep()
	}
	app.registry.CloseAll()
	if err := app.messageHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("hub stop: %w", err))
	}
	if err := app.chatLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("chat close: %w", err))
	}

	app.log.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

// Addr is the bound listen address once started, else the configured one.
func (app *Application) Addr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}
