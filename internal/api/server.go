// Package api serves the HTTP side of the server: session creation and
// lookup, ICE configuration, health, metrics and the WebSocket upgrade.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"liveclass/internal/metrics"
	"liveclass/internal/roster"
	"liveclass/internal/session"
	"liveclass/pkg/types"
)

// Hub runs closures on the goroutine that owns session state.
type Hub interface {
	Do(ctx context.Context, fn func()) error
	Running() bool
}

// ChatStats is read on the hub goroutine.
type ChatStats interface {
	Len() int
	Backend() string
}

// HealthChecker is implemented by chat stores that can check their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Options are the HTTP-facing settings.
type Options struct {
	PublicURL      string
	Token          string
	AllowedOrigins []string
	MetricsPath    string
	ICEServers     []webrtc.ICEServer
	RequestTimeout time.Duration
}

// Deps are the components the handlers read from.
type Deps struct {
	Hub          Hub
	Sessions     *session.Store
	Participants *roster.Participants
	Waiting      *roster.Waiting
	Connections  interface{ Stats() map[string]int }
	Chat         ChatStats
	ChatHealth   HealthChecker
	WebSocket    http.Handler
	Metrics      *metrics.Metrics
}

type Server struct {
	engine  *gin.Engine
	deps    Deps
	opts    Options
	log     zerolog.Logger
	started time.Time
}

// SessionView is the public shape of a session.
type SessionView struct {
	ID               string               `json:"id"`
	CreatedAt        time.Time            `json:"createdAt"`
	FocusMode        bool                 `json:"focusMode"`
	PDFState         *types.DocumentState `json:"pdfState"`
	ParticipantCount int                  `json:"participantCount"`
	WaitingCount     int                  `json:"waitingCount"`
	MaxParticipants  int                  `json:"maxParticipants"`
}

type CreateSessionResponse struct {
	SessionID  string      `json:"sessionId"`
	SessionURL string      `json:"sessionUrl"`
	Session    SessionView `json:"session"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Uptime      string         `json:"uptime"`
	Connections map[string]int `json:"connections"`
	Sessions    int            `json:"sessions"`
	Chat        ChatHealth     `json:"chat"`
}

type ChatHealth struct {
	Backend  string `json:"backend"`
	Messages int    `json:"messages"`
	Status   string `json:"status"`
}

var errHubUnavailable = errors.New("hub unavailable")

func NewServer(deps Deps, opts Options, log zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	s := &Server{
		engine:  gin.New(),
		deps:    deps,
		opts:    opts,
		log:     log,
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.engine.Use(gin.Recovery(), requestLogger(s.log), cors(s.opts.AllowedOrigins))

	api := s.engine.Group("/api")
	api.POST("/sessions", bearerAuth(s.opts.Token), s.createSession)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id", s.getSession)
	api.GET("/ice-servers", s.iceServers)

	s.engine.GET("/health", s.health)
	if s.deps.Metrics != nil && s.opts.MetricsPath != "" {
		s.engine.GET(s.opts.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}
	if s.deps.WebSocket != nil {
		s.engine.GET("/ws", gin.WrapH(s.deps.WebSocket))
	}
}

// onHub runs fn on the hub goroutine with the request timeout.
func (s *Server) onHub(c *gin.Context, fn func()) error {
	if s.deps.Hub == nil || !s.deps.Hub.Running() {
		return errHubUnavailable
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()
	return s.deps.Hub.Do(ctx, fn)
}

func (s *Server) createSession(c *gin.Context) {
	var view SessionView
	var createErr error
	err := s.onHub(c, func() {
		st, err := s.deps.Sessions.Create("")
		if err != nil {
			createErr = err
			return
		}
		view = s.viewOf(st)
	})
	if err == nil {
		err = createErr
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create session")
		sendError(c, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.log.Info().Str("session", view.ID).Msg("session created")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": CreateSessionResponse{
			SessionID:  view.ID,
			SessionURL: strings.TrimRight(s.opts.PublicURL, "/") + "/live/" + view.ID,
			Session:    view,
		},
	})
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	var view SessionView
	var found bool
	err := s.onHub(c, func() {
		st, ok := s.deps.Sessions.Get(id)
		if !ok {
			return
		}
		view, found = s.viewOf(st), true
	})
	if err != nil {
		sendError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !found {
		sendError(c, http.StatusNotFound, "session not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

func (s *Server) listSessions(c *gin.Context) {
	var views []SessionView
	err := s.onHub(c, func() {
		views = make([]SessionView, 0, s.deps.Sessions.Len())
		for _, id := range s.deps.Sessions.IDs() {
			st, _ := s.deps.Sessions.Get(id)
			views = append(views, s.viewOf(st))
		}
	})
	if err != nil {
		sendError(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": views})
}

func (s *Server) iceServers(c *gin.Context) {
	servers := s.opts.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": servers})
}

func (s *Server) health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Chat:      ChatHealth{Status: "healthy"},
	}
	if s.deps.Connections != nil {
		resp.Connections = s.deps.Connections.Stats()
	}

	err := s.onHub(c, func() {
		resp.Sessions = s.deps.Sessions.Len()
		if s.deps.Chat != nil {
			resp.Chat.Backend = s.deps.Chat.Backend()
			resp.Chat.Messages = s.deps.Chat.Len()
		}
	})
	if err != nil {
		resp.Status = "unhealthy"
	}

	if s.deps.ChatHealth != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
		defer cancel()
		if err := s.deps.ChatHealth.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Chat.Status = "error: " + err.Error()
		}
	}

	code := http.StatusOK
	if resp.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// viewOf must run on the hub goroutine.
func (s *Server) viewOf(st *session.State) SessionView {
	return SessionView{
		ID:               st.ID,
		CreatedAt:        st.CreatedAt,
		FocusMode:        st.FocusMode,
		PDFState:         st.Document(),
		ParticipantCount: s.deps.Participants.Count(st.ID),
		WaitingCount:     s.deps.Waiting.Count(st.ID),
		MaxParticipants:  st.MaxParticipants,
	}
}

func sendError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": message})
}

// bearerAuth accepts every request when token is empty.
func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			sendError(c, http.StatusUnauthorized, "authorization required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			sendError(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Next()
	}
}

func cors(allowed []string) gin.HandlerFunc {
	anyOrigin := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && set[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
