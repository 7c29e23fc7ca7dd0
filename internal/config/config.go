package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kkyr/fig"
	"github.com/pion/stun/v3"
	"github.com/rs/zerolog"
)

// EnvPrefix namespaces environment overrides, e.g. LIVECLASS_HTTP_PORT.
const EnvPrefix = "LIVECLASS"

// Chat storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the complete server configuration.
type Config struct {
	HTTP      HTTPConfig      `fig:"http"`
	WebSocket WebSocketConfig `fig:"websocket"`
	Session   SessionConfig   `fig:"session"`
	Chat      ChatConfig      `fig:"chat"`
	Database  DatabaseConfig  `fig:"database"`
	API       APIConfig       `fig:"api"`
	ICE       ICEConfig       `fig:"ice"`
	Log       LogConfig       `fig:"log"`
	Metrics   MetricsConfig   `fig:"metrics"`
}

type HTTPConfig struct {
	Host            string        `fig:"host"`
	Port            int           `fig:"port"`
	ReadTimeout     time.Duration `fig:"read_timeout"`
	WriteTimeout    time.Duration `fig:"write_timeout"`
	ShutdownTimeout time.Duration `fig:"shutdown_timeout"`
	// PublicURL prefixes the session links handed out by the API.
	PublicURL string `fig:"public_url"`
	// AllowedOrigins limits browser origins for CORS and the WebSocket
	// upgrade. Empty or "*" allows any origin.
	AllowedOrigins []string `fig:"allowed_origins"`
}

// WebSocketConfig tunes the per-connection transport.
type WebSocketConfig struct {
	PingInterval   time.Duration `fig:"ping_interval"`
	ReadTimeout    time.Duration `fig:"read_timeout"`
	WriteTimeout   time.Duration `fig:"write_timeout"`
	BufferSize     int           `fig:"buffer_size"`
	MaxMessageSize int64         `fig:"max_message_size"`
}

// SessionConfig holds classroom defaults applied to new sessions.
type SessionConfig struct {
	// MaxParticipants caps admitted participants including the teacher.
	// Zero disables the cap.
	MaxParticipants int           `fig:"max_participants"`
	StrokeThrottle  time.Duration `fig:"stroke_throttle"`
}

type ChatConfig struct {
	Backend    string        `fig:"backend"`
	Path       string        `fig:"path"`
	Retention  time.Duration `fig:"retention"`
	MaxLength  int           `fig:"max_length"`
	RateLimit  int           `fig:"rate_limit"`
	RateWindow time.Duration `fig:"rate_window"`
}

// DatabaseConfig is used when chat.backend is sqlite.
type DatabaseConfig struct {
	Path    string        `fig:"path"`
	Timeout time.Duration `fig:"timeout"`
}

type APIConfig struct {
	// Token, when set, is required as a bearer token to create sessions.
	Token string `fig:"token"`
}

type ICEConfig struct {
	Servers []ICEServer `fig:"servers"`
}

// ICEServer mirrors RTCIceServer.
type ICEServer struct {
	URLs       []string `fig:"urls"`
	Username   string   `fig:"username"`
	Credential string   `fig:"credential"`
}

type LogConfig struct {
	Level  string `fig:"level"`
	Pretty bool   `fig:"pretty"`
}

type MetricsConfig struct {
	Enabled bool   `fig:"enabled"`
	Path    string `fig:"path"`
}

// DefaultConfig returns settings suitable for a single classroom server.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PublicURL:       "http://localhost:3000",
		},
		WebSocket: WebSocketConfig{
			PingInterval:   25 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     256,
			MaxMessageSize: 1 << 20,
		},
		Session: SessionConfig{
			MaxParticipants: 11,
			StrokeThrottle:  20 * time.Millisecond,
		},
		Chat: ChatConfig{
			Backend:    BackendJSON,
			Path:       "./data/chat-history.json",
			Retention:  7 * 24 * time.Hour,
			MaxLength:  1000,
			RateLimit:  100,
			RateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:    "./data/liveclass.db",
			Timeout: 30 * time.Second,
		},
		ICE: ICEConfig{
			Servers: []ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP shutdown timeout must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}

	if c.Session.MaxParticipants < 0 {
		return fmt.Errorf("session max participants cannot be negative")
	}
	if c.Session.StrokeThrottle < 0 {
		return fmt.Errorf("stroke throttle cannot be negative")
	}

	switch c.Chat.Backend {
	case BackendJSON:
		if c.Chat.Path == "" {
			return fmt.Errorf("chat path cannot be empty")
		}
	case BackendSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
		if c.Database.Timeout <= 0 {
			return fmt.Errorf("database timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown chat backend %q", c.Chat.Backend)
	}
	if c.Chat.Retention <= 0 {
		return fmt.Errorf("chat retention must be positive")
	}
	if c.Chat.MaxLength <= 0 {
		return fmt.Errorf("chat max length must be positive")
	}
	if c.Chat.RateLimit <= 0 || c.Chat.RateWindow <= 0 {
		return fmt.Errorf("chat rate limit and window must be positive")
	}

	for i, s := range c.ICE.Servers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("ICE server %d has no urls", i)
		}
		for _, u := range s.URLs {
			uri, err := stun.ParseURI(u)
			if err != nil {
				return fmt.Errorf("ICE server %d url %q: %w", i, u, err)
			}
			if (uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS) && s.Username == "" {
				return fmt.Errorf("ICE server %d url %q: TURN requires a username", i, u)
			}
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with /")
	}
	return nil
}

// Load reads config.yaml from path (or the default search dirs when path is
// empty) on top of DefaultConfig, applies LIVECLASS_ environment overrides
// and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	conf := DefaultConfig()

	opts := []fig.Option{fig.UseEnv(EnvPrefix)}
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			dir, file := filepath.Split(path)
			if dir == "" {
				dir = "."
			}
			opts = append(opts, fig.File(file), fig.Dirs(dir))
		} else {
			opts = append(opts, fig.Dirs(path))
		}
	} else {
		opts = append(opts, fig.Dirs(".", "configs"))
	}

	err := fig.Load(conf, opts...)
	if errors.Is(err, fig.ErrFileNotFound) {
		conf = DefaultConfig()
		err = fig.Load(conf, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return conf, nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
