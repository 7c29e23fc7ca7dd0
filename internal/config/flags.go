package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// AddFlags registers command line overrides on fs. Only flags set
// explicitly take effect, see ApplyFlags.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("host", "", "HTTP listen host")
	fs.IntP("port", "p", 0, "HTTP listen port")
	fs.String("public-url", "", "base URL used in session links")
	fs.String("chat-backend", "", "chat store: json or sqlite")
	fs.String("chat-path", "", "chat history file for the json backend")
	fs.String("db-path", "", "database file for the sqlite backend")
	fs.Int("max-participants", 0, "admitted participants per session, teacher included")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Bool("log-pretty", false, "human readable console logs")
	fs.Bool("metrics", true, "serve Prometheus metrics")
}

// ApplyFlags copies the flags set on fs into c and validates the result.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "host":
			c.HTTP.Host = f.Value.String()
		case "port":
			c.HTTP.Port, err = fs.GetInt(f.Name)
		case "public-url":
			c.HTTP.PublicURL = f.Value.String()
		case "chat-backend":
			c.Chat.Backend = f.Value.String()
		case "chat-path":
			c.Chat.Path = f.Value.String()
		case "db-path":
			c.Database.Path = f.Value.String()
		case "max-participants":
			c.Session.MaxParticipants, err = fs.GetInt(f.Name)
		case "log-level":
			c.Log.Level = f.Value.String()
		case "log-pretty":
			c.Log.Pretty, err = fs.GetBool(f.Name)
		case "metrics":
			c.Metrics.Enabled, err = fs.GetBool(f.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid flag: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
