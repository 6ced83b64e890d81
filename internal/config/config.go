package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:        "http://localhost:5000/api",
			RequestTimeout: 15,
		},
		Channel: ChannelConfig{
			SendPolicy:       "queue",
			QueueSize:        64,
			PingInterval:     25,
			WriteTimeout:     10,
			HandshakeTimeout: 10,
		},
		Timeline: TimelineConfig{
			ReconcileWindow: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// ResolveChannelURL returns the push channel URL. An explicit channelUrl wins;
// otherwise it is derived from baseUrl by switching to the ws scheme, dropping a
// trailing /api segment and appending /ws.
func (s ServerConfig) ResolveChannelURL() (string, error) {
	if s.ChannelURL != "" {
		return s.ChannelURL, nil
	}
	if s.BaseURL == "" {
		return "", &ConfigError{Message: "server.baseUrl is required to derive channel url"}
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", &ConfigError{Message: "invalid server.baseUrl: " + err.Error()}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	p := strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api")
	u.Path = p + "/ws"
	return u.String(), nil
}
