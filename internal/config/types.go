package config

import "time"

// Config is the root configuration for parley.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`
	Channel  ChannelConfig  `yaml:"channel,omitempty"`
	Timeline TimelineConfig `yaml:"timeline,omitempty"`
	Archive  ArchiveConfig  `yaml:"archive,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig points at the chat backend.
type ServerConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`    // REST root, e.g. http://localhost:5000/api
	ChannelURL     string `yaml:"channelUrl,omitempty"` // push channel; derived from baseUrl when empty
	RequestTimeout int    `yaml:"requestTimeout,omitempty"` // seconds
}

// AuthConfig carries the credentials issued by the auth service.
type AuthConfig struct {
	Token  string `yaml:"token,omitempty"`
	UserID string `yaml:"userId,omitempty"`
}

// ChannelConfig controls the push channel.
type ChannelConfig struct {
	SendPolicy       string `yaml:"sendPolicy,omitempty"` // "queue" | "reject"
	QueueSize        int    `yaml:"queueSize,omitempty"`
	PingInterval     int    `yaml:"pingInterval,omitempty"`     // seconds
	WriteTimeout     int    `yaml:"writeTimeout,omitempty"`     // seconds
	HandshakeTimeout int    `yaml:"handshakeTimeout,omitempty"` // seconds
}

// TimelineConfig controls message reconciliation.
type TimelineConfig struct {
	ReconcileWindow int `yaml:"reconcileWindow,omitempty"` // seconds
}

// ArchiveConfig controls the local transcript archive kept by the CLI.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// RequestTimeoutDuration returns the REST request timeout.
func (s ServerConfig) RequestTimeoutDuration() time.Duration { return seconds(s.RequestTimeout) }

// PingIntervalDuration returns the keepalive ping interval.
func (c ChannelConfig) PingIntervalDuration() time.Duration { return seconds(c.PingInterval) }

// WriteTimeoutDuration returns the per-frame write deadline.
func (c ChannelConfig) WriteTimeoutDuration() time.Duration { return seconds(c.WriteTimeout) }

// HandshakeTimeoutDuration returns the dial handshake timeout.
func (c ChannelConfig) HandshakeTimeoutDuration() time.Duration { return seconds(c.HandshakeTimeout) }

// ReconcileWindowDuration returns the optimistic reconciliation tolerance.
func (t TimelineConfig) ReconcileWindowDuration() time.Duration { return seconds(t.ReconcileWindow) }
