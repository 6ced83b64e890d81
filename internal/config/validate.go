package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Server validation
	if cfg.Server.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "server.baseUrl",
			Message: "baseUrl is required",
		})
	} else if u, err := url.Parse(cfg.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, ValidationIssue{
			Path:    "server.baseUrl",
			Message: fmt.Sprintf("must be an http(s) url, got %q", cfg.Server.BaseURL),
		})
	}

	if cfg.Server.ChannelURL != "" {
		u, err := url.Parse(cfg.Server.ChannelURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			issues = append(issues, ValidationIssue{
				Path:    "server.channelUrl",
				Message: fmt.Sprintf("must be a ws(s) url, got %q", cfg.Server.ChannelURL),
			})
		}
	}

	if cfg.Server.RequestTimeout < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "server.requestTimeout",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Server.RequestTimeout),
		})
	}

	// Channel validation
	validPolicies := []string{"queue", "reject"}
	if cfg.Channel.SendPolicy != "" && !slices.Contains(validPolicies, cfg.Channel.SendPolicy) {
		issues = append(issues, ValidationIssue{
			Path:    "channel.sendPolicy",
			Message: fmt.Sprintf("must be one of %v, got %q", validPolicies, cfg.Channel.SendPolicy),
		})
	}
	if cfg.Channel.SendPolicy == "queue" && cfg.Channel.QueueSize <= 0 {
		issues = append(issues, ValidationIssue{
			Path:    "channel.queueSize",
			Message: "queueSize must be positive when sendPolicy is queue",
		})
	}
	for path, v := range map[string]int{
		"channel.pingInterval":     cfg.Channel.PingInterval,
		"channel.writeTimeout":     cfg.Channel.WriteTimeout,
		"channel.handshakeTimeout": cfg.Channel.HandshakeTimeout,
		"timeline.reconcileWindow": cfg.Timeline.ReconcileWindow,
	} {
		if v < 0 {
			issues = append(issues, ValidationIssue{
				Path:    path,
				Message: fmt.Sprintf("must not be negative, got %d", v),
			})
		}
	}

	// Archive validation
	if cfg.Archive.Enabled && cfg.Archive.Path == "" {
		issues = append(issues, ValidationIssue{
			Path:    "archive.path",
			Message: "path is required when archive is enabled",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	slices.SortFunc(issues, func(a, b ValidationIssue) int {
		if a.Path < b.Path {
			return -1
		}
		if a.Path > b.Path {
			return 1
		}
		return 0
	})
	return issues
}
