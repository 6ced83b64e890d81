package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets the bearer token be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Auth.Token = expandEnvVars(cfg.Auth.Token)
	cfg.Auth.UserID = expandEnvVars(cfg.Auth.UserID)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = d.Server.BaseURL
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = d.Server.RequestTimeout
	}
	if cfg.Channel.SendPolicy == "" {
		cfg.Channel.SendPolicy = d.Channel.SendPolicy
	}
	if cfg.Channel.QueueSize == 0 {
		cfg.Channel.QueueSize = d.Channel.QueueSize
	}
	if cfg.Channel.PingInterval == 0 {
		cfg.Channel.PingInterval = d.Channel.PingInterval
	}
	if cfg.Channel.WriteTimeout == 0 {
		cfg.Channel.WriteTimeout = d.Channel.WriteTimeout
	}
	if cfg.Channel.HandshakeTimeout == 0 {
		cfg.Channel.HandshakeTimeout = d.Channel.HandshakeTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads PARLEY_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARLEY_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("PARLEY_CHANNEL_URL"); v != "" {
		cfg.Server.ChannelURL = v
	}
	if v := os.Getenv("PARLEY_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("PARLEY_USER_ID"); v != "" {
		cfg.Auth.UserID = v
	}
	if v := os.Getenv("PARLEY_SEND_POLICY"); v != "" {
		cfg.Channel.SendPolicy = strings.ToLower(v)
	}
	if v := os.Getenv("PARLEY_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Channel.QueueSize = n
		}
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
