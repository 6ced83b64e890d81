package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "http://localhost:5000/api", cfg.Server.BaseURL)
	assert.Equal(t, "queue", cfg.Channel.SendPolicy)
	assert.Equal(t, 64, cfg.Channel.QueueSize)
	assert.Equal(t, 30, cfg.Timeline.ReconcileWindow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, "queue", cfg.Channel.SendPolicy)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  baseUrl: https://chat.example.com/api
  requestTimeout: 5
auth:
  token: abc
  userId: u-1
channel:
  sendPolicy: reject
  pingInterval: 5
timeline:
  reconcileWindow: 10
archive:
  enabled: true
  path: /tmp/t.db
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com/api", cfg.Server.BaseURL)
	assert.Equal(t, 5, cfg.Server.RequestTimeout)
	assert.Equal(t, "abc", cfg.Auth.Token)
	assert.Equal(t, "u-1", cfg.Auth.UserID)
	assert.Equal(t, "reject", cfg.Channel.SendPolicy)
	assert.Equal(t, 5, cfg.Channel.PingInterval)
	assert.Equal(t, 10, cfg.Timeline.ReconcileWindow)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)

	// Defaults fill unset fields
	assert.Equal(t, 64, cfg.Channel.QueueSize)
	assert.Equal(t, 10, cfg.Channel.WriteTimeout)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_BASE_URL", "http://override:1/api")
	t.Setenv("PARLEY_TOKEN", "env-token")
	t.Setenv("PARLEY_SEND_POLICY", "REJECT")
	t.Setenv("PARLEY_QUEUE_SIZE", "7")
	t.Setenv("PARLEY_LOG_LEVEL", "DEBUG")

	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "http://override:1/api", cfg.Server.BaseURL)
	assert.Equal(t, "env-token", cfg.Auth.Token)
	assert.Equal(t, "reject", cfg.Channel.SendPolicy)
	assert.Equal(t, 7, cfg.Channel.QueueSize)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadExpandsTokenEnvVar(t *testing.T) {
	t.Setenv("MY_CHAT_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  token: ${MY_CHAT_TOKEN}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.Token)
}

func TestExpandEnvVars_UnsetLeftAlone(t *testing.T) {
	assert.Equal(t, "${PARLEY_DEFINITELY_UNSET_VAR}", expandEnvVars("${PARLEY_DEFINITELY_UNSET_VAR}"))
}

func TestResolveChannelURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{"explicit", ServerConfig{BaseURL: "http://a/api", ChannelURL: "wss://push.example.com/socket"}, "wss://push.example.com/socket"},
		{"strip api", ServerConfig{BaseURL: "http://localhost:5000/api"}, "ws://localhost:5000/ws"},
		{"trailing slash", ServerConfig{BaseURL: "http://localhost:5000/api/"}, "ws://localhost:5000/ws"},
		{"https", ServerConfig{BaseURL: "https://chat.example.com/api"}, "wss://chat.example.com/ws"},
		{"no api segment", ServerConfig{BaseURL: "http://host/v1"}, "ws://host/v1/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.ResolveChannelURL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveChannelURL_MissingBase(t *testing.T) {
	_, err := ServerConfig{}.ResolveChannelURL()
	assert.Error(t, err)
}

func TestDurations(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "15s", cfg.Server.RequestTimeoutDuration().String())
	assert.Equal(t, "25s", cfg.Channel.PingIntervalDuration().String())
	assert.Equal(t, "10s", cfg.Channel.WriteTimeoutDuration().String())
	assert.Equal(t, "30s", cfg.Timeline.ReconcileWindowDuration().String())
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	raw, err := LoadRaw(path)
	require.NoError(t, err)
	assert.Empty(t, raw)

	SetValueAtPath(raw, []string{"channel", "sendPolicy"}, "reject")
	require.NoError(t, SaveRaw(path, raw))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "reject", cfg.Channel.SendPolicy)
}
