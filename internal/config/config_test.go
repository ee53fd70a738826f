package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchkeeper/internal/models"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("worker:\n  command: ./bot\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.False(t, cfg.Server.AuthEnabled())
	assert.Equal(t, "SIGTERM", cfg.Worker.StopSignal)
	assert.Equal(t, 5*time.Second, cfg.Worker.RestartDelayDuration())
	assert.Equal(t, 10*time.Second, cfg.Worker.StopTimeoutDuration())
	require.NotNil(t, cfg.Worker.AutoRestart)
	assert.True(t, *cfg.Worker.AutoRestart)
	assert.Equal(t, 24*time.Hour, cfg.Update.Interval())
	assert.Equal(t, ".", cfg.Update.Directory)
	assert.Equal(t, "origin", cfg.Update.Remote)
	assert.Equal(t, 10*time.Minute, cfg.Notifications.ThrottleWindow())
	assert.Equal(t, "watchkeeper.log", cfg.Logging.File)
	assert.Equal(t, 100, cfg.Logging.MaxLines)
	assert.Equal(t, "/", cfg.Resources.DiskPath)
}

func TestParse_FullFile(t *testing.T) {
	data := []byte(`
server:
  port: 9090
  username: admin
  password: secret
worker:
  command: node
  args: [index.js]
  directory: /srv/bot
  auto_restart: false
  restart_delay: 2
update:
  interval_days: 3
  branch: main
notifications:
  throttle_minutes: 15
  channels:
    - kind: telegram
      token: abc
      chat_id: "42"
      active: true
      dnd: true
    - name: ops
      kind: webhook
      url: https://example.invalid/hook
      active: false
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.True(t, cfg.Server.AuthEnabled())
	assert.False(t, *cfg.Worker.AutoRestart)
	assert.Equal(t, 2*time.Second, cfg.Worker.RestartDelayDuration())
	assert.Equal(t, "/srv/bot", cfg.Update.Directory, "update dir defaults to the worker dir")
	assert.Equal(t, 72*time.Hour, cfg.Update.Interval())
	assert.Equal(t, 15*time.Minute, cfg.Notifications.ThrottleWindow())

	require.Len(t, cfg.Notifications.Channels, 2)
	assert.Equal(t, "telegram-0", cfg.Notifications.Channels[0].Name)
	assert.True(t, cfg.Notifications.Channels[0].DND)
	assert.Equal(t, "ops", cfg.Notifications.Channels[1].Name)
	assert.False(t, cfg.Notifications.Channels[1].Active)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("BASIC_AUTH_USER", "u")
	t.Setenv("BASIC_AUTH_PASS", "p")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	t.Setenv("WEBHOOK_URL", "https://example.invalid/w")

	cfg, err := Parse([]byte("worker:\n  command: ./bot\n"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.True(t, cfg.Server.AuthEnabled())
	require.Len(t, cfg.Notifications.Channels, 2)
	assert.Equal(t, models.ChannelTelegram, cfg.Notifications.Channels[0].Kind)
	assert.True(t, cfg.Notifications.Channels[0].Active)
	assert.Equal(t, models.ChannelWebhook, cfg.Notifications.Channels[1].Kind)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing command", "worker: {}\n"},
		{"telegram without chat id", "worker: {command: x}\nnotifications:\n  channels:\n    - {kind: telegram, token: t}\n"},
		{"webhook without url", "worker: {command: x}\nnotifications:\n  channels:\n    - {kind: webhook}\n"},
		{"unknown kind", "worker: {command: x}\nnotifications:\n  channels:\n    - {kind: pigeon}\n"},
		{"broken yaml", "worker: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WATCHKEEPER_TEST_VAR=from-file\n"), 0o600))
	t.Setenv("WATCHKEEPER_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("WATCHKEEPER_TEST_VAR"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("WATCHKEEPER_TEST_VAR"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
