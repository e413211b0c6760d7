package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omochice/chatanon/internal/config"
)

func TestFromEnviron_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := config.FromEnviron()
	req.NoError(err)
	req.Equal("ws://localhost:3001/ws", cfg.WSURL)
	req.Equal("http://localhost:3001", cfg.APIURL)
	req.Equal(".chatanon", cfg.DataDir)
	req.Equal("INFO", cfg.LogLevel)
	req.Equal(5, cfg.MaxAttempts)
	req.Equal(3*time.Second, cfg.BaseDelay)
	req.Equal(10*time.Second, cfg.DialTimeout)
	req.Equal(5*time.Second, cfg.WriteTimeout)
	req.Equal(30*time.Second, cfg.OnlinePollInterval)
	req.Empty(cfg.MetricsAddr)
}

func TestFromEnviron_Overrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("CHATANON_WS_URL", "wss://chat.example.com/ws")
	t.Setenv("RECONNECT_MAX_ATTEMPTS", "2")
	t.Setenv("RECONNECT_BASE_DELAY", "250ms")
	t.Setenv("METRICS_ADDR", "127.0.0.1:9100")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := config.FromEnviron()
	req.NoError(err)
	req.Equal("wss://chat.example.com/ws", cfg.WSURL)
	req.Equal(2, cfg.MaxAttempts)
	req.Equal(250*time.Millisecond, cfg.BaseDelay)
	req.Equal("127.0.0.1:9100", cfg.MetricsAddr)
	req.Equal("DEBUG", cfg.LogLevel)
}

func TestFromEnviron_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "log level", key: "LOG_LEVEL", value: "LOUD"},
		{name: "negative attempts", key: "RECONNECT_MAX_ATTEMPTS", value: "-1"},
		{name: "not a duration", key: "DIAL_TIMEOUT", value: "soon"},
		{name: "bad metrics address", key: "METRICS_ADDR", value: "nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.FromEnviron()
			require.Error(t, err)
		})
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	req.NoError(os.WriteFile(filepath.Join(dir, ".env"), []byte("CHATANON_DATA_DIR=/tmp/chatanon-test\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("CHATANON_DATA_DIR") })

	cfg, err := config.Load()
	req.NoError(err)
	req.Equal("/tmp/chatanon-test", cfg.DataDir)
}
