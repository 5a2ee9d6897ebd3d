package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 100, cfg.TickRate)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval())
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, time.Second, cfg.ChatRateInterval)
	assert.Equal(t, 6*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: wss://voice.example.test/ws
room: lobby
sample_rate: 16000
tick_rate: 60
ice_servers: []
ice_transport_policy: relay
chat_rate_interval: 250ms
`), 0o600))

	cfg, err := LoadFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "wss://voice.example.test/ws", cfg.URL)
	assert.Equal(t, "lobby", cfg.Room)
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Empty(t, cfg.ICEServers)
	assert.Equal(t, "relay", cfg.ICETransportPolicy)
	assert.Equal(t, 250*time.Millisecond, cfg.ChatRateInterval)
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("VOICELINK_TOKEN", "from-env")
	t.Setenv("VOICELINK_NAME", "neo")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "neo", cfg.Name)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero tick":      "tick_rate: 0\n",
		"odd rate":       "sample_rate: 44101\n",
		"non-opus rate":  "sample_rate: 44100\n",
		"unknown policy": "ice_transport_policy: sometimes\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := LoadFile(path, nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadFileFlagsOverride(t *testing.T) {
	t.Setenv("VOICELINK_ROOM", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("room", "", "")
	fs.Int("sample-rate", 48000, "")
	fs.String("url", "", "")
	require.NoError(t, fs.Parse([]string{"--room", "from-flag", "--sample-rate", "24000"}))

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Room)
	assert.Equal(t, 24000, cfg.SampleRate)
	// unset flags keep the default
	assert.Equal(t, "ws://localhost:8080/ws", cfg.URL)
}
