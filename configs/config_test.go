package configs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func TestPersistCredentialsToConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vibbin.toml")
	require.NoError(t, os.WriteFile(file, defaultConfigFile, 0o600))

	require.NoError(t, PersistCredentialsToConfig(file, "alice", "s3cret", "http://calls.example.com"))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	var cfg struct {
		Port    int `toml:"port"`
		Account struct {
			Username string `toml:"username"`
			Password string `toml:"password"`
			Server   string `toml:"server"`
		} `toml:"account"`
		Call struct {
			RingTimeout string `toml:"ring-timeout"`
		} `toml:"call"`
	}
	require.NoError(t, toml.Unmarshal(data, &cfg))
	assert.Equal(t, "alice", cfg.Account.Username)
	assert.Equal(t, "s3cret", cfg.Account.Password)
	assert.Equal(t, "http://calls.example.com", cfg.Account.Server)

	// untouched settings survive
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "45s", cfg.Call.RingTimeout)
}

func TestPersistCredentialsToConfig_MissingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vibbin.toml")
	require.NoError(t, PersistCredentialsToConfig(file, "bob", "pw", ""))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bob")
}

func TestEmbeddedDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("toml")
	require.NoError(t, viper.ReadConfig(bytesReader(defaultConfigFile)))

	timeouts := GetCallTimeouts()
	assert.Equal(t, 45*time.Second, timeouts.NoAnswer)
	assert.Equal(t, 45*time.Second, timeouts.Ring)

	c := MediaConstraints()
	assert.Equal(t, 320, c.Width)
	assert.Equal(t, 240, c.Height)
	assert.InDelta(t, 15, c.FrameRate, 0.01)
	assert.InDelta(t, 20, c.MaxFrameRate, 0.01)
	assert.True(t, c.EchoCancellation)

	pc, err := PeerConfiguration()
	require.NoError(t, err)
	assert.Equal(t, uint8(10), pc.ICECandidatePoolSize)
	assert.NotEmpty(t, pc.ICEServers)
}

func TestCallTimeouts_Override(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("call.no-answer-timeout", "5s")

	timeouts := GetCallTimeouts()
	assert.Equal(t, 5*time.Second, timeouts.NoAnswer)
	assert.Equal(t, 45*time.Second, timeouts.Ring)
}
