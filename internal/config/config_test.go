package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8083, cfg.Port)
	assert.Equal(t, PresenceBackendMemory, cfg.Presence.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Presence.IdleThreshold)
	assert.Equal(t, 30*time.Second, cfg.Presence.SweepInterval)
	assert.Equal(t, 50, cfg.WS.SnapshotSize)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PRESENCE_BACKEND", "REDIS")
	t.Setenv("PRESENCE_IDLE_THRESHOLD", "3s")
	t.Setenv("SNAPSHOT_SIZE", "10")
	t.Setenv("WS_WRITE_TIMEOUT", "garbage")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, PresenceBackendRedis, cfg.Presence.Backend)
	assert.Equal(t, 3*time.Second, cfg.Presence.IdleThreshold)
	assert.Equal(t, 10, cfg.WS.SnapshotSize)
	assert.Equal(t, 10*time.Second, cfg.WS.WriteTimeout)
}

func TestFromViperClampsSizes(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SNAPSHOT_SIZE", -1)
	v.Set("WS_SEND_BUFFER", 0)

	cfg := fromViper(v)
	assert.Equal(t, 50, cfg.WS.SnapshotSize)
	assert.Equal(t, 64, cfg.WS.SendBuffer)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
