package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("APPPERMS_API_KEY", "secret")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", env.Env)
	assert.True(t, env.IsLocal())
	assert.Equal(t, "3200", env.HTTPPort)
	assert.Equal(t, "local", env.StorageEnv.Type)
	assert.Equal(t, ".appperms/data", env.BaseDir)
	assert.Equal(t, []string{"en"}, env.Locales)
	assert.True(t, env.Watch)
	assert.Zero(t, env.RefreshInterval)
	assert.Equal(t, 8, env.RefreshConcurrency)
	assert.Equal(t, 1024, env.MaxTrackedViews)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("APPPERMS_API_KEY", "secret")
	t.Setenv("APPPERMS_ENV", "production")
	t.Setenv("APPPERMS_STORAGE_TYPE", "s3")
	t.Setenv("APPPERMS_S3_BUCKET", "perms")
	t.Setenv("APPPERMS_LOCALES", "ja-JP,en")
	t.Setenv("APPPERMS_WATCH", "false")
	t.Setenv("APPPERMS_REFRESH_INTERVAL", "30s")
	t.Setenv("APPPERMS_LOG_LEVEL", "warn")
	t.Setenv("APPPERMS_REFRESH_CONCURRENCY", "2")
	t.Setenv("APPPERMS_MAX_TRACKED_VIEWS", "64")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.False(t, env.IsLocal())
	assert.Equal(t, "s3", env.StorageEnv.Type)
	assert.Equal(t, "perms", env.S3Bucket)
	assert.Equal(t, []string{"ja-JP", "en"}, env.Locales)
	assert.False(t, env.Watch)
	assert.Equal(t, 30*time.Second, env.RefreshInterval)
	assert.Equal(t, slog.LevelWarn, env.SlogLevel())
	assert.Equal(t, 2, env.RefreshConcurrency)
	assert.Equal(t, 64, env.MaxTrackedViews)
}

func TestLoadEnv_RequiresAPIKey(t *testing.T) {
	t.Setenv("APPPERMS_API_KEY", "")
	require.NoError(t, os.Unsetenv("APPPERMS_API_KEY"))
	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("info"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("loud"))

	var nilEnv *BaseEnv
	assert.Equal(t, slog.LevelDebug, nilEnv.SlogLevel())
}
