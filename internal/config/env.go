package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".appperms/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"appperms/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type TrackerEnv struct {
	// Locales in preference order, e.g. "ja-JP,en".
	Locales []string `envconfig:"LOCALES" default:"en"`
	// Watch refreshes packages when their manifests change on disk. Only
	// effective with local storage.
	Watch bool `envconfig:"WATCH" default:"true"`
	// RefreshInterval refreshes every tracked package periodically. Zero
	// disables it; S3 storage relies on it since it has no change events.
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s"`
	// RefreshConcurrency bounds the parallel refreshes of RefreshAll.
	RefreshConcurrency int `envconfig:"REFRESH_CONCURRENCY" default:"8"`
	// MaxTrackedViews bounds the number of package views kept in memory;
	// the least recently used view is dropped first.
	MaxTrackedViews int `envconfig:"MAX_TRACKED_VIEWS" default:"1024"`
}

type Env struct {
	BaseEnv
	StorageEnv
	TrackerEnv
}

const namespace = "APPPERMS"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	return ParseLogLevel(e.LogLevel)
}

// ParseLogLevel parses a slog level name, defaulting to debug.
func ParseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) IsLocal() bool {
	return e.Env == "local"
}
