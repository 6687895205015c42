package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	platformerrors "chunks-server-go/internal/platform/errors"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "CHUNKS_CONFIG"

const defaultConfigPath = "config.yaml"

// Loader reads YAML + environment configuration.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads ./config.yaml (or $CHUNKS_CONFIG).
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the config file path; an explicit path must exist.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path. Path is
// empty when no file was read.
type Result struct {
	Config *Config
	Path   string
}

// Load resolves configuration. Without an explicit path a missing
// config.yaml falls back to ENV + defaults.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		_ = godotenv.Load()
	}

	path := l.path
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	var cfg Config
	origin := ""
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "读取配置文件失败: "+path, err)
		}
		origin = path
	} else if explicit {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "配置文件不存在: "+path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.load", "读取环境变量失败", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "config.validate", "配置校验失败", err)
	}

	return &Result{Config: &cfg, Path: origin}, nil
}
