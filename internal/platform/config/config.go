package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root server configuration. Priority: ENV > YAML > env-default.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Web        WebConfig        `yaml:"web"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Settings   SettingsConfig   `yaml:"settings"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip"               env:"CHUNKS_SERVER_IP"               env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"CHUNKS_SERVER_PORT"             env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"CHUNKS_SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"     env:"CHUNKS_CORS_ORIGINS"            env-default:"*" env-separator:","`
}

type LogConfig struct {
	Level string `yaml:"log_level" env:"CHUNKS_LOG_LEVEL" env-default:"info"`
	Dir   string `yaml:"log_dir"   env:"CHUNKS_LOG_DIR"   env-default:"data/logs"`
	File  string `yaml:"log_file"  env:"CHUNKS_LOG_FILE"  env-default:"server.log"`
}

type WebConfig struct {
	StaticDir      string `yaml:"static_dir"       env:"CHUNKS_WEB_STATIC_DIR"       env-default:"web"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"CHUNKS_WEB_MAX_UPLOAD_BYTES" env-default:"1048576"`
	WebSocketPath  string `yaml:"websocket_path"   env:"CHUNKS_WEB_WEBSOCKET_PATH"   env-default:"/ws"`
}

// LLMConfig selects models per call kind. Credentials are per client and
// live in the settings store, never here.
type LLMConfig struct {
	DialogueModel  string        `yaml:"dialogue_model"  env:"CHUNKS_LLM_DIALOGUE_MODEL"  env-default:"gemini-2.0-flash-exp"`
	ChunkModel     string        `yaml:"chunk_model"     env:"CHUNKS_LLM_CHUNK_MODEL"     env-default:"gemini-exp-1206"`
	ConvertModel   string        `yaml:"convert_model"   env:"CHUNKS_LLM_CONVERT_MODEL"   env-default:"gemini-2.0-flash-exp"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CHUNKS_LLM_REQUEST_TIMEOUT" env-default:"120s"`
	StreamTimeout  time.Duration `yaml:"stream_timeout"  env:"CHUNKS_LLM_STREAM_TIMEOUT"  env-default:"0s"`
}

type GenerationConfig struct {
	ChunkDelay time.Duration `yaml:"chunk_delay" env:"CHUNKS_GENERATION_CHUNK_DELAY" env-default:"3s"`
}

type SettingsConfig struct {
	Driver string              `yaml:"driver" env:"CHUNKS_SETTINGS_DRIVER" env-default:"sqlite"`
	SQLite SettingsSQLiteStore `yaml:"sqlite"`
	Redis  SettingsRedisStore  `yaml:"redis"`
}

type SettingsSQLiteStore struct {
	DSN string `yaml:"dsn" env:"CHUNKS_SETTINGS_SQLITE_DSN" env-default:"data/chunks.db"`
}

type SettingsRedisStore struct {
	Addr     string `yaml:"addr"     env:"CHUNKS_SETTINGS_REDIS_ADDR"     env-default:"127.0.0.1:6379"`
	Username string `yaml:"username" env:"CHUNKS_SETTINGS_REDIS_USERNAME"`
	Password string `yaml:"password" env:"CHUNKS_SETTINGS_REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"CHUNKS_SETTINGS_REDIS_DB"       env-default:"0"`
	Prefix   string `yaml:"prefix"   env:"CHUNKS_SETTINGS_REDIS_PREFIX"   env-default:"chunks:settings:"`
}

var settingsDrivers = []string{"memory", "sqlite", "redis"}

// Validate checks the values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Web.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid web.max_upload_bytes: %d", c.Web.MaxUploadBytes)
	}
	if c.Generation.ChunkDelay < 0 {
		return fmt.Errorf("invalid generation.chunk_delay: %s", c.Generation.ChunkDelay)
	}
	if c.LLM.RequestTimeout < 0 || c.LLM.StreamTimeout < 0 {
		return fmt.Errorf("llm timeouts must not be negative")
	}
	if strings.TrimSpace(c.LLM.DialogueModel) == "" || strings.TrimSpace(c.LLM.ChunkModel) == "" {
		return fmt.Errorf("llm.dialogue_model and llm.chunk_model are required")
	}

	driver := strings.ToLower(strings.TrimSpace(c.Settings.Driver))
	known := false
	for _, d := range settingsDrivers {
		if d == driver {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unsupported settings driver: %q", c.Settings.Driver)
	}
	c.Settings.Driver = driver

	switch driver {
	case "sqlite":
		if strings.TrimSpace(c.Settings.SQLite.DSN) == "" {
			return fmt.Errorf("settings.sqlite.dsn is required for sqlite driver")
		}
	case "redis":
		if strings.TrimSpace(c.Settings.Redis.Addr) == "" {
			return fmt.Errorf("settings.redis.addr is required for redis driver")
		}
	}
	return nil
}
