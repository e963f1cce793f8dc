// Package config loads statusgen settings from an optional YAML file, STATUSGEN_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"statusgen/internal/logx"
	"statusgen/internal/session"
)

const envPrefix = "STATUSGEN"

type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Log       logx.Config         `mapstructure:"log"`
	Session   SessionConfig       `mapstructure:"session"`
	Redis     session.RedisConfig `mapstructure:"redis"`
	Export    ExportConfig        `mapstructure:"export"`
	Upload    UploadConfig        `mapstructure:"upload"`
	RateLimit RateLimitConfig     `mapstructure:"ratelimit"`
	Locale    string              `mapstructure:"locale"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SessionConfig struct {
	Store         string        `mapstructure:"store"` // "memory" or "redis"
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ExportConfig struct {
	Scale        float64       `mapstructure:"scale"`
	Quality      float64       `mapstructure:"quality"`
	ResetDelay   time.Duration `mapstructure:"reset_delay"`
	ChromePath   string        `mapstructure:"chrome_path"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
	// Stylesheets are extra stylesheet URLs inlined into exports after the
	// embedded ones.
	Stylesheets []string `mapstructure:"stylesheets"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "statusgen")
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.sweep_interval", "1m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", session.DefaultKeyPrefix)
	v.SetDefault("export.scale", 1.5)
	v.SetDefault("export.quality", 0.9)
	v.SetDefault("export.reset_delay", "2s")
	v.SetDefault("export.chrome_path", "")
	v.SetDefault("export.window_width", 480)
	v.SetDefault("export.window_height", 960)
	v.SetDefault("export.stylesheets", []string{})
	v.SetDefault("upload.max_bytes", 5*1024*1024)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("locale", "fr")
}

// Load reads the configuration. file may be empty, in which case config.yaml is
// looked up in ./config and the working directory; a missing file is not an error.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "PORT", envPrefix+"_SERVER_PORT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR", envPrefix+"_REDIS_ADDR")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Export.Scale <= 0 {
		return fmt.Errorf("export.scale must be positive, got %v", c.Export.Scale)
	}
	if c.Export.Quality <= 0 || c.Export.Quality > 1 {
		return fmt.Errorf("export.quality must be in (0, 1], got %v", c.Export.Quality)
	}
	return nil
}
