package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "CODEROOM"

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`
	Secret     string `mapstructure:"secret"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`

	// Backpressure is "kick" or "drop".
	Backpressure string `mapstructure:"backpressure_policy"`

	ChatHistory      int           `mapstructure:"chat_history"`
	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`

	ICEServers     []string `mapstructure:"ice_servers"`
	TURNUsername   string   `mapstructure:"turn_username"`
	TURNCredential string   `mapstructure:"turn_credential"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "change-me")
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("backpressure_policy", "kick")
	v.SetDefault("chat_history", 200)
	v.SetDefault("chat_rate_limit", 20)
	v.SetDefault("chat_rate_interval", "10s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("turn_username", "")
	v.SetDefault("turn_credential", "")
}

// Load reads .env (optional), then config/config.<CONFIG_ENV>.yaml, then
// CODEROOM_* environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load without the .env step and with an explicit file. A missing file
// is not an error.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod:
		return fmt.Errorf("ping_period (%s) must be positive and below pong_wait (%s)", c.PingPeriod, c.PongWait)
	case c.WriteWait <= 0:
		return fmt.Errorf("invalid write_wait %s", c.WriteWait)
	case c.SendBuffer <= 0:
		return fmt.Errorf("invalid send_buffer %d", c.SendBuffer)
	case c.ReadLimit <= 0:
		return fmt.Errorf("invalid read_limit %d", c.ReadLimit)
	case c.Backpressure != "kick" && c.Backpressure != "drop":
		return fmt.Errorf("backpressure_policy must be kick or drop, got %q", c.Backpressure)
	}
	return nil
}
