package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret        string        `mapstructure:"secret"`
	RequireExpiry bool          `mapstructure:"require_expiry"`
	Leeway        time.Duration `mapstructure:"leeway"`
	SubjectClaims []string      `mapstructure:"subject_claims"`
}

type SignalingConfig struct {
	ValidateRelays   bool          `mapstructure:"validate_relays"`
	ValidateSDP      bool          `mapstructure:"validate_sdp"`
	RateLimit        int           `mapstructure:"rate_limit"`
	RateInterval     time.Duration `mapstructure:"rate_interval"`
	SlowClientPolicy string        `mapstructure:"slow_client_policy"`
}

type LiveConfig struct {
	MaxTitleLen int `mapstructure:"max_title_len"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	InboxSize  int           `mapstructure:"inbox_size"`

	Log        LogConfig       `mapstructure:"log"`
	Auth       AuthConfig      `mapstructure:"auth"`
	Signaling  SignalingConfig `mapstructure:"signaling"`
	Live       LiveConfig      `mapstructure:"live"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
	ICEServers []ICEServer     `mapstructure:"ice_servers"`

	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("inbox_size", 1024)

	v.SetDefault("log.level", "info")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.require_expiry", true)
	v.SetDefault("auth.leeway", "30s")
	v.SetDefault("auth.subject_claims", []string{"sub", "user_id", "userId", "id"})

	v.SetDefault("signaling.validate_relays", true)
	v.SetDefault("signaling.validate_sdp", true)
	v.SetDefault("signaling.rate_limit", 50)
	v.SetDefault("signaling.rate_interval", "1s")
	v.SetDefault("signaling.slow_client_policy", "drop")

	v.SetDefault("live.max_title_len", 120)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// Load reads, in increasing priority: defaults, the config file
// (--config or config/config.<CONFIG_ENV>.yaml), HUB_* environment, flags.
// A .env file in the working directory is loaded into the environment first.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("rendezvous", pflag.ContinueOnError)
	path := fs.String("config", "", "path to a config file")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("mode", "release", "gin mode: debug, release or test")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName := *path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("HUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("auth.secret", "HUB_AUTH_SECRET", "JWT_SECRET"); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("port", fs.Lookup("port")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("mode", fs.Lookup("mode")); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if *path != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", v.ConfigFileUsed()).Msg("config loaded")
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("log_level", cfg.Log.Level).Msg("config ready")
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.v = v
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		errs = append(errs, errors.New("ping_period must be positive and shorter than pong_wait"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.Signaling.RateLimit < 0 {
		errs = append(errs, errors.New("signaling.rate_limit must not be negative"))
	}
	switch c.Signaling.SlowClientPolicy {
	case "drop", "kick":
	default:
		errs = append(errs, fmt.Errorf("unknown signaling.slow_client_policy %q", c.Signaling.SlowClientPolicy))
	}
	return errors.Join(errs...)
}

// Watch calls fn with the re-read config whenever the file changes.
// Invalid edits are logged and skipped.
func (c *Config) Watch(fn func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		next, err := decode(c.v)
		if err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("config reload rejected")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(next)
	})
	c.v.WatchConfig()
}
