// Package config loads the quip-export settings from built-in defaults, an
// optional YAML file, QUIP_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	quip "github.com/JimmyFromTheEarth/quip-export"
)

const (
	// EnvPrefix is prepended to every key when reading environment
	// variables, e.g. QUIP_TOKEN or QUIP_RATE_LIMIT.
	EnvPrefix = "QUIP"

	// FileName is the config file name searched for when no explicit path
	// is given.
	FileName = "quip-export"
)

// Config keys.
const (
	KeyToken        = "token"
	KeyAPIURL       = "api_url"
	KeyRateLimit    = "rate_limit"
	KeyDelayMode    = "delay_mode"
	KeyRetryLimit   = "retry_limit"
	KeyPollInterval = "poll_interval"
	KeyMaxPolls     = "max_polls"
	KeyTimeout      = "timeout"
	KeyDestination  = "destination"
	KeyDOCX         = "docx"
	KeyComments     = "comments"
	KeyThreads      = "threads"
	KeyFolders      = "folders"
	KeyLogLevel     = "log_level"
)

var ErrTokenRequired = errors.New("access token is required: set --token or " + EnvPrefix + "_TOKEN")

// Config is the decoded application configuration.
type Config struct {
	Token        string        `mapstructure:"token"`
	APIURL       string        `mapstructure:"api_url"`
	RateLimit    int           `mapstructure:"rate_limit"`
	DelayMode    bool          `mapstructure:"delay_mode"`
	RetryLimit   int           `mapstructure:"retry_limit"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxPolls     int           `mapstructure:"max_polls"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Destination  string        `mapstructure:"destination"`
	DOCX         bool          `mapstructure:"docx"`
	Comments     bool          `mapstructure:"comments"`
	Threads      []string      `mapstructure:"threads"`
	Folders      []string      `mapstructure:"folders"`
	LogLevel     string        `mapstructure:"log_level"`
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyAPIURL, quip.DefaultAPIURL)
	v.SetDefault(KeyRateLimit, quip.DefaultRateLimitPerMinute)
	v.SetDefault(KeyDelayMode, false)
	v.SetDefault(KeyRetryLimit, quip.DefaultRetryLimit)
	v.SetDefault(KeyPollInterval, "5s")
	v.SetDefault(KeyMaxPolls, 120)
	v.SetDefault(KeyTimeout, "60s")
	v.SetDefault(KeyDestination, "quip-export")
	v.SetDefault(KeyDOCX, false)
	v.SetDefault(KeyComments, false)
	v.SetDefault(KeyThreads, []string{})
	v.SetDefault(KeyFolders, []string{})
	v.SetDefault(KeyLogLevel, "info")
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()

	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile merges a YAML config file into v. An explicit path must exist.
// Without one, ./quip-export.yaml and $HOME/.config/quip-export/ are searched
// and a missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", FileName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// Load decodes the merged settings of v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	settings := make(map[string]any, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		settings[key] = v.Get(key)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Token = strings.TrimSpace(cfg.Token)
	cfg.Threads = compact(cfg.Threads)
	cfg.Folders = compact(cfg.Folders)

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrTokenRequired
	}

	if c.RateLimit < quip.MinRateLimitPerMinute {
		return fmt.Errorf("%s must be at least %d, got %d", KeyRateLimit, quip.MinRateLimitPerMinute, c.RateLimit)
	}

	if strings.TrimSpace(c.Destination) == "" {
		return fmt.Errorf("%s must not be empty", KeyDestination)
	}

	return nil
}

// ClientOptions translates the configuration into client options.
func (c *Config) ClientOptions(logger quip.RequestLogger) []quip.Option {
	return []quip.Option{
		quip.WithAPIURL(c.APIURL),
		quip.WithRateLimitPerMinute(c.RateLimit),
		quip.WithDelayMode(c.DelayMode),
		quip.WithRetryLimit(c.RetryLimit),
		quip.WithPollInterval(c.PollInterval),
		quip.WithMaxPolls(c.MaxPolls),
		quip.WithTimeout(c.Timeout),
		quip.WithRequestLogger(logger),
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}

	return out
}
