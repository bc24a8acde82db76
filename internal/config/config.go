// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Settings is the full runtime configuration. Every field maps to a KW_*
// environment variable.
type Settings struct {
	Model           string `mapstructure:"model"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`

	RedisURL         string        `mapstructure:"redis_url"`
	MemoryTTL        time.Duration `mapstructure:"memory_ttl"`
	CompactThreshold int           `mapstructure:"compact_threshold"`

	MaxIterations  int           `mapstructure:"max_iterations"`
	TokenBudget    int           `mapstructure:"token_budget"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	ListenAddr        string `mapstructure:"listen_addr"`
	LineChannelSecret string `mapstructure:"line_channel_secret"`
	LineChannelToken  string `mapstructure:"line_channel_token"`

	KubeconfigPath string `mapstructure:"kubeconfig"`
	LogLevel       string `mapstructure:"log_level"`
	Verbose        bool   `mapstructure:"verbose"`
}

const envPrefix = "KW"

// Load reads settings from the process environment. A .env file in the
// working directory is merged in first when present; real environment
// variables win over it.
func Load() (Settings, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// AutomaticEnv alone does not surface keys into Unmarshal; bind each
	// known key explicitly.
	for _, key := range []string{
		"model", "anthropic_api_key",
		"redis_url", "memory_ttl", "compact_threshold",
		"max_iterations", "token_budget", "command_timeout",
		"listen_addr", "line_channel_secret", "line_channel_token",
		"kubeconfig", "log_level", "verbose",
	} {
		if err := v.BindEnv(key); err != nil {
			return Settings{}, errors.Wrapf(err, "bind %s", key)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, errors.Wrap(err, "unmarshal settings")
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "claude-3-7-sonnet-latest")
	v.SetDefault("memory_ttl", time.Hour)
	v.SetDefault("compact_threshold", 10)
	v.SetDefault("max_iterations", 10)
	v.SetDefault("token_budget", 8000)
	v.SetDefault("command_timeout", 60*time.Second)
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("log_level", "info")
}

func (s Settings) validate() error {
	if s.CompactThreshold <= 0 {
		return errors.New("KW_COMPACT_THRESHOLD must be positive")
	}
	if s.MaxIterations <= 0 {
		return errors.New("KW_MAX_ITERATIONS must be positive")
	}
	if s.TokenBudget <= 0 {
		return errors.New("KW_TOKEN_BUDGET must be positive")
	}
	if s.CommandTimeout <= 0 {
		return errors.New("KW_COMMAND_TIMEOUT must be positive")
	}
	return nil
}

// LineEnabled reports whether the LINE webhook can be mounted.
func (s Settings) LineEnabled() bool {
	return s.LineChannelSecret != "" && s.LineChannelToken != ""
}
