package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rgehrsitz/paycalc/internal/money"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAYCALC_WORKERS.
const EnvPrefix = "PAYCALC"

// Settings are the application settings shared by the CLI and the server.
type Settings struct {
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	OutputFormat string        `mapstructure:"output_format"`
	Workers      int           `mapstructure:"workers"`
	RulesPath    string        `mapstructure:"rules_path"`
	StorePath    string        `mapstructure:"store_path"`
	ListenAddr   string        `mapstructure:"listen_addr"`
	Money        money.Context `mapstructure:"money"`
}

// NewViper returns a viper instance with the paycalc defaults, environment
// overrides and, when present, the settings file. An empty configFile looks
// for paycalc.yaml in the working directory and $HOME/.paycalc.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("paycalc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.paycalc")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	def := money.DefaultContext()
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "")
	v.SetDefault("output_format", "console")
	v.SetDefault("workers", 4)
	v.SetDefault("rules_path", "")
	v.SetDefault("store_path", "")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("money.division_scale", def.DivisionScale)
	v.SetDefault("money.places", def.Places)
}

// LoadSettings decodes and validates the settings held by v.
func LoadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings validation failed: %w", err)
	}
	return s, nil
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if err := s.Money.Validate(); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	return nil
}
