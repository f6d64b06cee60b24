package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Components map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	// RulesPath is the rule definitions YAML file.
	RulesPath string `mapstructure:"rules_path"`

	// DataDir holds the findings store.
	DataDir string `mapstructure:"data_dir"`

	// Workers is the classification worker count.
	Workers int `mapstructure:"workers"`

	// EnabledSets names the rule sets enabled for jobs. Empty enables all.
	EnabledSets []string `mapstructure:"enabled_sets"`

	// WatchRules reloads rule definitions when the file changes.
	WatchRules bool `mapstructure:"watch_rules"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// The config file is $XDG_CONFIG_HOME/triage/config.yaml; environment
// variables are prefixed with TRIAGE_ (e.g. TRIAGE_WORKERS).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(xdg.ConfigHome, DefaultConfigDirName))

	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rules_path", DefaultRulesPath())
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("enabled_sets", []string(nil))
	v.SetDefault("watch_rules", false)
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.components", map[string]string{
		"classifier": "info",
		"pipeline":   "info",
		"ruledefs":   "warn",
	})
}

// DefaultRulesPath returns the default rule definitions file path.
func DefaultRulesPath() string {
	return filepath.Join(xdg.ConfigHome, DefaultConfigDirName, DefaultRulesFileName)
}

// DefaultDataDir returns the default findings store directory.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, DefaultDataDirName, "findings")
}
