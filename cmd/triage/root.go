package main

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/triage/pkg/triage/config"
	"github.com/jamesainslie/triage/pkg/triage/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "triage",
		Short: "Classify files against named rule sets",
		Long: `Triage runs files through named classification rule sets and records
deduplicated findings for every match.

Examples:
  triage run ~/evidence            # Classify all files under a directory
  triage run -w 8 --sets Docs .    # 8 workers, only the "Docs" rule set
  triage rules                     # List defined rule sets
  triage findings --set Docs       # Show recorded findings for one set`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/triage/config.yaml)")
	rootCmd.PersistentFlags().StringP("rules", "r", "", "rule definitions file")
	rootCmd.PersistentFlags().String("data-dir", "", "findings store directory")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "worker count (0=default)")
	rootCmd.PersistentFlags().StringSlice("sets", nil, "enabled rule sets (default: all)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	_ = viper.BindPFlag("rules_path", rootCmd.PersistentFlags().Lookup("rules"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("enabled_sets", rootCmd.PersistentFlags().Lookup("sets"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(xdg.ConfigHome, config.DefaultConfigDirName))
	}

	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("rules_path", config.DefaultRulesPath())
	viper.SetDefault("data_dir", config.DefaultDataDir())
	viper.SetDefault("workers", config.DefaultWorkers)
	viper.SetDefault("logging.level", config.DefaultLogLevel)

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()
}

// initLogging sets up the logging system from the resolved config.
func initLogging() error {
	level := viper.GetString("logging.level")
	if viper.GetBool("verbose") {
		level = "debug"
	}
	return logging.Init(logging.Config{
		Level:      level,
		Path:       viper.GetString("logging.path"),
		Components: viper.GetStringMapString("logging.components"),
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
