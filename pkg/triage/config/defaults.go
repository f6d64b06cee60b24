// Package config provides configuration management for triage.
package config

// Default configuration values for triage.
const (
	// DefaultWorkers is the default number of classification workers.
	DefaultWorkers = 4

	// DefaultConfigDirName is the directory name under the XDG config home.
	DefaultConfigDirName = "triage"

	// DefaultRulesFileName is the rule definitions file name.
	DefaultRulesFileName = "rules.yaml"

	// DefaultDataDirName is the directory name under the XDG data home
	// holding the findings store.
	DefaultDataDirName = "triage"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"
)
