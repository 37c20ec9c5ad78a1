package config

import (
	"sync"

	"github.com/spicor/shardpack/internal/logging"
)

// GlobalConfig holds the global configuration instance.
var GlobalConfig *Config        //nolint:gochecknoglobals // Singleton pattern for configuration
var globalConfigMu sync.Mutex   //nolint:gochecknoglobals // Protects initialization
var globalConfigInit bool       //nolint:gochecknoglobals // Tracks if global config has been initialized

// InitGlobalConfig initializes the global configuration from defaults,
// the global config file, and environment overrides.
func InitGlobalConfig() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	if globalConfigInit {
		return
	}

	GlobalConfig = New()
	globalConfigInit = true
}

// LoadGlobalConfig replaces the global configuration with defaults plus an
// explicit overlay file, used when the CLI is given --config. Environment
// overrides still apply on top.
func LoadGlobalConfig(path string) error {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	cfg := Defaults()
	if path != "" {
		if err := ShallowMergeYAML(cfg, path); err != nil {
			return err
		}
	}
	cfg.ApplyEnvOverrides()

	GlobalConfig = cfg
	globalConfigInit = true
	return nil
}

// ResetGlobalConfigForTest resets the global config for testing purposes.
func ResetGlobalConfigForTest() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()

	GlobalConfig = nil
	globalConfigInit = false
}

// GetGlobalConfig returns the global configuration, initializing it if needed.
func GetGlobalConfig() *Config {
	InitGlobalConfig()
	return GlobalConfig
}

// GetLoggingConfig returns the Logging section of the global configuration.
// The returned value is a copy; flag-level overrides (for example --debug)
// are expected to be applied by the caller.
func GetLoggingConfig() LoggingConfig {
	return GetGlobalConfig().Logging
}

// ToLoggingConfig converts the YAML logging section into the logging
// package's Config. If File is set, output goes to that file; otherwise
// stderr.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}
