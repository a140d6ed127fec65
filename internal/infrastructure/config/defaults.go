package config

import (
	"path/filepath"
	"time"
)

// Default configuration constants
const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "console"
	defaultScriptTimeout = 5 * time.Second
	defaultScheme        = "https"
	defaultHome          = "about:blank"
	defaultChannel       = "app"
)

// getDefaultDataFolder returns the profile directory under XDG_DATA_HOME,
// falls back to empty string on error
func getDefaultDataFolder() string {
	dataDir, err := GetDataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dataDir, "profile")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Host: HostConfig{
			Kind:          HostKindScript,
			DataFolder:    getDefaultDataFolder(),
			ScriptTimeout: defaultScriptTimeout,
			Chromium: ChromiumConfig{
				Headless: true,
			},
		},
		Bridge: BridgeConfig{
			Channels:      []string{defaultChannel},
			DefaultScheme: defaultScheme,
			Home:          defaultHome,
		},
	}
}
