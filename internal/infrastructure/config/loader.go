package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/bnema/browserbridge/internal/logging"
)

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	configDir string
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a configuration manager reading from the XDG config
// directory.
func NewManager() (*Manager, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config directory: %w\nCheck XDG_CONFIG_HOME environment variable or HOME directory", err)
	}
	return NewManagerAt(configDir)
}

// NewManagerAt creates a configuration manager reading config.toml from
// configDir.
func NewManagerAt(configDir string) (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	// Every key with a default is reachable as BROWSERBRIDGE_<SECTION>_<KEY>,
	// e.g. BROWSERBRIDGE_HOST_KIND.
	v.SetEnvPrefix("BROWSERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("logging.level", "BROWSERBRIDGE_LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("failed to bind BROWSERBRIDGE_LOG_LEVEL: %w", err)
	}
	if err := v.BindEnv("logging.format", "BROWSERBRIDGE_LOG_FORMAT"); err != nil {
		return nil, fmt.Errorf("failed to bind BROWSERBRIDGE_LOG_FORMAT: %w", err)
	}

	return &Manager{
		viper:     v,
		configDir: configDir,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables. A
// default config.toml is written when none exists.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.configDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.setDefaults()

	if err := m.readConfigFile(); err != nil {
		return err
	}

	return m.reload()
}

func (m *Manager) readConfigFile() error {
	err := m.viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) {
		configFile := m.viper.ConfigFileUsed()
		if configFile == "" {
			configFile = filepath.Join(m.configDir, configFileName)
		}
		return fmt.Errorf("failed to read config file at %s: %w\nCheck the file format (must be valid TOML) and permissions", configFile, err)
	}

	if createErr := m.createDefaultConfig(); createErr != nil {
		return fmt.Errorf(
			"failed to create default config at %s: %w\nTry creating the directory manually or check permissions",
			m.configDir,
			createErr,
		)
	}
	if rereadErr := m.viper.ReadInConfig(); rereadErr != nil {
		return fmt.Errorf(
			"failed to read newly created config file: %w\nThe config file was created but couldn't be read. Please check the file format",
			rereadErr,
		)
	}
	return nil
}

func (m *Manager) unmarshalConfig() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf(
			"failed to parse config file at %s: %w\nCheck for syntax errors, invalid values, or type mismatches",
			m.viper.ConfigFileUsed(),
			err,
		)
	}
	return config, nil
}

// reload re-reads viper state into m.config. Must be called with the lock
// held for write.
func (m *Manager) reload() error {
	config, err := m.unmarshalConfig()
	if err != nil {
		return err
	}
	normalizeConfig(config)

	if err := validateConfig(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	return nil
}

func normalizeConfig(config *Config) {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	if config.Logging.Level == "" {
		config.Logging.Level = defaultLogLevel
	}
	if config.Logging.Format == "" {
		config.Logging.Format = defaultLogFormat
	}

	switch HostKind(strings.ToLower(string(config.Host.Kind))) {
	case "", HostKindScript:
		config.Host.Kind = HostKindScript
	case HostKindChromium:
		config.Host.Kind = HostKindChromium
	}

	config.Bridge.DefaultScheme = strings.ToLower(strings.TrimSpace(config.Bridge.DefaultScheme))
	if config.Bridge.DefaultScheme == "" {
		config.Bridge.DefaultScheme = defaultScheme
	}
	config.Bridge.ReplyCallback = strings.TrimSpace(config.Bridge.ReplyCallback)
	config.Bridge.ErrorCallback = strings.TrimSpace(config.Bridge.ErrorCallback)
	if strings.TrimSpace(config.Bridge.Home) == "" {
		config.Bridge.Home = defaultHome
	}

	channels := make([]string, 0, len(config.Bridge.Channels))
	seen := make(map[string]bool, len(config.Bridge.Channels))
	for _, ch := range config.Bridge.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" || seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	config.Bridge.Channels = channels
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	configCopy := *m.config
	configCopy.Bridge.Channels = append([]string(nil), m.config.Bridge.Channels...)
	return &configCopy
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// createDefaultConfig writes the defaults as config.toml plus its schema.
func (m *Manager) createDefaultConfig() error {
	configFile := filepath.Join(m.configDir, configFileName)

	m.viper.SetConfigType("toml")
	if err := m.viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log := logging.NewFromEnv()
	log.Info().Str("file", configFile).Msg("created default configuration file")

	if schemaFile, err := WriteSchemaFile(m.configDir); err != nil {
		log.Warn().Err(err).Msg("failed to write config schema")
	} else {
		log.Debug().Str("file", schemaFile).Msg("generated JSON schema")
	}
	return nil
}

func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)

	m.viper.SetDefault("host.kind", string(defaults.Host.Kind))
	m.viper.SetDefault("host.data_folder", defaults.Host.DataFolder)
	m.viper.SetDefault("host.script_timeout", defaults.Host.ScriptTimeout.String())
	m.viper.SetDefault("host.allow_remote", defaults.Host.AllowRemote)
	m.viper.SetDefault("host.chromium.bin", defaults.Host.Chromium.Bin)
	m.viper.SetDefault("host.chromium.headless", defaults.Host.Chromium.Headless)
	m.viper.SetDefault("host.chromium.no_sandbox", defaults.Host.Chromium.NoSandbox)
	m.viper.SetDefault("host.chromium.devtools", defaults.Host.Chromium.Devtools)

	m.viper.SetDefault("bridge.channels", defaults.Bridge.Channels)
	m.viper.SetDefault("bridge.default_scheme", defaults.Bridge.DefaultScheme)
	m.viper.SetDefault("bridge.home", defaults.Bridge.Home)
	m.viper.SetDefault("bridge.reply_callback", defaults.Bridge.ReplyCallback)
	m.viper.SetDefault("bridge.error_callback", defaults.Bridge.ErrorCallback)
}
