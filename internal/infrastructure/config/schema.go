// Package config loads browserbridge settings from TOML, environment
// variables and .env files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"
)

// HostKind selects the browser host implementation.
type HostKind string

const (
	// HostKindScript is the headless sobek host.
	HostKindScript HostKind = "script"
	// HostKindChromium drives Chromium over the DevTools protocol.
	HostKindChromium HostKind = "chromium"
)

// Config is the complete configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" json:"logging" jsonschema:"description=Log output settings"`
	Host    HostConfig    `mapstructure:"host" json:"host" jsonschema:"description=Browser host settings"`
	Bridge  BridgeConfig  `mapstructure:"bridge" json:"bridge" jsonschema:"description=Messaging bridge settings"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=console,enum=json,default=console"`
}

// HostConfig holds browser host settings.
type HostConfig struct {
	Kind HostKind `mapstructure:"kind" json:"kind" jsonschema:"enum=script,enum=chromium,default=script"`
	// DataFolder is forwarded to the host before first use.
	DataFolder    string         `mapstructure:"data_folder" json:"data_folder,omitempty"`
	ScriptTimeout time.Duration  `mapstructure:"script_timeout" json:"script_timeout" jsonschema:"type=string,description=Go duration; 0 uses the host default"`
	AllowRemote   bool           `mapstructure:"allow_remote" json:"allow_remote" jsonschema:"description=Let the script host fetch http(s) documents"`
	Chromium      ChromiumConfig `mapstructure:"chromium" json:"chromium"`
}

// ChromiumConfig holds launcher flags for the chromium host.
type ChromiumConfig struct {
	Bin       string `mapstructure:"bin" json:"bin,omitempty" jsonschema:"description=Browser binary; empty lets the launcher find one"`
	Headless  bool   `mapstructure:"headless" json:"headless"`
	NoSandbox bool   `mapstructure:"no_sandbox" json:"no_sandbox"`
	Devtools  bool   `mapstructure:"devtools" json:"devtools"`
}

// BridgeConfig holds messaging bridge settings.
type BridgeConfig struct {
	// Channels are registered at startup by the run command.
	Channels      []string `mapstructure:"channels" json:"channels"`
	DefaultScheme string   `mapstructure:"default_scheme" json:"default_scheme" jsonschema:"enum=http,enum=https,default=https"`
	// Home is loaded when run is given no target.
	Home string `mapstructure:"home" json:"home"`
	// ReplyCallback names the window function run calls with the result of
	// a routed envelope. Empty disables routing.
	ReplyCallback string `mapstructure:"reply_callback" json:"reply_callback,omitempty" jsonschema:"description=Window function receiving envelope replies; empty disables routing"`
	ErrorCallback string `mapstructure:"error_callback" json:"error_callback,omitempty" jsonschema:"description=Window function receiving envelope errors"`
}

// GenerateSchema returns the JSON schema for Config.
func GenerateSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	schema := r.Reflect(&Config{})

	schema.ID = "https://github.com/bnema/browserbridge/config.schema.json"
	schema.Title = "BrowserBridge Configuration"
	schema.Description = "Configuration schema for browserbridge, a host/page messaging bridge for embedded browsers"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// WriteSchemaFile writes config.schema.json next to the config file.
func WriteSchemaFile(configDir string) (string, error) {
	data, err := GenerateSchema()
	if err != nil {
		return "", err
	}
	path := filepath.Join(configDir, schemaFileName)
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", fmt.Errorf("failed to write schema file: %w", err)
	}
	return path, nil
}
