package config

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// callbackName matches dotted JS identifiers such as app.onReply.
var callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// validateConfig performs comprehensive validation of configuration values
func validateConfig(config *Config) error {
	var validationErrors []string

	validationErrors = append(validationErrors, validateLogging(config)...)
	validationErrors = append(validationErrors, validateHost(config)...)
	validationErrors = append(validationErrors, validateBridge(config)...)

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}

	return nil
}

func validateLogging(config *Config) []string {
	var validationErrors []string
	switch config.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("logging.level must be one of trace, debug, info, warn, error (got %q)", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "console", "json":
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("logging.format must be console or json (got %q)", config.Logging.Format))
	}
	return validationErrors
}

func validateHost(config *Config) []string {
	var validationErrors []string
	switch config.Host.Kind {
	case HostKindScript, HostKindChromium:
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("host.kind must be script or chromium (got %q)", config.Host.Kind))
	}
	if config.Host.ScriptTimeout < 0 {
		validationErrors = append(validationErrors, "host.script_timeout must be non-negative")
	}
	return validationErrors
}

func validateBridge(config *Config) []string {
	var validationErrors []string
	switch config.Bridge.DefaultScheme {
	case "http", "https":
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("bridge.default_scheme must be http or https (got %q)", config.Bridge.DefaultScheme))
	}
	for _, ch := range config.Bridge.Channels {
		if strings.IndexFunc(ch, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
			validationErrors = append(validationErrors,
				fmt.Sprintf("bridge.channels entry %q must not contain whitespace", ch))
		}
	}
	for key, name := range map[string]string{
		"reply_callback": config.Bridge.ReplyCallback,
		"error_callback": config.Bridge.ErrorCallback,
	} {
		if name != "" && !callbackName.MatchString(name) {
			validationErrors = append(validationErrors,
				fmt.Sprintf("bridge.%s must be a dotted identifier (got %q)", key, name))
		}
	}
	if config.Bridge.ErrorCallback != "" && config.Bridge.ReplyCallback == "" {
		validationErrors = append(validationErrors, "bridge.error_callback requires bridge.reply_callback")
	}
	return validationErrors
}
