package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/browserbridge/internal/infrastructure/config"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long:  `Show the effective configuration, its file location and its JSON schema.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging config.toml, .env files and
BROWSERBRIDGE_* environment variables.`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE:  runConfigPath,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of config.toml",
	RunE:  runConfigSchema,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configSchemaCmd)
	configShowCmd.Flags().BoolVar(&configJSON, "json", false, "print as JSON")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	out := cmd.OutOrStdout()

	if configJSON {
		data, err := json.MarshalIndent(app.Config, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, app.Theme.RenderKeyValues(configRows(app.Config)))
	return nil
}

func configRows(cfg *config.Config) [][2]string {
	return [][2]string{
		{"logging.level", cfg.Logging.Level},
		{"logging.format", cfg.Logging.Format},
		{"host.kind", string(cfg.Host.Kind)},
		{"host.data_folder", cfg.Host.DataFolder},
		{"host.script_timeout", cfg.Host.ScriptTimeout.String()},
		{"host.allow_remote", strconv.FormatBool(cfg.Host.AllowRemote)},
		{"host.chromium.bin", cfg.Host.Chromium.Bin},
		{"host.chromium.headless", strconv.FormatBool(cfg.Host.Chromium.Headless)},
		{"bridge.channels", strings.Join(cfg.Bridge.Channels, ", ")},
		{"bridge.default_scheme", cfg.Bridge.DefaultScheme},
		{"bridge.home", cfg.Bridge.Home},
	}
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	fmt.Fprintln(cmd.OutOrStdout(), app.Manager.GetConfigFile())
	return nil
}

func runConfigSchema(cmd *cobra.Command, _ []string) error {
	data, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
