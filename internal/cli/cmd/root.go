// Package cmd provides Cobra CLI commands for browserbridge.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/browserbridge/internal/cli"
	"github.com/bnema/browserbridge/internal/domain/build"
)

var (
	app       *cli.App
	buildInfo build.Info
	configDir string
	rootCmd   = &cobra.Command{
		Use:   "browserbridge",
		Short: "Exchange messages between a host program and an embedded browser page",
		Long: `BrowserBridge - a host/page messaging bridge for embedded browsers.

Pages post strings or JSON values on named channels through
window.webkit.messageHandlers.<channel>.postMessage(...) or the
window.cef.messageHandlers equivalent, and the host runs scripts in the page.

Two hosts are available:
  - script    headless documents evaluated by an embedded JavaScript engine
  - chromium  a real Chromium driven over the DevTools protocol

Use 'browserbridge run' to load a page and print its messages, or
'browserbridge eval' to evaluate scripts in a blank document.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't need config
			switch cmd.Name() {
			case "help", "completion", "schema":
				return nil
			}

			var err error
			app, err = cli.NewApp(configDir)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			app.BuildInfo = buildInfo
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"directory holding config.toml (default $XDG_CONFIG_HOME/browserbridge)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetApp returns the initialized app (for use by subcommands).
func GetApp() *cli.App {
	return app
}

// SetBuildInfo sets the build information (called from main.go before Execute).
func SetBuildInfo(info build.Info) {
	buildInfo = info
	rootCmd.Version = info.String()
}
