package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/browserbridge/internal/cli"
	"github.com/bnema/browserbridge/internal/infrastructure/config"
)

var (
	evalHost    string
	evalTimeout time.Duration
)

var evalCmd = &cobra.Command{
	Use:   "eval <script>...",
	Short: "Evaluate scripts in a blank document and print the results",
	Long: `Evaluate each script in order in a blank document and print its result
as JSON. A script of "-" is read from standard input.

The command exits non-zero when any script throws.

Examples:
  browserbridge eval '1 + 1'
  browserbridge eval 'document.title = "x"' 'document.title'
  echo 'navigator.userAgent' | browserbridge eval --host chromium -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVar(&evalHost, "host", string(config.HostKindScript), "host to evaluate in (script or chromium)")
	evalCmd.Flags().DurationVar(&evalTimeout, "timeout", 30*time.Second, "overall time limit")
}

func runEval(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	scripts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "-" {
			scripts = append(scripts, arg)
			continue
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read script from stdin: %w", err)
		}
		scripts = append(scripts, strings.TrimSpace(string(data)))
	}

	ctx, cancel := context.WithTimeout(app.Ctx(), evalTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	sess, err := cli.NewSession(ctx, app.Config, cli.SessionOptions{
		Kind:    config.HostKind(evalHost),
		Console: cli.Console(cmd.ErrOrStderr(), app.Theme),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	results, err := sess.Evaluate(ctx, scripts)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
		fmt.Fprintln(out, app.Theme.RenderResult(res))
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(scripts))
	}
	return nil
}
