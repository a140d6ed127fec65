package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/browserbridge/internal/application/port"
	"github.com/bnema/browserbridge/internal/cli"
	"github.com/bnema/browserbridge/internal/infrastructure/config"
	"github.com/bnema/browserbridge/internal/logging"
	"github.com/bnema/browserbridge/internal/ui/mainloop"
)

var (
	runEvals     []string
	runExitAfter time.Duration
	runHost      string
	runWatch     bool
	runReply     string
)

var runCmd = &cobra.Command{
	Use:   "run [uri|file]",
	Short: "Load a page and print the messages it posts",
	Long: `Start the configured browser host, register the configured channels and
load the target. Every message posted on a channel is printed.

A path to an existing file is loaded as HTML; anything else is treated as a
URI (a missing scheme gets bridge.default_scheme). Without a target,
bridge.home is loaded.

When bridge.reply_callback is set, envelopes like
{"type": "echo", "requestId": "1", "payload": ...} are answered by calling
that window function with the reply and the request id. Supported types are
echo and channels.

Examples:
  browserbridge run page.html
  browserbridge run example.com --host chromium
  browserbridge run page.html --eval 'document.title' --exit-after 2s
  browserbridge run page.html --reply-callback app.onReply`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runEvals, "eval", "e", nil, "script to run once the page is ready (repeatable)")
	runCmd.Flags().DurationVar(&runExitAfter, "exit-after", 0, "exit after this long (0 runs until interrupted)")
	runCmd.Flags().StringVar(&runHost, "host", "", "override host.kind (script or chromium)")
	runCmd.Flags().BoolVar(&runWatch, "watch", true, "apply channel changes from the config file while running")
	runCmd.Flags().StringVar(&runReply, "reply-callback", "", "override bridge.reply_callback")
}

func runRun(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	cfg := app.Config
	out := cmd.OutOrStdout()
	log := logging.FromContext(app.Ctx())

	ctx, cancel := context.WithCancel(app.Ctx())
	defer cancel()
	if runExitAfter > 0 {
		ctx, cancel = context.WithTimeout(ctx, runExitAfter)
		defer cancel()
	}

	sess, err := cli.NewSession(ctx, cfg, cli.SessionOptions{
		Kind:    config.HostKind(runHost),
		Console: cli.Console(out, app.Theme),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	printer := cli.NewMessagePrinter(sess.Bridge, out, app.Theme)
	replyCallback := cfg.Bridge.ReplyCallback
	if runReply != "" {
		replyCallback = runReply
	}
	if replyCallback != "" {
		printer.SetReplies(replyCallback, cfg.Bridge.ErrorCallback)
	}
	if err := printer.Sync(cfg.Bridge.Channels); err != nil {
		return err
	}

	target := cfg.Bridge.Home
	if len(args) == 1 {
		target = args[0]
	}
	if err := sess.Open(target); err != nil {
		return err
	}

	if len(runEvals) > 0 {
		sess.RunScripts(runEvals, func(_ string, res port.ScriptResult) {
			fmt.Fprintln(out, app.Theme.RenderResult(res))
		}, nil)
	}

	if runWatch {
		reloads := watchChannels(app, sess, printer)
		defer reloads.Destroy()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stopWatcher := context.WithCancel(gctx)
	g.Go(func() error {
		defer stopWatcher()
		return sess.Run(gctx)
	})
	g.Go(func() error {
		select {
		case sig := <-signals:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			sess.Loop.Quit()
		case <-runCtx.Done():
		}
		return nil
	})

	log.Debug().Str("target", target).Strs("channels", cfg.Bridge.Channels).Msg("running")
	return g.Wait()
}

// watchChannels re-syncs printed channels when the config file changes.
// Bursts of change events collapse into one loop task.
func watchChannels(app *cli.App, sess *cli.Session, printer *cli.MessagePrinter) *mainloop.Coalescer {
	log := logging.FromContext(app.Ctx())
	reloads := mainloop.NewCoalescer(sess.Loop.Poster())

	app.Manager.OnConfigChange(func(cfg *config.Config) {
		channels := cfg.Bridge.Channels
		reloads.Post("channels", func() {
			if err := printer.Sync(channels); err != nil {
				log.Warn().Err(err).Msg("failed to apply channel changes")
				return
			}
			log.Info().Strs("channels", sess.Bridge.Channels()).Msg("configuration reloaded")
		})
	})
	if err := app.Manager.Watch(); err != nil {
		log.Warn().Err(err).Msg("config watch unavailable")
	}
	return reloads
}
