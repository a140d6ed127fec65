package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bnema/browserbridge/internal/app/messaging"
	"github.com/bnema/browserbridge/internal/application/port"
	"github.com/bnema/browserbridge/internal/infrastructure/cdp"
	"github.com/bnema/browserbridge/internal/infrastructure/config"
	"github.com/bnema/browserbridge/internal/infrastructure/jshost"
	"github.com/bnema/browserbridge/internal/logging"
	"github.com/bnema/browserbridge/internal/ui/mainloop"
)

// SessionOptions tunes NewSession.
type SessionOptions struct {
	// Console receives page console output (script host only).
	Console jshost.ConsoleFunc
	// Kind overrides the configured host kind when set.
	Kind config.HostKind
}

// Session is one event loop with its browser host and bridge.
// Host and Bridge belong to the loop: touch them from loop tasks, or from
// the creating goroutine before Run starts and after it returns.
type Session struct {
	Loop   *mainloop.Loop
	Host   port.BrowserHost
	Bridge *messaging.Bridge

	closeHost func()
	closed    bool
}

// NewSession builds the host selected by cfg, binds a bridge to it and, for
// the chromium host, launches the browser.
func NewSession(ctx context.Context, cfg *config.Config, opts SessionOptions) (*Session, error) {
	kind := cfg.Host.Kind
	if opts.Kind != "" {
		kind = opts.Kind
	}
	ctx = logging.WithHost(ctx, string(kind))
	log := logging.FromContext(ctx)
	loop := mainloop.NewLoop()

	var (
		host      port.BrowserHost
		start     func(context.Context) error
		closeHost func()
	)
	switch kind {
	case config.HostKindChromium:
		h, err := cdp.New(ctx, cdp.Options{
			Post:        loop.Poster(),
			Bin:         cfg.Host.Chromium.Bin,
			Headless:    cfg.Host.Chromium.Headless,
			NoSandbox:   cfg.Host.Chromium.NoSandbox,
			Devtools:    cfg.Host.Chromium.Devtools,
			EvalTimeout: cfg.Host.ScriptTimeout,
		})
		if err != nil {
			return nil, err
		}
		host, start, closeHost = h, h.Start, h.Close
	case config.HostKindScript:
		h, err := jshost.New(ctx, jshost.Options{
			Post:          loop.Poster(),
			ScriptTimeout: cfg.Host.ScriptTimeout,
			AllowRemote:   cfg.Host.AllowRemote,
			Console:       opts.Console,
		})
		if err != nil {
			return nil, err
		}
		host, closeHost = h, h.Close
	default:
		return nil, fmt.Errorf("unknown host kind %q", kind)
	}

	bridgeOpts := []messaging.Option{messaging.WithDefaultScheme(cfg.Bridge.DefaultScheme)}
	if cfg.Host.DataFolder != "" {
		bridgeOpts = append(bridgeOpts, messaging.WithDataFolder(cfg.Host.DataFolder))
	}
	bridge, err := messaging.NewBridge(ctx, host, bridgeOpts...)
	if err != nil {
		closeHost()
		return nil, err
	}

	if start != nil {
		if err := start(ctx); err != nil {
			bridge.Close()
			closeHost()
			return nil, err
		}
	}

	log.Debug().Msg("session created")
	return &Session{
		Loop:      loop,
		Host:      host,
		Bridge:    bridge,
		closeHost: closeHost,
	}, nil
}

// Open loads target. An existing file is read and loaded as HTML with its
// file URI as base; anything else goes through Bridge.LoadURI.
func (s *Session) Open(target string) error {
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return s.Bridge.LoadURI(target)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", target, err)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}
	base := (&url.URL{Scheme: "file", Path: abs}).String()
	return s.Bridge.LoadHTML(string(content), base)
}

// RunScripts evaluates scripts one after another once the page is ready and
// calls report with each result. done runs after the last one.
func (s *Session) RunScripts(scripts []string, report func(code string, res port.ScriptResult), done func()) {
	var next func(i int)
	next = func(i int) {
		if i == len(scripts) {
			if done != nil {
				done()
			}
			return
		}
		code := scripts[i]
		s.Bridge.RunScriptWithResult(code, func(res port.ScriptResult) {
			if report != nil {
				report(code, res)
			}
			next(i + 1)
		})
	}
	s.Bridge.WhenReady(func() { next(0) })
}

// Run drives the loop until ctx is done or Quit is called. Cancellation is a
// normal exit.
func (s *Session) Run(ctx context.Context) error {
	err := s.Loop.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases the bridge and host. Call it once the loop has stopped.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.Loop.Quit()
	s.Bridge.Close()
	s.closeHost()
}

// Evaluate loads a blank document, runs scripts in order and returns their
// results. It drives the loop on the calling goroutine and returns once the
// last result arrives or ctx ends.
func (s *Session) Evaluate(ctx context.Context, scripts []string) ([]port.ScriptResult, error) {
	if err := s.Bridge.LoadHTML("", ""); err != nil {
		return nil, err
	}

	results := make([]port.ScriptResult, 0, len(scripts))
	s.RunScripts(scripts, func(_ string, res port.ScriptResult) {
		results = append(results, res)
	}, s.Loop.Quit)

	if err := s.Loop.Run(ctx); err != nil {
		return results, err
	}
	if len(results) < len(scripts) {
		return results, fmt.Errorf("evaluation stopped after %d of %d scripts", len(results), len(scripts))
	}
	return results, nil
}
