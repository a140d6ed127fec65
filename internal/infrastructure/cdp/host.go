// Package cdp implements port.BrowserHost by driving a Chromium instance over
// the DevTools protocol with go-rod.
//
// Host methods are called on the event loop and never block on the browser:
// protocol calls run in order on a worker goroutine and their outcomes,
// together with page events, are posted back with the Post function.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/bnema/browserbridge/internal/application/port"
	"github.com/bnema/browserbridge/internal/logging"
)

const (
	defaultEvalTimeout = 10 * time.Second
)

var (
	// ErrAlreadyStarted is returned when configuring a running host.
	ErrAlreadyStarted = errors.New("browser already started")
	// ErrBrowserGone is reported for work submitted after the browser
	// connection ended, or queued when it ended.
	ErrBrowserGone = errors.New("browser connection ended")
)

// Options configures a Host.
type Options struct {
	// Post schedules a function on the event loop. Required.
	Post func(func())
	// Bin is the Chromium binary. Empty lets rod locate or download one.
	Bin       string
	Headless  bool
	NoSandbox bool
	Devtools  bool
	// EvalTimeout bounds a single ExecuteScript round trip.
	EvalTimeout time.Duration
}

// Host is a browser host backed by Chromium.
type Host struct {
	baseCtx context.Context
	post    func(func())
	events  port.HostEvents
	opts    Options

	dataFolder string
	channels   map[string]bool

	// Owned by the worker goroutine once started.
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	removeShim func() error
	cancel     context.CancelFunc
	ops        *opQueue
	started    bool
	closed     bool
}

var (
	_ port.BrowserHost          = (*Host)(nil)
	_ port.DataFolderConfigurer = (*Host)(nil)
)

// New creates an unstarted host.
func New(ctx context.Context, opts Options) (*Host, error) {
	if opts.Post == nil {
		return nil, errors.New("cdp: post function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.EvalTimeout <= 0 {
		opts.EvalTimeout = defaultEvalTimeout
	}
	return &Host{
		baseCtx:  logging.WithComponent(ctx, "cdp"),
		post:     opts.Post,
		opts:     opts,
		channels: make(map[string]bool),
		ops:      newOpQueue(),
	}, nil
}

// SetDataFolder implements port.DataFolderConfigurer. Chromium uses it as its
// user data directory, so it must be set before Start.
func (h *Host) SetDataFolder(path string) error {
	if h.started {
		return fmt.Errorf("cdp: set data folder: %w", ErrAlreadyStarted)
	}
	h.dataFolder = path
	return nil
}

// Subscribe implements port.BrowserHost.
func (h *Host) Subscribe(events port.HostEvents) error {
	if events == nil {
		return errors.New("cdp: events cannot be nil")
	}
	if h.events != nil {
		return port.ErrAlreadySubscribed
	}
	h.events = events
	return nil
}

// Start launches Chromium and opens a blank page. It blocks until the
// browser is reachable and must be called before the loop starts
// processing bridge work.
func (h *Host) Start(ctx context.Context) error {
	if h.started {
		return ErrAlreadyStarted
	}
	log := logging.FromContext(h.baseCtx)

	runCtx, cancel := context.WithCancel(ctx)

	l := launcher.New().
		Context(runCtx).
		Headless(h.opts.Headless).
		NoSandbox(h.opts.NoSandbox).
		Devtools(h.opts.Devtools)
	if h.opts.Bin != "" {
		l = l.Bin(h.opts.Bin)
	}
	if h.dataFolder != "" {
		l = l.UserDataDir(h.dataFolder)
	}

	controlURL, err := l.Launch()
	if err != nil {
		cancel()
		return fmt.Errorf("cdp: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(runCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		l.Kill()
		return fmt.Errorf("cdp: connect: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: blankURI})
	if err != nil {
		cancel()
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("cdp: open page: %w", err)
	}

	h.launcher = l
	h.browser = browser
	h.page = page
	h.cancel = cancel

	if _, err := page.Expose(bindingName, h.onBinding); err != nil {
		h.shutdown()
		return fmt.Errorf("cdp: expose binding: %w", err)
	}
	if err := h.installShim(h.Channels()); err != nil {
		h.shutdown()
		return err
	}

	h.started = true
	go h.watchEvents(page.Context(runCtx))
	go h.work(runCtx)

	log.Info().Str("control_url", controlURL).Str("data_folder", h.dataFolder).Msg("browser started")
	return nil
}

// onBinding runs on a rod goroutine for every postMessage call.
func (h *Host) onBinding(arg gson.JSON) (interface{}, error) {
	channel := arg.Get("channel").Str()
	payload := arg.Get("payload").Str()
	h.post(func() {
		if h.closed || h.events == nil {
			return
		}
		h.events.OnScriptMessage(channel, payload)
	})
	return nil, nil
}

func (h *Host) watchEvents(page *rod.Page) {
	mainFrame := page.FrameID
	wait := page.EachEvent(
		func(e *proto.PageFrameStartedLoading) {
			if e.FrameID == mainFrame {
				h.postLoad(port.LoadStarted)
			}
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame != nil && e.Frame.ParentID == "" {
				h.postLoad(port.LoadCommitted)
			}
		},
		func(*proto.PageLoadEventFired) {
			h.postLoad(port.LoadFinished)
		},
	)
	wait()
}

func (h *Host) postLoad(event port.LoadEvent) {
	h.post(func() {
		if h.closed {
			return
		}
		logging.FromContext(h.baseCtx).Debug().Str("event", event.String()).Msg("load changed")
		if h.events != nil {
			h.events.OnLoadChanged(event)
		}
	})
}

// work runs queued protocol calls one at a time until ctx ends, then aborts
// whatever is still queued.
func (h *Host) work(ctx context.Context) {
	defer func() {
		for _, o := range h.ops.stop() {
			if o.abort != nil {
				o.abort()
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		for _, o := range h.ops.drain() {
			if ctx.Err() != nil {
				if o.abort != nil {
					o.abort()
				}
				continue
			}
			o.run(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-h.ops.wake:
		}
	}
}

// enqueue hands o to the worker without blocking. It reports false when the
// worker has stopped; o.abort is not called in that case.
func (h *Host) enqueue(o op) bool {
	if !h.started || h.closed {
		return false
	}
	return h.ops.push(o)
}

// installShim replaces the new-document script and updates the live page.
// It runs on the worker, or during Start before the worker exists.
func (h *Host) installShim(channels []string) error {
	if h.removeShim != nil {
		_ = h.removeShim()
		h.removeShim = nil
	}
	script := shimScript(channels)
	remove, err := h.page.EvalOnNewDocument(script)
	if err != nil {
		return fmt.Errorf("cdp: install shim: %w", err)
	}
	h.removeShim = remove
	if _, err := (proto.RuntimeEvaluate{Expression: script}).Call(h.page); err != nil {
		return fmt.Errorf("cdp: apply shim: %w", err)
	}
	return nil
}

// AddChannel implements port.BrowserHost.
func (h *Host) AddChannel(name string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if name == "" {
		return errors.New("cdp: channel name cannot be empty")
	}
	h.channels[name] = true
	h.syncChannels()
	return nil
}

// RemoveChannel implements port.BrowserHost.
func (h *Host) RemoveChannel(name string) {
	if !h.channels[name] {
		return
	}
	delete(h.channels, name)
	h.syncChannels()
}

// Channels returns the exposed channel names, sorted.
func (h *Host) Channels() []string {
	names := make([]string, 0, len(h.channels))
	for name := range h.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Host) syncChannels() {
	names := h.Channels()
	h.enqueue(op{run: func(context.Context) {
		if err := h.installShim(names); err != nil {
			logging.FromContext(h.baseCtx).Warn().Err(err).Msg("failed to update message handlers")
		}
	}})
}

// ExecuteScript implements port.BrowserHost. Before Start the result is
// port.ErrNotReady.
func (h *Host) ExecuteScript(ctx context.Context, code string, done func(port.ScriptResult)) {
	reply := func(res port.ScriptResult) {
		if done != nil {
			h.post(func() { done(res) })
		}
	}
	if h.closed {
		reply(port.ScriptResult{Err: port.ErrHostClosed})
		return
	}
	if !h.started {
		reply(port.ScriptResult{Err: port.ErrNotReady})
		return
	}

	queued := h.enqueue(op{
		run: func(context.Context) {
			page := h.page.Context(ctx).Timeout(h.opts.EvalTimeout)
			res, err := proto.RuntimeEvaluate{
				Expression:    code,
				ReturnByValue: true,
				AwaitPromise:  true,
			}.Call(page)
			reply(toScriptResult(res, err))
		},
		abort: func() {
			reply(port.ScriptResult{Err: ErrBrowserGone})
		},
	})
	if !queued {
		reply(port.ScriptResult{Err: ErrBrowserGone})
	}
}

// Navigate implements port.BrowserHost. Failures after the request is
// accepted surface as port.LoadFailed.
func (h *Host) Navigate(ctx context.Context, uri string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if !h.started {
		return port.ErrNotReady
	}
	if _, err := url.Parse(uri); err != nil {
		return fmt.Errorf("cdp: invalid uri %q: %w", uri, err)
	}
	return h.enqueueNavigation(ctx, uri)
}

// LoadContent implements port.BrowserHost.
func (h *Host) LoadContent(ctx context.Context, markup, baseURI string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if !h.started {
		return port.ErrNotReady
	}
	target := contentURL(markup, baseURI)
	return h.enqueueNavigation(ctx, target)
}

// enqueueNavigation fails synchronously when the worker is gone; a queued
// navigation aborted later surfaces as port.LoadFailed.
func (h *Host) enqueueNavigation(ctx context.Context, uri string) error {
	queued := h.enqueue(op{
		run: func(context.Context) {
			h.navigate(ctx, uri)
		},
		abort: func() {
			h.postLoad(port.LoadFailed)
		},
	})
	if !queued {
		return fmt.Errorf("cdp: navigate to %s: %w", uri, ErrBrowserGone)
	}
	return nil
}

func (h *Host) navigate(ctx context.Context, uri string) {
	if err := h.page.Context(ctx).Navigate(uri); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("navigation failed")
		h.postLoad(port.LoadFailed)
	}
}

// Close shuts the browser down. Pending work is dropped.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	if h.started {
		h.shutdown()
	}
	logging.FromContext(h.baseCtx).Debug().Msg("host closed")
}

// shutdown keeps a configured data folder on disk; a temporary profile is
// removed.
func (h *Host) shutdown() {
	if h.browser != nil {
		_ = h.browser.Close()
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.launcher != nil {
		h.launcher.Kill()
		if h.dataFolder == "" {
			h.launcher.Cleanup()
		}
	}
}
