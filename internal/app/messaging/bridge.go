// Package messaging implements the bridge between host code and the script
// environment of one embedded browser instance.
//
// A Bridge is not safe for concurrent use. It must be constructed, used and
// closed on the goroutine that runs the event loop, and the BrowserHost it
// wraps must deliver every notification on that same goroutine. No locking
// is done.
package messaging

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/bnema/browserbridge/internal/application/port"
	urlutil "github.com/bnema/browserbridge/internal/domain/url"
	"github.com/bnema/browserbridge/internal/logging"
)

// Handler receives messages posted by page script on one channel.
type Handler interface {
	HandleMessage(ctx context.Context, payload Payload) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload Payload) error

// HandleMessage calls f(ctx, payload).
func (f HandlerFunc) HandleMessage(ctx context.Context, payload Payload) error {
	return f(ctx, payload)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithDataFolder forwards a browser data folder to the host before first use.
// Hosts that keep no disk state ignore it.
func WithDataFolder(path string) Option {
	return func(b *Bridge) {
		b.dataFolder = path
	}
}

// WithDefaultScheme sets the scheme prefixed to scheme-less LoadURI inputs.
func WithDefaultScheme(scheme string) Option {
	return func(b *Bridge) {
		b.defaultScheme = scheme
	}
}

// Bridge mediates message flow between host code and page script.
type Bridge struct {
	host    port.BrowserHost
	baseCtx context.Context

	handlers map[string]Handler
	// exposed tracks channels already announced to the host.
	exposed map[string]bool

	ready        bool
	readyWaiters []func()
	closed       bool

	dataFolder    string
	defaultScheme string
}

var _ port.HostEvents = (*Bridge)(nil)

// NewBridge creates a bridge bound to host and subscribes to its events.
// The subscription happens exactly once per host.
func NewBridge(ctx context.Context, host port.BrowserHost, opts ...Option) (*Bridge, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b := &Bridge{
		host:          host,
		baseCtx:       logging.WithComponent(ctx, "bridge"),
		handlers:      make(map[string]Handler),
		exposed:       make(map[string]bool),
		defaultScheme: urlutil.DefaultScheme,
	}
	for _, opt := range opts {
		opt(b)
	}

	log := logging.FromContext(b.baseCtx)

	if b.dataFolder != "" {
		if cfg, ok := host.(port.DataFolderConfigurer); ok {
			if err := cfg.SetDataFolder(b.dataFolder); err != nil {
				return nil, fmt.Errorf("forward data folder: %w", err)
			}
			log.Debug().Str("data_folder", b.dataFolder).Msg("data folder forwarded to host")
		} else {
			log.Debug().Str("data_folder", b.dataFolder).Msg("host has no data folder support, ignoring")
		}
	}

	if err := host.Subscribe(b); err != nil {
		return nil, fmt.Errorf("subscribe to browser host: %w", err)
	}

	return b, nil
}

// ValidateChannel checks a channel name. Names must be non-empty and free of
// whitespace and control characters, since hosts expose them as script
// property names.
func ValidateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidChannel)
	}
	if strings.TrimSpace(channel) == "" {
		return fmt.Errorf("%w: name is blank", ErrInvalidChannel)
	}
	for _, r := range channel {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains whitespace or control characters", ErrInvalidChannel, channel)
		}
	}
	return nil
}

// RegisterHandler installs handler for channel, replacing any previous one.
// Registration is independent of the page lifecycle and survives navigation.
func (b *Bridge) RegisterHandler(channel string, handler Handler) error {
	if b.closed {
		return ErrBridgeClosed
	}
	if err := ValidateChannel(channel); err != nil {
		return err
	}
	if handler == nil {
		return ErrNilHandler
	}

	log := logging.FromContext(b.baseCtx)

	if !b.exposed[channel] {
		if err := b.host.AddChannel(channel); err != nil {
			return fmt.Errorf("expose channel %q: %w", channel, err)
		}
		b.exposed[channel] = true
	}

	_, replaced := b.handlers[channel]
	b.handlers[channel] = handler

	log.Debug().
		Str("channel", channel).
		Bool("replaced", replaced).
		Msg("handler registered")
	return nil
}

// RegisterHandlerFunc is RegisterHandler for plain functions.
func (b *Bridge) RegisterHandlerFunc(channel string, fn func(ctx context.Context, payload Payload) error) error {
	if fn == nil {
		return ErrNilHandler
	}
	return b.RegisterHandler(channel, HandlerFunc(fn))
}

// UnregisterHandler removes the handler for channel and reports whether one
// was registered. A dispatch already running keeps its handler reference.
func (b *Bridge) UnregisterHandler(channel string) bool {
	if _, ok := b.handlers[channel]; !ok {
		return false
	}
	delete(b.handlers, channel)
	if b.exposed[channel] {
		b.host.RemoveChannel(channel)
		delete(b.exposed, channel)
	}
	logging.FromContext(b.baseCtx).Debug().Str("channel", channel).Msg("handler unregistered")
	return true
}

// Channels returns the registered channel names in sorted order.
func (b *Bridge) Channels() []string {
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasHandler reports whether channel has an active handler.
func (b *Bridge) HasHandler(channel string) bool {
	_, ok := b.handlers[channel]
	return ok
}

// DispatchInbound delivers payload to the handler registered for channel.
// Messages for unknown channels are dropped. Handler errors and panics are
// logged and contained; DispatchInbound always returns normally.
func (b *Bridge) DispatchInbound(channel string, payload Payload) {
	ctx := logging.WithChannel(b.baseCtx, channel)
	log := logging.FromContext(ctx)

	handler, ok := b.handlers[channel]
	if !ok || b.closed {
		log.Debug().Int("payload_len", len(payload)).Msg("no handler registered for channel, dropping message")
		return
	}

	log.Debug().Int("payload_len", len(payload)).Msg("received script message")

	if err := b.invoke(ctx, channel, handler, payload); err != nil {
		log.Error().Err(err).Msg("message handler failed")
	}
}

func (b *Bridge) invoke(ctx context.Context, channel string, handler Handler, payload Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Debug().Bytes("stack", debug.Stack()).Msg("handler panic stack")
			err = &HandlerError{Channel: channel, Panic: r}
		}
	}()

	if herr := handler.HandleMessage(ctx, payload); herr != nil {
		return &HandlerError{Channel: channel, Err: herr}
	}
	return nil
}

// OnScriptMessage implements port.HostEvents.
func (b *Bridge) OnScriptMessage(channel, payload string) {
	b.DispatchInbound(channel, Payload(payload))
}

// OnLoadChanged implements port.HostEvents and drives ready gating.
func (b *Bridge) OnLoadChanged(event port.LoadEvent) {
	log := logging.FromContext(b.baseCtx)
	log.Debug().Str("event", event.String()).Msg("load changed")

	switch event {
	case port.LoadStarted:
		b.ready = false
	case port.LoadFinished:
		b.ready = true
		b.flushReady()
	case port.LoadFailed:
		// The previous document may be gone; keep waiting for a finished load.
		b.ready = false
	}
}

func (b *Bridge) flushReady() {
	waiters := b.readyWaiters
	b.readyWaiters = nil
	for _, fn := range waiters {
		if b.closed {
			return
		}
		fn()
	}
}

// IsReady reports whether the host signalled a finished load since the last
// navigation started.
func (b *Bridge) IsReady() bool {
	return b.ready
}

// WhenReady runs fn now if the page is loaded, otherwise after the next
// finished load. Use it to gate scripts that depend on page content.
func (b *Bridge) WhenReady(fn func()) {
	if fn == nil || b.closed {
		return
	}
	if b.ready {
		fn()
		return
	}
	b.readyWaiters = append(b.readyWaiters, fn)
}

// RunScript submits code for execution without waiting for a result.
// Scripts submitted before a navigation completes may be dropped by the
// host; gate on WhenReady when ordering matters.
func (b *Bridge) RunScript(code string) {
	b.submit(code, nil)
}

// RunScriptWithResult submits code and delivers its outcome to done on the
// event loop. Failures are reported only through ScriptResult.Err.
func (b *Bridge) RunScriptWithResult(code string, done func(port.ScriptResult)) {
	b.submit(code, done)
}

func (b *Bridge) submit(code string, done func(port.ScriptResult)) {
	id := uuid.NewString()
	log := logging.FromContext(b.baseCtx).With().Str("script_id", id).Logger()

	if b.closed {
		log.Warn().Msg("script submitted on closed bridge")
		if done != nil {
			done(port.ScriptResult{Err: ErrBridgeClosed})
		}
		return
	}

	log.Debug().
		Int("script_len", len(code)).
		Bool("ready", b.ready).
		Bool("wants_result", done != nil).
		Msg("submitting script")

	var callback func(port.ScriptResult)
	if done != nil {
		callback = func(res port.ScriptResult) {
			if res.Err != nil {
				log.Debug().Err(res.Err).Msg("script failed")
			}
			b.deliver(id, done, res)
		}
	} else {
		callback = func(res port.ScriptResult) {
			if res.Err != nil {
				log.Warn().Err(res.Err).Msg("fire-and-forget script failed")
			}
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("browser host panicked executing script")
		}
	}()
	b.host.ExecuteScript(b.baseCtx, code, callback)
}

func (b *Bridge) deliver(id string, done func(port.ScriptResult), res port.ScriptResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(b.baseCtx).Error().
				Str("script_id", id).
				Interface("panic", r).
				Msg("script result callback panicked")
		}
	}()
	done(res)
}

// LoadURI navigates the host to uri after prefixing a missing scheme.
// Registered channels stay active on the new page.
func (b *Bridge) LoadURI(uri string) error {
	if b.closed {
		return ErrBridgeClosed
	}
	target := urlutil.Normalize(uri, b.defaultScheme)
	if target == "" {
		return fmt.Errorf("load uri: %w", ErrEmptyURI)
	}

	ctx := logging.WithURL(b.baseCtx, target)
	logging.FromContext(ctx).Debug().Msg("loading uri")

	wasReady := b.ready
	b.ready = false
	if err := b.host.Navigate(ctx, target); err != nil {
		b.ready = wasReady
		return fmt.Errorf("navigate to %s: %w", target, err)
	}
	return nil
}

// LoadHTML loads content with baseURI (about:blank when empty).
// Registered channels stay active on the new page.
func (b *Bridge) LoadHTML(content, baseURI string) error {
	if b.closed {
		return ErrBridgeClosed
	}
	if baseURI == "" {
		baseURI = "about:blank"
	}

	ctx := logging.WithURL(b.baseCtx, baseURI)
	logging.FromContext(ctx).Debug().Int("content_len", len(content)).Msg("loading html")

	wasReady := b.ready
	b.ready = false
	if err := b.host.LoadContent(ctx, content, baseURI); err != nil {
		b.ready = wasReady
		return fmt.Errorf("load html: %w", err)
	}
	return nil
}

// Close drops every handler and pending ready callback. Messages arriving
// afterwards are dropped.
func (b *Bridge) Close() {
	if b.closed {
		return
	}
	for channel := range b.exposed {
		b.host.RemoveChannel(channel)
	}
	b.closed = true
	b.handlers = make(map[string]Handler)
	b.exposed = make(map[string]bool)
	b.readyWaiters = nil
	logging.FromContext(b.baseCtx).Debug().Msg("bridge closed")
}
