// Package jshost implements a headless port.BrowserHost on top of the sobek
// JavaScript engine. It has no renderer: documents are parsed for their
// title, element tree and inline scripts, and scripts run in a fresh runtime
// per document with the webkit/cef messageHandlers interface installed.
//
// All runtime access happens on the event loop. Host methods must be called
// from the loop goroutine; work started elsewhere (fetches, timers) is
// marshalled back with the Post function.
package jshost

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/bnema/browserbridge/internal/application/port"
	"github.com/bnema/browserbridge/internal/logging"
)

const (
	defaultScriptTimeout = 5 * time.Second
	defaultFetchTimeout  = 15 * time.Second
	maxDocumentBytes     = 8 << 20
)

var (
	// ErrScriptTimeout is the cause of a ScriptError for interrupted scripts.
	ErrScriptTimeout = errors.New("script timed out")
	// ErrDocumentReplaced is reported for scripts whose document was replaced
	// by a load before they got to run.
	ErrDocumentReplaced = errors.New("document replaced before script ran")
)

// ConsoleFunc receives console output and alerts from page script.
type ConsoleFunc func(level, message string)

// Options configures a Host.
type Options struct {
	// Post schedules a function on the event loop. Required.
	Post func(func())
	// ScriptTimeout interrupts scripts running longer than this.
	// Zero uses the default; negative disables the limit.
	ScriptTimeout time.Duration
	// AllowRemote enables fetching http(s) documents.
	AllowRemote bool
	// HTTPClient is used for remote documents. Defaults to a client with a timeout.
	HTTPClient *http.Client
	// Console receives console.* output and alert() text.
	Console ConsoleFunc
}

// Host is a headless browser host backed by sobek.
type Host struct {
	baseCtx context.Context
	post    func(func())
	events  port.HostEvents

	scriptTimeout time.Duration
	allowRemote   bool
	client        *http.Client
	console       ConsoleFunc

	channels map[string]bool
	doc      *document
	// generation increments on every navigation; load steps from an older
	// generation are discarded.
	generation  uint64
	loading     bool
	closed      bool
	current     loadRequest
	cancelFetch context.CancelFunc

	history   history
	zoomLevel float64

	dataFolder string
}

var (
	_ port.BrowserHost          = (*Host)(nil)
	_ port.Navigator            = (*Host)(nil)
	_ port.DataFolderConfigurer = (*Host)(nil)
)

// New creates a host showing about:blank.
func New(ctx context.Context, opts Options) (*Host, error) {
	if opts.Post == nil {
		return nil, errors.New("jshost: post function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := opts.ScriptTimeout
	if timeout == 0 {
		timeout = defaultScriptTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	h := &Host{
		baseCtx:       logging.WithComponent(ctx, "jshost"),
		post:          opts.Post,
		scriptTimeout: timeout,
		allowRemote:   opts.AllowRemote,
		client:        client,
		console:       opts.Console,
		channels:      make(map[string]bool),
		zoomLevel:     1.0,
	}

	doc, err := h.newDocument(blankURI, h.generation, nil)
	if err != nil {
		return nil, err
	}
	h.doc = doc
	h.current = loadRequest{uri: blankURI, inline: true}
	return h, nil
}

// Subscribe implements port.BrowserHost.
func (h *Host) Subscribe(events port.HostEvents) error {
	if events == nil {
		return errors.New("jshost: events cannot be nil")
	}
	if h.events != nil {
		return port.ErrAlreadySubscribed
	}
	h.events = events
	return nil
}

// SetDataFolder implements port.DataFolderConfigurer. The headless host keeps
// no disk state, so the folder is recorded and otherwise ignored.
func (h *Host) SetDataFolder(path string) error {
	h.dataFolder = path
	logging.FromContext(h.baseCtx).Debug().
		Str("data_folder", path).
		Msg("data folder recorded; headless host keeps no disk state")
	return nil
}

// DataFolder returns the folder passed to SetDataFolder.
func (h *Host) DataFolder() string {
	return h.dataFolder
}

// AddChannel implements port.BrowserHost.
func (h *Host) AddChannel(name string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if name == "" {
		return errors.New("jshost: channel name cannot be empty")
	}
	h.channels[name] = true
	if h.doc != nil {
		if err := h.doc.installChannel(name); err != nil {
			return err
		}
	}
	return nil
}

// RemoveChannel implements port.BrowserHost.
func (h *Host) RemoveChannel(name string) {
	if !h.channels[name] {
		return
	}
	delete(h.channels, name)
	if h.doc != nil {
		h.doc.removeChannel(name)
	}
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

// ExecuteScript implements port.BrowserHost. The script runs in a later loop
// task against the document that was current when it was submitted; if a load
// has committed a new document by then, done gets ErrDocumentReplaced.
func (h *Host) ExecuteScript(ctx context.Context, code string, done func(port.ScriptResult)) {
	if h.closed {
		if done != nil {
			h.post(func() { done(port.ScriptResult{Err: port.ErrHostClosed}) })
		}
		return
	}

	target := h.doc
	h.post(func() {
		if h.closed || h.doc == nil {
			if done != nil {
				done(port.ScriptResult{Err: port.ErrHostClosed})
			}
			return
		}
		if h.doc != target {
			logging.FromContext(h.baseCtx).Debug().
				Uint64("generation", target.gen).
				Msg("script dropped, document replaced")
			if done != nil {
				done(port.ScriptResult{Err: ErrDocumentReplaced})
			}
			return
		}
		res := h.doc.evaluate(code)
		if done != nil {
			done(res)
		}
	})
}

// postMessage delivers a page message to the subscriber on a later loop task,
// so handlers never run inside the script that posted.
func (h *Host) postMessage(gen uint64, channel, payload string) {
	h.post(func() {
		if h.closed || h.events == nil {
			return
		}
		if h.doc == nil || h.doc.gen != gen {
			logging.FromContext(h.baseCtx).Debug().
				Str("channel", channel).
				Msg("dropping message from unloaded document")
			return
		}
		h.events.OnScriptMessage(channel, payload)
	})
}

func (h *Host) emitLoad(event port.LoadEvent) {
	logging.FromContext(h.baseCtx).Debug().Str("event", event.String()).Str("uri", h.URI()).Msg("load changed")
	if h.events != nil {
		h.events.OnLoadChanged(event)
	}
}

func (h *Host) consoleOut(level, message string) {
	log := logging.FromContext(h.baseCtx)
	log.Debug().Str("level", level).Str("uri", h.URI()).Msg(message)
	if h.console != nil {
		h.console(level, message)
	}
}

// URI returns the current document URI.
func (h *Host) URI() string {
	if h.doc == nil {
		return ""
	}
	return h.doc.uri
}

// Title returns the current document title.
func (h *Host) Title() string {
	if h.doc == nil {
		return ""
	}
	return h.doc.title()
}

// IsLoading reports whether a navigation is in flight.
func (h *Host) IsLoading() bool {
	return h.loading
}

// Close stops timers and rejects further work.
func (h *Host) Close() {
	if h.closed {
		return
	}
	h.closed = true
	h.generation++
	if h.cancelFetch != nil {
		h.cancelFetch()
		h.cancelFetch = nil
	}
	if h.doc != nil {
		h.doc.dispose()
	}
	logging.FromContext(h.baseCtx).Debug().Msg("host closed")
}
