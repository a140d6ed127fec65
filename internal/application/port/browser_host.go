// Package port defines application-layer interfaces for external capabilities.
// Ports abstract the embedded browser engine so the messaging bridge can
// remain independent of a specific implementation (sobek, Chromium, etc.).
package port

import (
	"context"
	"errors"
)

var (
	// ErrAlreadySubscribed is returned when a second event sink subscribes to a host.
	ErrAlreadySubscribed = errors.New("browser host already has a subscriber")
	// ErrNotReady is reported by hosts that refuse work before their first document loads.
	ErrNotReady = errors.New("browser host is not ready")
	// ErrHostClosed is returned by hosts after Close.
	ErrHostClosed = errors.New("browser host is closed")
)

// LoadEvent represents page load state transitions.
type LoadEvent int

const (
	// LoadStarted indicates navigation has begun.
	LoadStarted LoadEvent = iota
	// LoadRedirected indicates a redirect occurred.
	LoadRedirected
	// LoadCommitted indicates content is being received.
	LoadCommitted
	// LoadFinished indicates the page has fully loaded.
	LoadFinished
	// LoadFailed indicates the navigation could not complete.
	LoadFailed
)

// String returns a human-readable representation of the load event.
func (e LoadEvent) String() string {
	switch e {
	case LoadStarted:
		return "started"
	case LoadRedirected:
		return "redirected"
	case LoadCommitted:
		return "committed"
	case LoadFinished:
		return "finished"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// HostEvents receives notifications from a BrowserHost.
// Hosts must deliver every call on the goroutine that owns the event loop.
type HostEvents interface {
	// OnScriptMessage is called when page script posts to a named channel.
	// payload is the raw string posted, or JSON text for non-string values.
	OnScriptMessage(channel, payload string)
	// OnLoadChanged is called on every load state transition.
	OnLoadChanged(event LoadEvent)
}

// BrowserHost defines the port interface for one embedded browser instance.
type BrowserHost interface {
	// ExecuteScript submits code for execution in the page's script environment.
	// It never blocks on the script. done may be nil; when set it is invoked
	// exactly once, later, on the event loop.
	ExecuteScript(ctx context.Context, code string, done func(ScriptResult))

	// Navigate starts loading uri.
	Navigate(ctx context.Context, uri string) error

	// LoadContent loads html with baseURI used to resolve relative references.
	LoadContent(ctx context.Context, html, baseURI string) error

	// AddChannel exposes a named message channel to page script.
	// Channels stay exposed across navigations until removed.
	AddChannel(name string) error

	// RemoveChannel withdraws a channel previously added.
	RemoveChannel(name string)

	// Subscribe attaches the event sink. A host accepts exactly one subscriber.
	Subscribe(events HostEvents) error
}

// DataFolderConfigurer is implemented by hosts that keep on-disk state
// (cache, cookies, local storage). The folder must be set before first use;
// hosts are free to ignore it.
type DataFolderConfigurer interface {
	SetDataFolder(path string) error
}

// WebViewState represents a snapshot of the current browser state.
type WebViewState struct {
	URI       string
	Title     string
	IsLoading bool
	CanGoBack bool
	CanGoFwd  bool
	ZoomLevel float64
}

// Navigator is implemented by hosts that expose history and zoom controls.
type Navigator interface {
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	Reload(ctx context.Context) error
	Stop(ctx context.Context) error
	SetZoomLevel(ctx context.Context, level float64) error
	State() WebViewState
}
