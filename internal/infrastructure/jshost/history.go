package jshost

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/browserbridge/internal/application/port"
)

var (
	// ErrNoHistory is returned by GoBack/GoForward at either end of the history.
	ErrNoHistory = errors.New("no history entry in that direction")
	// ErrInvalidZoom is returned for non-positive zoom levels.
	ErrInvalidZoom = errors.New("zoom level must be positive")
)

// history is a back/forward list. pos counts entries up to and including the
// current one, so the zero value is an empty history.
type history struct {
	entries []string
	pos     int
}

// push records a new navigation, dropping any forward entries.
func (h *history) push(uri string) {
	h.entries = append(h.entries[:h.pos], uri)
	h.pos = len(h.entries)
}

func (h *history) canGoBack() bool { return h.pos > 1 }

func (h *history) canGoForward() bool { return h.pos < len(h.entries) }

func (h *history) back() string {
	h.pos--
	return h.entries[h.pos-1]
}

func (h *history) forward() string {
	h.pos++
	return h.entries[h.pos-1]
}

// GoBack implements port.Navigator.
func (h *Host) GoBack(ctx context.Context) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if !h.history.canGoBack() {
		return ErrNoHistory
	}
	return h.revisit(ctx, h.history.back())
}

// GoForward implements port.Navigator.
func (h *Host) GoForward(ctx context.Context) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if !h.history.canGoForward() {
		return ErrNoHistory
	}
	return h.revisit(ctx, h.history.forward())
}

func (h *Host) revisit(ctx context.Context, uri string) error {
	req, err := h.resolve(uri)
	if err != nil {
		return fmt.Errorf("jshost: revisit %s: %w", uri, err)
	}
	h.start(ctx, req)
	return nil
}

// Reload implements port.Navigator. Documents loaded from content are
// rebuilt from the same content.
func (h *Host) Reload(ctx context.Context) error {
	if h.closed {
		return port.ErrHostClosed
	}
	h.start(ctx, h.current)
	return nil
}

// Stop implements port.Navigator. An in-flight load is abandoned with
// port.LoadFailed and the previous document stays current.
func (h *Host) Stop(context.Context) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if !h.loading {
		return nil
	}
	if h.cancelFetch != nil {
		h.cancelFetch()
		h.cancelFetch = nil
	}
	h.generation++
	h.loading = false
	h.emitLoad(port.LoadFailed)
	return nil
}

// SetZoomLevel implements port.Navigator. The level is only recorded.
func (h *Host) SetZoomLevel(_ context.Context, level float64) error {
	if level <= 0 {
		return ErrInvalidZoom
	}
	h.zoomLevel = level
	return nil
}

// State implements port.Navigator.
func (h *Host) State() port.WebViewState {
	return port.WebViewState{
		URI:       h.URI(),
		Title:     h.Title(),
		IsLoading: h.loading,
		CanGoBack: h.history.canGoBack(),
		CanGoFwd:  h.history.canGoForward(),
		ZoomLevel: h.zoomLevel,
	}
}
