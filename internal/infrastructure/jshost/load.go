package jshost

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/bnema/browserbridge/internal/application/port"
	"github.com/bnema/browserbridge/internal/logging"
)

var (
	// ErrRemoteDisabled is returned when navigating to http(s) without AllowRemote.
	ErrRemoteDisabled = errors.New("remote documents are disabled")
	// ErrUnsupportedScheme is returned for URIs the headless host cannot load.
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
)

// loadRequest describes how to (re)load a document.
type loadRequest struct {
	uri     string
	content string
	// inline documents carry their content and need no fetch.
	inline bool
}

// fetchResult is what a fetch goroutine hands back to the loop.
type fetchResult struct {
	finalURI string
	content  string
	err      error
}

// Navigate implements port.BrowserHost. Unsupported or malformed URIs fail
// synchronously; fetch failures surface as port.LoadFailed.
func (h *Host) Navigate(ctx context.Context, uri string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	req, err := h.resolve(uri)
	if err != nil {
		return err
	}
	h.history.push(uri)
	h.start(ctx, req)
	return nil
}

// LoadContent implements port.BrowserHost. The history is left untouched.
func (h *Host) LoadContent(ctx context.Context, content, baseURI string) error {
	if h.closed {
		return port.ErrHostClosed
	}
	if baseURI == "" {
		baseURI = blankURI
	}
	h.start(ctx, loadRequest{uri: baseURI, content: content, inline: true})
	return nil
}

// resolve validates uri and turns it into a load request. data: and
// about:blank are decoded here; file and http(s) are fetched later.
func (h *Host) resolve(uri string) (loadRequest, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return loadRequest{}, fmt.Errorf("jshost: invalid uri %q: %w", uri, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "about":
		if uri != blankURI {
			return loadRequest{}, fmt.Errorf("jshost: %s: %w", uri, ErrUnsupportedScheme)
		}
		return loadRequest{uri: uri, inline: true}, nil
	case "data":
		content, err := decodeDataURI(uri)
		if err != nil {
			return loadRequest{}, err
		}
		return loadRequest{uri: uri, content: content, inline: true}, nil
	case "file":
		return loadRequest{uri: uri}, nil
	case "http", "https":
		if !h.allowRemote {
			return loadRequest{}, fmt.Errorf("jshost: %s: %w", uri, ErrRemoteDisabled)
		}
		return loadRequest{uri: uri}, nil
	default:
		return loadRequest{}, fmt.Errorf("jshost: %q: %w", u.Scheme, ErrUnsupportedScheme)
	}
}

// start begins a new generation. LoadStarted is emitted synchronously and the
// remaining steps run as loop tasks.
func (h *Host) start(ctx context.Context, req loadRequest) {
	if h.cancelFetch != nil {
		h.cancelFetch()
		h.cancelFetch = nil
	}
	h.generation++
	gen := h.generation
	h.current = req
	h.loading = true
	h.emitLoad(port.LoadStarted)

	if req.inline {
		h.post(func() { h.commit(gen, req.uri, req.content) })
		return
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	h.cancelFetch = cancel
	go func() {
		defer cancel()
		res := h.fetch(fetchCtx, req.uri)
		h.post(func() {
			if gen != h.generation || h.closed {
				return
			}
			h.cancelFetch = nil
			if res.err != nil {
				h.fail(gen, res.err)
				return
			}
			if res.finalURI != req.uri {
				h.emitLoad(port.LoadRedirected)
			}
			h.commit(gen, res.finalURI, res.content)
		})
	}()
}

// fetch runs off the loop and must not touch host state.
func (h *Host) fetch(ctx context.Context, uri string) fetchResult {
	u, err := url.Parse(uri)
	if err != nil {
		return fetchResult{err: err}
	}
	if u.Scheme == "file" {
		content, err := readFile(u.Path)
		return fetchResult{finalURI: uri, content: content, err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fetchResult{err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fetchResult{err: fmt.Errorf("fetch %s: %w", uri, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fetchResult{err: fmt.Errorf("fetch %s: status %d", uri, resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return fetchResult{err: fmt.Errorf("read %s: %w", uri, err)}
	}
	final := uri
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return fetchResult{finalURI: final, content: string(body)}
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(body), nil
}

// commit swaps in the new document. Inline scripts run in the next task so
// OnLoadChanged(LoadCommitted) handlers see the new page before any script.
func (h *Host) commit(gen uint64, uri, content string) {
	if gen != h.generation || h.closed {
		return
	}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		h.fail(gen, fmt.Errorf("parse document: %w", err))
		return
	}
	doc, err := h.newDocument(uri, gen, root)
	if err != nil {
		h.fail(gen, err)
		return
	}

	if h.doc != nil {
		h.doc.dispose()
	}
	h.doc = doc
	h.emitLoad(port.LoadCommitted)
	h.post(func() { h.runInlineScripts(gen) })
}

func (h *Host) runInlineScripts(gen uint64) {
	if gen != h.generation || h.closed {
		return
	}
	doc := h.doc
	for _, code := range inlineScripts(doc.root) {
		res := doc.evaluate(code)
		if res.Err != nil {
			h.consoleOut("error", res.Err.Error())
		}
		if gen != h.generation || h.closed {
			return
		}
	}
	doc.setReadyState("complete")
	h.post(func() { h.finish(gen) })
}

func (h *Host) finish(gen uint64) {
	if gen != h.generation || h.closed {
		return
	}
	h.loading = false
	h.emitLoad(port.LoadFinished)
}

// fail ends the load of generation gen. The previous document stays current.
func (h *Host) fail(gen uint64, err error) {
	if gen != h.generation || h.closed {
		return
	}
	h.loading = false
	logging.FromContext(h.baseCtx).Warn().Err(err).Msg("load failed")
	h.emitLoad(port.LoadFailed)
}

// decodeDataURI returns the body of a data: URI
// (data:[<mediatype>][;base64],<data>).
func decodeDataURI(uri string) (string, error) {
	const prefix = "data:"
	if len(uri) < len(prefix) || !strings.EqualFold(uri[:len(prefix)], prefix) {
		return "", fmt.Errorf("jshost: not a data uri: %q", uri)
	}
	rest := uri[len(prefix):]

	meta, data, found := strings.Cut(rest, ",")
	if !found {
		return "", errors.New("jshost: malformed data uri: missing comma")
	}

	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(data)
		}
		if err != nil {
			return "", fmt.Errorf("jshost: decode base64 data uri: %w", err)
		}
		return string(decoded), nil
	}

	decoded, err := url.PathUnescape(data)
	if err != nil {
		return "", fmt.Errorf("jshost: decode data uri: %w", err)
	}
	return decoded, nil
}
