package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/bnema/browserbridge/internal/logging"
)

// Envelope is the optional typed message format page script may post on a
// channel: {"type": "...", "requestId": "...", "payload": {...}}.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RouteHandler handles the payload of one envelope type.
type RouteHandler interface {
	Handle(ctx context.Context, payload json.RawMessage) (any, error)
}

// RouteHandlerFunc adapts a function to the RouteHandler interface.
type RouteHandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Handle calls f(ctx, payload).
func (f RouteHandlerFunc) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	return f(ctx, payload)
}

// ScriptRunner submits fire-and-forget scripts. *Bridge implements it.
type ScriptRunner interface {
	RunScript(code string)
}

type routeEntry struct {
	handler       RouteHandler
	callback      string
	errorCallback string
}

// callbackName restricts response callbacks to dotted JS identifiers so they
// can be interpolated into a script safely.
var callbackName = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// Router is a channel Handler that decodes envelopes and routes them by type.
// Payloads that are not envelopes go to the fallback handler, if any.
// Responses are sent back to page script by calling window callbacks.
type Router struct {
	routes   map[string]routeEntry
	fallback Handler
	runner   ScriptRunner
	dedup    *RequestDeduplicator
}

var _ Handler = (*Router)(nil)

// NewRouter creates a router replying through runner (may be nil when no
// route uses callbacks).
func NewRouter(runner ScriptRunner) *Router {
	return &Router{
		routes: make(map[string]routeEntry),
		runner: runner,
		dedup:  NewRequestDeduplicator(0),
	}
}

// Handle registers h for envelopes of msgType, replacing any previous route.
func (r *Router) Handle(msgType string, h RouteHandler) error {
	if msgType == "" {
		return errors.New("message type cannot be empty")
	}
	if h == nil {
		return ErrNilHandler
	}
	r.routes[msgType] = routeEntry{handler: h}
	return nil
}

// HandleWithCallbacks registers h and the window functions receiving its
// result. callback is invoked on success, errorCallback (optional) on failure.
func (r *Router) HandleWithCallbacks(msgType, callback, errorCallback string, h RouteHandler) error {
	if msgType == "" {
		return errors.New("message type cannot be empty")
	}
	if h == nil {
		return ErrNilHandler
	}
	if !callbackName.MatchString(callback) {
		return fmt.Errorf("invalid callback name %q", callback)
	}
	if errorCallback != "" && !callbackName.MatchString(errorCallback) {
		return fmt.Errorf("invalid error callback name %q", errorCallback)
	}
	if r.runner == nil {
		return errors.New("router has no script runner for callbacks")
	}
	r.routes[msgType] = routeEntry{
		handler:       h,
		callback:      callback,
		errorCallback: errorCallback,
	}
	return nil
}

// SetFallback sets the handler for payloads that are not envelopes.
func (r *Router) SetFallback(h Handler) {
	r.fallback = h
}

// HandleMessage implements Handler.
func (r *Router) HandleMessage(ctx context.Context, payload Payload) error {
	log := logging.FromContext(ctx)

	env, ok := parseEnvelope(payload)
	if !ok {
		if r.fallback != nil {
			return r.fallback.HandleMessage(ctx, payload)
		}
		log.Debug().Msg("payload is not an envelope, dropping")
		return nil
	}

	entry, found := r.routes[env.Type]
	if !found {
		log.Warn().Str("type", env.Type).Msg("no route registered for message type")
		return nil
	}

	ctx = logging.WithRequestID(ctx, env.RequestID)
	log = logging.FromContext(ctx)
	if r.dedup.IsDuplicate(env.RequestID) {
		log.Debug().Str("type", env.Type).Msg("duplicate request dropped")
		return nil
	}

	resp, err := entry.handler.Handle(ctx, env.Payload)
	if err != nil {
		// A failed request may be retried under the same id.
		r.dedup.Forget(env.RequestID)
		if entry.errorCallback != "" {
			if respErr := r.respond(entry.errorCallback, env.RequestID, err.Error()); respErr != nil {
				log.Warn().Err(respErr).Msg("failed to dispatch error callback")
			}
		}
		return fmt.Errorf("route %q: %w", env.Type, err)
	}

	if entry.callback != "" {
		if err := r.respond(entry.callback, env.RequestID, resp); err != nil {
			log.Warn().Err(err).Str("callback", entry.callback).Msg("failed to dispatch callback response")
		}
	}
	return nil
}

func parseEnvelope(payload Payload) (Envelope, bool) {
	if !payload.IsJSON() {
		return Envelope{}, false
	}
	var env Envelope
	if err := payload.Decode(&env); err != nil || env.Type == "" {
		return Envelope{}, false
	}
	return env, true
}

// respond serializes the payload and invokes a window callback in JS.
func (r *Router) respond(callback, requestID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}
	reqID, err := json.Marshal(requestID)
	if err != nil {
		return fmt.Errorf("marshal request id: %w", err)
	}

	r.runner.RunScript(buildCallbackScript(callback, string(data), string(reqID)))
	return nil
}

func buildCallbackScript(callback, data, requestID string) string {
	return fmt.Sprintf(
		`(function(){try{var f=window.%[1]s;if(typeof f==="function"){f(%[2]s,%[3]s);}`+
			`else{console.warn("bridge callback missing: %[1]s");}}`+
			`catch(e){console.error("bridge callback %[1]s failed",e);}})();`,
		callback,
		data,
		requestID,
	)
}
