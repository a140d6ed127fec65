package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/browserbridge/internal/app/messaging"
	"github.com/bnema/browserbridge/internal/cli/styles"
)

// MessagePrinter registers a handler per channel that writes each message to
// out. With replies enabled, envelopes of the built-in types are also
// answered through window callbacks:
//
//	{"type": "echo", "requestId": "1", "payload": ...}  replies with payload
//	{"type": "channels", "requestId": "2"}               replies with the channel list
type MessagePrinter struct {
	bridge *messaging.Bridge
	out    io.Writer
	theme  *styles.Theme

	replyCallback string
	errorCallback string
}

// NewMessagePrinter creates a printer for bridge.
func NewMessagePrinter(bridge *messaging.Bridge, out io.Writer, theme *styles.Theme) *MessagePrinter {
	return &MessagePrinter{bridge: bridge, out: out, theme: theme}
}

// SetReplies enables envelope replies through the named window functions.
// errorCallback may be empty. It affects channels registered by later Sync
// calls.
func (p *MessagePrinter) SetReplies(callback, errorCallback string) {
	p.replyCallback = callback
	p.errorCallback = errorCallback
}

// Sync makes channels the exact set of printed channels: missing ones are
// registered and the rest unregistered. Runs on the loop.
func (p *MessagePrinter) Sync(channels []string) error {
	want := make(map[string]bool, len(channels))
	for _, channel := range channels {
		want[channel] = true
		if p.bridge.HasHandler(channel) {
			continue
		}
		handler, err := p.handler(channel)
		if err != nil {
			return fmt.Errorf("channel %q: %w", channel, err)
		}
		if err := p.bridge.RegisterHandler(channel, handler); err != nil {
			return fmt.Errorf("register channel %q: %w", channel, err)
		}
	}
	for _, channel := range p.bridge.Channels() {
		if !want[channel] {
			p.bridge.UnregisterHandler(channel)
		}
	}
	return nil
}

func (p *MessagePrinter) handler(channel string) (messaging.Handler, error) {
	show := p.print(channel)
	if p.replyCallback == "" {
		return messaging.HandlerFunc(show), nil
	}

	router := messaging.NewRouter(p.bridge)
	routes := map[string]messaging.RouteHandlerFunc{
		"echo": func(_ context.Context, payload json.RawMessage) (any, error) {
			if len(payload) == 0 {
				return nil, errors.New("echo needs a payload")
			}
			return payload, nil
		},
		"channels": func(context.Context, json.RawMessage) (any, error) {
			return p.bridge.Channels(), nil
		},
	}
	for msgType, route := range routes {
		if err := router.HandleWithCallbacks(msgType, p.replyCallback, p.errorCallback, route); err != nil {
			return nil, err
		}
	}

	return messaging.HandlerFunc(func(ctx context.Context, payload messaging.Payload) error {
		if err := show(ctx, payload); err != nil {
			return err
		}
		return router.HandleMessage(ctx, payload)
	}), nil
}

func (p *MessagePrinter) print(channel string) func(context.Context, messaging.Payload) error {
	return func(_ context.Context, payload messaging.Payload) error {
		_, err := fmt.Fprintln(p.out, p.theme.RenderMessage(channel, payload.String()))
		return err
	}
}

// Console returns a console sink writing to out.
func Console(out io.Writer, theme *styles.Theme) func(level, message string) {
	return func(level, message string) {
		fmt.Fprintln(out, theme.RenderConsole(level, message))
	}
}
