package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// Field names attached by the With* helpers.
const (
	FieldComponent = "component"
	FieldHost      = "host"
	FieldChannel   = "channel"
	FieldURL       = "url"
	FieldRequestID = "request_id"
)

// FromContext returns the logger carried by ctx. Contexts without one yield a
// disabled logger, so callers never need a nil check.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// annotate derives a child of the logger in ctx through fn. A context whose
// logger is disabled is returned as is.
func annotate(ctx context.Context, fn func(zerolog.Context) zerolog.Context) context.Context {
	parent := zerolog.Ctx(ctx)
	if parent.GetLevel() == zerolog.Disabled {
		return ctx
	}
	return fn(parent.With()).Logger().WithContext(ctx)
}

func withStr(ctx context.Context, key, value string) context.Context {
	return annotate(ctx, func(c zerolog.Context) zerolog.Context { return c.Str(key, value) })
}

// WithComponent tags log lines with the subsystem emitting them.
func WithComponent(ctx context.Context, component string) context.Context {
	return withStr(ctx, FieldComponent, component)
}

// WithHost tags log lines with the browser host kind.
func WithHost(ctx context.Context, kind string) context.Context {
	return withStr(ctx, FieldHost, kind)
}

func WithChannel(ctx context.Context, channel string) context.Context {
	return withStr(ctx, FieldChannel, channel)
}

func WithURL(ctx context.Context, url string) context.Context {
	return withStr(ctx, FieldURL, url)
}

// WithRequestID tags log lines with an envelope request id. Empty ids leave
// ctx untouched.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withStr(ctx, FieldRequestID, id)
}
