package compat

import (
	"fmt"
	"time"

	"github.com/lixenwraith/logstream"
	"github.com/valyala/fasthttp"
)

// DefaultAccessLoggerName is the logger receiving one record per request
const DefaultAccessLoggerName = "Express"

type accessConfig struct {
	name string
	now  func() time.Time
}

// AccessOption customizes AccessLog
type AccessOption func(*accessConfig)

// WithAccessLoggerName logs requests through a differently named logger
func WithAccessLoggerName(name string) AccessOption {
	return func(c *accessConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithAccessClock overrides the clock used to time requests
func WithAccessClock(now func() time.Time) AccessOption {
	return func(c *accessConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// AccessLog wraps a fasthttp handler and emits one info record per completed
// request: "<METHOD> <URI> <STATUS> - <ms> ms".
func AccessLog(reg *logstream.Registry, next fasthttp.RequestHandler, opts ...AccessOption) fasthttp.RequestHandler {
	cfg := accessConfig{name: DefaultAccessLoggerName, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx *fasthttp.RequestCtx) {
		start := cfg.now()
		next(ctx)
		duration := cfg.now().Sub(start).Milliseconds()
		status := ctx.Response.StatusCode()

		reg.Get(cfg.name).Info(
			fmt.Sprintf("%s %s %d - %d ms", ctx.Method(), ctx.RequestURI(), status, duration),
			"status", status,
			"duration_ms", duration,
		)
	}
}
