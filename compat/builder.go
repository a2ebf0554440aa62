package compat

import (
	"fmt"

	"github.com/lixenwraith/logstream"
)

// Builder creates adapters bound to named loggers of one Registry.
// It can use an existing *logstream.Registry or create one from a *logstream.Config.
type Builder struct {
	registry *logstream.Registry
	cfg      *logstream.Config
	name     string
	err      error
}

// NewBuilder creates a new adapter builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithRegistry specifies an existing registry to take loggers from.
// If this is set WithConfig is ignored.
func (b *Builder) WithRegistry(r *logstream.Registry) *Builder {
	if r == nil {
		b.err = fmt.Errorf("logstream/compat: provided registry cannot be nil")
		return b
	}
	b.registry = r
	return b
}

// WithConfig provides a configuration for a new registry.
// If neither WithRegistry nor WithConfig is used, a default configuration applies.
func (b *Builder) WithConfig(cfg *logstream.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithLoggerName selects the logger adapters write through, "default" if unset
func (b *Builder) WithLoggerName(name string) *Builder {
	b.name = name
	return b
}

// getRegistry resolves the registry to be used, creating one if necessary
func (b *Builder) getRegistry() (*logstream.Registry, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.registry != nil {
		return b.registry, nil
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = logstream.DefaultConfig()
	}

	r := logstream.NewRegistry()
	if err := r.Configure(cfg); err != nil {
		return nil, err
	}

	// Cache for subsequent builds with this builder
	b.registry = r
	return r, nil
}

func (b *Builder) getLogger() (*logstream.Logger, error) {
	r, err := b.getRegistry()
	if err != nil {
		return nil, err
	}
	return r.Get(b.name), nil
}

// BuildGnet creates a gnet adapter
func (b *Builder) BuildGnet(opts ...GnetOption) (*GnetAdapter, error) {
	l, err := b.getLogger()
	if err != nil {
		return nil, err
	}
	return NewGnetAdapter(l, opts...), nil
}

// BuildStructuredGnet creates a gnet adapter that extracts key/value fields
// from log formats
func (b *Builder) BuildStructuredGnet(opts ...GnetOption) (*StructuredGnetAdapter, error) {
	l, err := b.getLogger()
	if err != nil {
		return nil, err
	}
	return NewStructuredGnetAdapter(l, opts...), nil
}

// BuildFastHTTP creates a fasthttp adapter
func (b *Builder) BuildFastHTTP(opts ...FastHTTPOption) (*FastHTTPAdapter, error) {
	l, err := b.getLogger()
	if err != nil {
		return nil, err
	}
	return NewFastHTTPAdapter(l, opts...), nil
}

// GetRegistry returns the underlying registry, creating it if needed
func (b *Builder) GetRegistry() (*logstream.Registry, error) {
	return b.getRegistry()
}

// GetLogger returns the logger adapters are bound to
func (b *Builder) GetLogger() (*logstream.Logger, error) {
	return b.getLogger()
}

// --- Example Usage ---
//
//	reg := logstream.NewRegistry()
//	cfg, _ := logstream.NewConfigFromFile("logstream.toml", os.Args[1:])
//	if err := reg.Configure(cfg); err != nil { /* handle error */ }
//
//	builder := compat.NewBuilder().WithRegistry(reg).WithLoggerName("http")
//	fasthttpLogger, _ := builder.BuildFastHTTP()
//
//	server := &fasthttp.Server{
//		Handler: compat.AccessLog(reg, func(ctx *fasthttp.RequestCtx) {
//			ctx.WriteString("Hello, world!")
//		}),
//		Logger: fasthttpLogger,
//	}
//	go server.ListenAndServe(":8080")
