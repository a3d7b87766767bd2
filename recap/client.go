// Package recap resolves locations to their children and to a canonical
// description of their data structure.
//
// A location is a URL ("s3://bucket/dir", "file:///data/x.csv") or a bare
// absolute path ("/data/x.csv"). Requests are routed through a Registry of
// URL templates; the winning handler receives only the capabilities it
// registered for, such as the storage handle of the URL's scheme.
//
// # Usage
//
//	local, _ := storage.NewLocal("/")
//	client, err := recap.New(recap.WithStorage("file", local))
//	children, err := client.Ls(ctx, "/data")
//	schema, err := client.Schema(ctx, "/data/events.jsonl")
//
// Schemas are returned as types.Type values; types.Marshal renders the
// stable JSON representation.
package recap

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pithecene-io/recap/recap/infer"
	"github.com/pithecene-io/recap/recap/storage"
	"github.com/pithecene-io/recap/recap/types"
)

// Client lists and describes locations across configured storage backends.
// A Client is safe for concurrent use once constructed.
type Client struct {
	registry  *Registry
	prober    infer.Prober
	streaming *infer.StreamingAdapter
	storages  map[string]*storageSlot
	logger    zerolog.Logger
}

// storageSlot holds a storage handle, built on first use when lazy.
type storageSlot struct {
	fs      storage.FS
	factory func(context.Context) (storage.FS, error)
	once    sync.Once
	err     error
}

func (s *storageSlot) get(ctx context.Context) (storage.FS, error) {
	if s.factory == nil {
		return s.fs, nil
	}
	s.once.Do(func() {
		// The first caller's cancellation must not poison the shared handle.
		s.fs, s.err = s.factory(context.WithoutCancel(ctx))
	})
	return s.fs, s.err
}

// Option configures a Client.
type Option func(*Client)

// WithStorage serves scheme from fs.
func WithStorage(scheme string, fs storage.FS) Option {
	return func(c *Client) {
		c.storages[strings.ToLower(scheme)] = &storageSlot{fs: fs}
	}
}

// WithStorageFactory serves scheme from the handle factory returns. The
// factory runs once, on the first request for the scheme; its result,
// including an error, is reused.
func WithStorageFactory(scheme string, factory func(context.Context) (storage.FS, error)) Option {
	return func(c *Client) {
		c.storages[strings.ToLower(scheme)] = &storageSlot{factory: factory}
	}
}

// WithProber sets the prober for tabular formats of the built-in routes.
func WithProber(p infer.Prober) Option {
	return func(c *Client) {
		c.prober = p
	}
}

// WithStreamingAdapter sets the adapter for streaming formats of the
// built-in routes.
func WithStreamingAdapter(a *infer.StreamingAdapter) Option {
	return func(c *Client) {
		c.streaming = a
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRegistry replaces the built-in routes. WithProber and
// WithStreamingAdapter have no effect with a custom registry.
func WithRegistry(r *Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

// New creates a Client. Without WithRegistry it serves the built-in routes.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		storages: make(map[string]*storageSlot),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		if c.prober == nil {
			c.prober = infer.NewTabularProber()
		}
		if c.streaming == nil {
			c.streaming = infer.NewStreamingAdapter()
		}
		b := NewBuilder()
		if err := RegisterRoutes(b, c.prober, c.streaming); err != nil {
			return nil, err
		}
		c.registry = b.Build()
	}
	return c, nil
}

// Registry returns the registry the client dispatches through.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Storage implements StorageProvider.
func (c *Client) Storage(ctx context.Context, scheme string) (storage.FS, error) {
	slot, ok := c.storages[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStorage, scheme)
	}
	return slot.get(ctx)
}

// Schemes returns the configured storage schemes, sorted.
func (c *Client) Schemes() []string {
	return slices.Sorted(maps.Keys(c.storages))
}

// Ls returns the immediate children of url as URLs.
func (c *Client) Ls(ctx context.Context, url string) ([]string, error) {
	return call[[]string](ctx, c, ActionList, url)
}

// Schema returns the canonical schema of the file at url.
func (c *Client) Schema(ctx context.Context, url string) (types.Type, error) {
	return call[types.Type](ctx, c, ActionSchema, url)
}

func call[R any](ctx context.Context, c *Client, action Action, url string) (R, error) {
	var zero R
	m, err := c.registry.Resolve(url, action)
	if err != nil {
		c.logger.Debug().Err(err).Str("url", url).Str("action", string(action)).Msg("resolve failed")
		return zero, err
	}
	c.logger.Debug().
		Str("url", url).
		Str("action", string(action)).
		Str("template", m.Template.String()).
		Str("scheme", m.Scheme).
		Msg("resolved route")

	v, err := c.registry.Invoke(ctx, m, c)
	if err != nil {
		return zero, err
	}
	return result[R](v, action, url)
}

var _ StorageProvider = (*Client)(nil)
