package recap

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/pithecene-io/recap/recap/storage"
)

// Action labels what a route does with a URL.
type Action string

// Actions.
const (
	// ActionList returns the children of a URL.
	ActionList Action = "contains"

	// ActionSchema returns the canonical schema of a URL.
	ActionSchema Action = "schema"
)

// Capability is a set of inputs a handler asks the dispatcher for.
type Capability uint8

// Capabilities.
const (
	// CapStorage injects the storage handle for the resolved scheme.
	CapStorage Capability = 1 << iota
	// CapURL injects the URL as given by the caller.
	CapURL
	// CapParams injects the placeholder values bound by the template.
	CapParams
	// CapScheme injects the resolved scheme.
	CapScheme
)

// Has reports whether c includes every capability in o.
func (c Capability) Has(o Capability) bool { return c&o == o }

// Bundle carries the capabilities a handler registered for. Fields for
// capabilities it did not request are zero.
type Bundle struct {
	Storage storage.FS
	URL     string
	Params  map[string]string
	Scheme  string
}

// Param returns a bound placeholder value.
func (b Bundle) Param(name string) (string, bool) {
	v, ok := b.Params[name]
	return v, ok
}

// Handler serves one action for the URLs its templates match.
type Handler func(ctx context.Context, b Bundle) (any, error)

// StorageProvider supplies the storage handle for a resolved scheme.
type StorageProvider interface {
	Storage(ctx context.Context, scheme string) (storage.FS, error)
}

// StorageProviderFunc adapts a function to StorageProvider.
type StorageProviderFunc func(ctx context.Context, scheme string) (storage.FS, error)

// Storage implements StorageProvider.
func (f StorageProviderFunc) Storage(ctx context.Context, scheme string) (storage.FS, error) {
	return f(ctx, scheme)
}

// entry is one registration.
type entry struct {
	template *Template
	action   Action
	handler  Handler
	caps     Capability
}

// -----------------------------------------------------------------------------
// Builder
// -----------------------------------------------------------------------------

// Builder collects registrations. Build freezes them into a Registry.
// A Builder is not safe for concurrent use.
type Builder struct {
	entries []*entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Register adds a route serving action for URLs matching template.
//
// Returns a *TemplateError for a malformed template, a *ConflictError if the
// same template is already registered for action, and an
// *AmbiguousMatchError if a template differing only in placeholder names is.
func (b *Builder) Register(template string, action Action, h Handler, caps Capability) error {
	if h == nil {
		return fmt.Errorf("recap: nil handler for %s", template)
	}
	t, err := ParseTemplate(template)
	if err != nil {
		return err
	}
	for _, e := range b.entries {
		if e.action != action {
			continue
		}
		if e.template.canonical() == t.canonical() {
			return &ConflictError{Template: template, Action: action}
		}
		if e.template.shape() == t.shape() {
			return &AmbiguousMatchError{Action: action, Templates: []string{e.template.String(), template}}
		}
	}
	b.entries = append(b.entries, &entry{template: t, action: action, handler: h, caps: caps})
	return nil
}

// Register adds a handler with a typed result. See Builder.Register.
func Register[R any](b *Builder, template string, action Action, h func(context.Context, Bundle) (R, error), caps Capability) error {
	if h == nil {
		return fmt.Errorf("recap: nil handler for %s", template)
	}
	return b.Register(template, action, func(ctx context.Context, bun Bundle) (any, error) {
		return h(ctx, bun)
	}, caps)
}

// Build returns an immutable Registry holding the registrations so far.
func (b *Builder) Build() *Registry {
	r := &Registry{byAction: make(map[Action][]*entry)}
	for _, e := range b.entries {
		r.byAction[e.action] = append(r.byAction[e.action], e)
	}
	return r
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry resolves URLs to routes. It is read-only and safe for concurrent
// use.
type Registry struct {
	byAction map[Action][]*entry
}

// Route describes one registration.
type Route struct {
	Template     string
	Action       Action
	Capabilities Capability
}

// Routes returns the registrations in registration order per action, with
// actions sorted.
func (r *Registry) Routes() []Route {
	var routes []Route
	for _, action := range slices.Sorted(maps.Keys(r.byAction)) {
		for _, e := range r.byAction[action] {
			routes = append(routes, Route{Template: e.template.String(), Action: e.action, Capabilities: e.caps})
		}
	}
	return routes
}

// MatchResult is the route chosen for a URL.
type MatchResult struct {
	// URL is the URL as given.
	URL string

	// Template is the winning template.
	Template *Template

	// Action is the resolved action.
	Action Action

	// Params holds the bound placeholder values.
	Params map[string]string

	// Scheme is the URL's scheme, "file" for bare paths.
	Scheme string

	entry *entry
}

// Resolve finds the most specific route for url and action.
//
// Candidates are routes whose literal scheme equals the URL's. Among those
// that match, the highest specificity wins: most literal segments, then most
// literal characters. Returns a *NoMatchError if nothing matches and an
// *AmbiguousMatchError if the best matches tie.
func (r *Registry) Resolve(url string, action Action) (*MatchResult, error) {
	loc := parseLocation(url)

	var (
		best   *MatchResult
		bestSp specificity
		ties   []string
	)
	for _, e := range r.byAction[action] {
		params, sp, ok := e.template.match(loc)
		if !ok {
			continue
		}
		if best != nil {
			switch c := sp.compare(bestSp); {
			case c < 0:
				continue
			case c == 0:
				ties = append(ties, e.template.String())
				continue
			}
		}
		best = &MatchResult{
			URL:      url,
			Template: e.template,
			Action:   action,
			Params:   params,
			Scheme:   loc.resolvedScheme(),
			entry:    e,
		}
		bestSp = sp
		ties = ties[:0]
	}

	if best == nil {
		return nil, &NoMatchError{URL: url, Action: action}
	}
	if len(ties) > 0 {
		return nil, &AmbiguousMatchError{
			URL:       url,
			Action:    action,
			Templates: append([]string{best.Template.String()}, ties...),
		}
	}
	return best, nil
}

// Invoke runs the handler of a resolved match with the capabilities it
// registered for. The storage handle is requested from provider only when
// the route asks for CapStorage.
func (r *Registry) Invoke(ctx context.Context, m *MatchResult, provider StorageProvider) (any, error) {
	if m == nil || m.entry == nil {
		return nil, fmt.Errorf("recap: invoke: unresolved match")
	}
	e := m.entry

	var b Bundle
	if e.caps.Has(CapStorage) {
		if provider == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoStorage, m.Scheme)
		}
		fs, err := provider.Storage(ctx, m.Scheme)
		if err != nil {
			return nil, err
		}
		b.Storage = fs
	}
	if e.caps.Has(CapURL) {
		b.URL = m.URL
	}
	if e.caps.Has(CapParams) {
		b.Params = maps.Clone(m.Params)
	}
	if e.caps.Has(CapScheme) {
		b.Scheme = m.Scheme
	}
	return e.handler(ctx, b)
}

// Call resolves url for action and invokes the winning handler.
func (r *Registry) Call(ctx context.Context, action Action, url string, provider StorageProvider) (any, error) {
	m, err := r.Resolve(url, action)
	if err != nil {
		return nil, err
	}
	return r.Invoke(ctx, m, provider)
}

// Call resolves url for action and invokes the winning handler, asserting
// its result type.
func Call[R any](ctx context.Context, r *Registry, action Action, url string, provider StorageProvider) (R, error) {
	v, err := r.Call(ctx, action, url, provider)
	if err != nil {
		var zero R
		return zero, err
	}
	return result[R](v, action, url)
}

func result[R any](v any, action Action, url string) (R, error) {
	out, ok := v.(R)
	if !ok && v != nil {
		var zero R
		return zero, fmt.Errorf("recap: %s handler for %s returned %T, want %T", action, url, v, zero)
	}
	return out, nil
}
