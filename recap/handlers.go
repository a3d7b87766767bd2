package recap

import (
	"context"
	"path"
	"strings"

	"github.com/pithecene-io/recap/recap/infer"
	"github.com/pithecene-io/recap/recap/types"
)

// routeCaps is what the built-in handlers ask for.
const routeCaps = CapStorage | CapURL | CapParams | CapScheme

// listTemplates and schemaTemplates are the built-in routes.
var (
	listTemplates = []string{
		"s3://{path:path}",
		"gs://{path:path}",
		"file:///{path:path}",
		"/{path:path}",
	}
	schemaTemplates = []string{
		"s3://{bucket}/{path:path}",
		"gs://{bucket}/{path:path}",
		"file:///{path:path}",
		"/{path:path}",
	}
)

// RegisterRoutes adds the built-in listing and schema routes to b. The
// schema routes probe tabular files with prober and fold streaming files
// with streaming.
func RegisterRoutes(b *Builder, prober infer.Prober, streaming *infer.StreamingAdapter) error {
	for _, t := range listTemplates {
		if err := Register(b, t, ActionList, List, routeCaps); err != nil {
			return err
		}
	}
	h := &SchemaHandler{Prober: prober, Streaming: streaming}
	for _, t := range schemaTemplates {
		if err := Register(b, t, ActionSchema, h.Schema, routeCaps); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a Registry holding the built-in routes with the
// default adapters.
func DefaultRegistry() *Registry {
	b := NewBuilder()
	if err := RegisterRoutes(b, infer.NewTabularProber(), infer.NewStreamingAdapter()); err != nil {
		panic(err)
	}
	return b.Build()
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

// List returns the immediate children of the bound path as URLs with the
// request's scheme. Paths of the file scheme are rooted. Storage errors are
// returned unchanged.
func List(ctx context.Context, b Bundle) ([]string, error) {
	scheme := b.Scheme
	if scheme == "" {
		scheme = "file"
	}
	p := b.Params["path"]
	if scheme == "file" {
		p = "/" + p
	}

	entries, err := b.Storage.List(ctx, p)
	if err != nil {
		return nil, err
	}
	children := make([]string, len(entries))
	for i, e := range entries {
		children[i] = scheme + "://" + e.Name
	}
	return children, nil
}

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// SchemaHandler infers the canonical schema of a stored file.
type SchemaHandler struct {
	Prober    infer.Prober
	Streaming *infer.StreamingAdapter
}

// Schema detects the file format from its suffix, obtains the external
// schema from the matching adapter and converts it to a canonical type.
// Bare paths are reported as file:// URLs.
func (h *SchemaHandler) Schema(ctx context.Context, b Bundle) (types.Type, error) {
	url := b.URL
	if !strings.Contains(url, "://") {
		url = "file://" + url
	}

	p := b.Params["path"]
	if bucket, ok := b.Params["bucket"]; ok {
		p = bucket + "/" + p
	} else if b.Scheme == "file" || b.Scheme == "" {
		p = "/" + p
	}

	src, err := infer.NewSource(b.Storage, url, p)
	if err != nil {
		return nil, err
	}

	ext, err := h.infer(ctx, src)
	if err != nil {
		return nil, err
	}
	return ext.Canonical()
}

// infer runs the adapter of src's format family.
func (h *SchemaHandler) infer(ctx context.Context, src *infer.Source) (infer.External, error) {
	switch src.Format.Family() {
	case infer.FamilyTabular:
		prober := h.Prober
		if prober == nil {
			prober = infer.NewTabularProber()
		}
		return prober.Probe(ctx, src)
	case infer.FamilyStreaming:
		streaming := h.Streaming
		if streaming == nil {
			streaming = infer.NewStreamingAdapter()
		}
		return streaming.Infer(ctx, src)
	default:
		return infer.External{}, &UnsupportedFormatError{URL: src.URL, Suffix: path.Ext(src.Path)}
	}
}
