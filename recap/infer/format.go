// Package infer produces external schemas from stored files.
//
// A file's format is detected from its suffix. Tabular formats (CSV, TSV,
// Parquet) are probed and return a Table Schema or Parquet schema as-is.
// Streaming formats (JSON, NDJSON, JSON Lines) are decoded record by record
// and folded into a JSON Schema by a Builder. Either way the result is an
// External, which converts once into the canonical type model.
package infer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/pithecene-io/recap/internal/compress"
	"github.com/pithecene-io/recap/recap/storage"
)

// ErrInvalidFormat indicates file content that does not parse as its
// detected format.
var ErrInvalidFormat = errors.New("infer: invalid format")

// Format identifies a supported file format.
type Format string

// Supported formats, named by their file suffix.
const (
	FormatCSV     Format = "csv"
	FormatTSV     Format = "tsv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
	FormatNDJSON  Format = "ndjson"
	FormatJSONL   Format = "jsonl"
)

// Family groups formats by how their schema is obtained.
type Family int

const (
	// FamilyUnknown is the family of formats no adapter handles.
	FamilyUnknown Family = iota
	// FamilyTabular formats carry or imply a column layout and are probed.
	FamilyTabular
	// FamilyStreaming formats are sequences of records folded into a schema.
	FamilyStreaming
)

// Family returns the adapter family of f.
func (f Format) Family() Family {
	switch f {
	case FormatCSV, FormatTSV, FormatParquet:
		return FamilyTabular
	case FormatJSON, FormatNDJSON, FormatJSONL:
		return FamilyStreaming
	default:
		return FamilyUnknown
	}
}

var bySuffix = map[string]Format{
	".csv":     FormatCSV,
	".tsv":     FormatTSV,
	".parquet": FormatParquet,
	".json":    FormatJSON,
	".ndjson":  FormatNDJSON,
	".jsonl":   FormatJSONL,
}

// UnsupportedFormatError reports a file whose suffix maps to no adapter.
type UnsupportedFormatError struct {
	URL    string
	Suffix string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Suffix == "" {
		return fmt.Sprintf("infer: unsupported format: %s has no suffix", e.URL)
	}
	return fmt.Sprintf("infer: unsupported format %q: %s", e.Suffix, e.URL)
}

// DetectFormat returns the format of name by its case-sensitive suffix,
// with a trailing compression suffix (.gz, .zst) peeled first.
func DetectFormat(name string) (Format, compress.Compressor, error) {
	inner, c := compress.Strip(name)
	ext := path.Ext(inner)
	if f, ok := bySuffix[ext]; ok {
		return f, c, nil
	}
	return "", nil, &UnsupportedFormatError{URL: name, Suffix: ext + c.Extension()}
}

// -----------------------------------------------------------------------------
// Source
// -----------------------------------------------------------------------------

// Source is one stored file handed to an adapter.
type Source struct {
	// URL identifies the file in errors and logs.
	URL string

	// Path is the backend-qualified path passed to Storage.
	Path string

	// Storage holds the file.
	Storage storage.FS

	// Format is the detected format.
	Format Format

	// Compression wraps the stored bytes. Noop for plain files.
	Compression compress.Compressor
}

// NewSource detects the format of p and returns a Source reading it from fs.
// The error is an *UnsupportedFormatError naming url when the suffix is not
// recognised.
func NewSource(fs storage.FS, url, p string) (*Source, error) {
	f, c, err := DetectFormat(p)
	if err != nil {
		var ufe *UnsupportedFormatError
		if errors.As(err, &ufe) {
			ufe.URL = url
		}
		return nil, err
	}
	return &Source{URL: url, Path: p, Storage: fs, Format: f, Compression: c}, nil
}

// Open returns the decompressed content. The caller must close it.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := s.Storage.Open(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	if s.Compression == nil {
		return rc, nil
	}
	dr, err := compress.Decompress(s.Compression, rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", ErrInvalidFormat, s.URL, s.Compression.Name(), err)
	}
	return dr, nil
}

// compressed reports whether the stored bytes need decompressing.
func (s *Source) compressed() bool {
	return s.Compression != nil && s.Compression.Extension() != ""
}
