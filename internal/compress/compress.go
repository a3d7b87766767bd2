// Package compress provides the stream decompressors recap can see through
// when reading files, keyed by file extension. recap never writes files, so
// only the read side is implemented.
package compress

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compressor unwraps streams of one compression format.
type Compressor interface {
	// Name returns the compressor identifier.
	Name() string

	// Extension returns the file suffix, including the dot.
	Extension() string

	// Decompress wraps a reader with decompression.
	Decompress(r io.Reader) (io.ReadCloser, error)
}

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

// Gzip implements Compressor for gzip streams.
type Gzip struct{}

// NewGzip creates a gzip compressor.
func NewGzip() *Gzip {
	return &Gzip{}
}

// Name returns the compressor identifier.
func (g *Gzip) Name() string {
	return "gzip"
}

// Extension returns the file extension for gzip.
func (g *Gzip) Extension() string {
	return ".gz"
}

// Decompress wraps a reader with gzip decompression.
func (g *Gzip) Decompress(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

// Zstd implements Compressor for Zstandard streams.
type Zstd struct{}

// NewZstd creates a zstd compressor.
func NewZstd() *Zstd {
	return &Zstd{}
}

// Name returns the compressor identifier.
func (z *Zstd) Name() string {
	return "zstd"
}

// Extension returns the file extension for zstd.
func (z *Zstd) Extension() string {
	return ".zst"
}

// Decompress wraps a reader with zstd decompression.
func (z *Zstd) Decompress(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return decoder.IOReadCloser(), nil
}

// -----------------------------------------------------------------------------
// Noop
// -----------------------------------------------------------------------------

// Noop implements Compressor for uncompressed streams.
type Noop struct{}

// NewNoop creates a noop compressor.
func NewNoop() *Noop {
	return &Noop{}
}

// Name returns the compressor identifier.
func (n *Noop) Name() string {
	return "noop"
}

// Extension returns an empty extension (no compression).
func (n *Noop) Extension() string {
	return ""
}

// Decompress returns a reader that passes through unchanged.
func (n *Noop) Decompress(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

var (
	_ Compressor = (*Gzip)(nil)
	_ Compressor = (*Zstd)(nil)
	_ Compressor = (*Noop)(nil)
)

// -----------------------------------------------------------------------------
// Lookup
// -----------------------------------------------------------------------------

var byExtension = map[string]Compressor{
	".gz":  NewGzip(),
	".zst": NewZstd(),
}

// ForExtension returns the compressor for a file suffix such as ".gz".
func ForExtension(ext string) (Compressor, bool) {
	c, ok := byExtension[ext]
	return c, ok
}

// Strip removes a trailing compression suffix from name. It returns the
// inner name and the matching compressor, or name unchanged with Noop.
func Strip(name string) (string, Compressor) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || strings.LastIndexByte(name, '/') > i {
		return name, NewNoop()
	}
	if c, ok := ForExtension(name[i:]); ok {
		return name[:i], c
	}
	return name, NewNoop()
}

// Decompress wraps r with decompression, so the caller closes one handle
// that releases both the decompressor and r.
func Decompress(c Compressor, r io.ReadCloser) (io.ReadCloser, error) {
	dr, err := c.Decompress(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return &stackedCloser{ReadCloser: dr, under: r}, nil
}

type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}
