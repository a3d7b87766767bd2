// Package storage defines the storage handle recap lists and reads through,
// with local filesystem and in-memory implementations.
//
// Paths are backend-qualified: local paths are absolute ("/data/x.csv"),
// object stores use "bucket/key". Handles never interpret URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// Error sentinels.
var (
	// ErrNotFound indicates the path does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidPath indicates a path that is malformed or would escape the
	// storage root.
	ErrInvalidPath = errors.New("storage: invalid path")

	// ErrIsContainer indicates Open was called on a directory or prefix.
	ErrIsContainer = errors.New("storage: path is a container")

	// ErrPathExists indicates a write to a path that already exists.
	ErrPathExists = errors.New("storage: path exists")
)

// Entry is one child returned by List.
type Entry struct {
	// Name is the backend-qualified path of the child.
	Name string

	// IsContainer is true for directories and common prefixes.
	IsContainer bool

	// Size is the object size in bytes, zero for containers.
	Size int64
}

// FS is a storage handle.
//
// List returns the immediate children of a container path, sorted by name.
// Listing a single object returns that object as the only entry. Open
// returns a reader for an object; the caller must close it.
type FS interface {
	List(ctx context.Context, path string) ([]Entry, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ReaderAt is a random access reader over one object of known size.
type ReaderAt interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// RandomAccess is implemented by handles that can serve ranged reads, so
// formats with trailing metadata (Parquet footers) avoid a full download.
type RandomAccess interface {
	OpenReaderAt(ctx context.Context, path string) (ReaderAt, error)
}

// OpenReaderAt returns a random access reader for path. Handles without
// RandomAccess support are read fully into memory.
func OpenReaderAt(ctx context.Context, fs FS, path string) (ReaderAt, error) {
	if ra, ok := fs.(RandomAccess); ok {
		return ra.OpenReaderAt(ctx, path)
	}
	rc, err := fs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return &bytesReaderAt{Reader: bytes.NewReader(data)}, nil
}

type bytesReaderAt struct {
	*bytes.Reader
}

func (b *bytesReaderAt) Close() error { return nil }
