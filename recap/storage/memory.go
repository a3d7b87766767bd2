package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"
)

// Memory implements FS using an in-memory map of objects. Containers are
// implied by object keys, as in an object store.
//
// Keys are stored without a leading slash. Entry names keep the leading
// slash when the listed path had one, so Memory can stand in for either a
// local filesystem or a bucket-qualified store.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory handle.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Put stores data at the given path.
// Returns ErrPathExists if the path already exists.
// Returns ErrInvalidPath if the path is empty or contains traversal sequences.
func (m *Memory) Put(_ context.Context, p string, r io.Reader) error {
	key, valid := normalizeKey(p)
	if !valid || key == "" {
		return ErrInvalidPath
	}

	// Read data before acquiring lock to minimize lock duration
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; exists {
		return ErrPathExists
	}
	m.data[key] = data
	return nil
}

// List returns the immediate children of p, or p itself when it names an
// object. Returns ErrNotFound when nothing exists at or below p.
func (m *Memory) List(_ context.Context, p string) ([]Entry, error) {
	key, valid := normalizeKey(p)
	if !valid {
		return nil, ErrInvalidPath
	}
	lead := ""
	if strings.HasPrefix(p, "/") {
		lead = "/"
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.data[key]; ok && key != "" {
		return []Entry{{Name: lead + key, Size: int64(len(data))}}, nil
	}

	prefix := key
	if prefix != "" {
		prefix += "/"
	}

	children := make(map[string]Entry)
	for k, data := range m.data {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if child, _, nested := strings.Cut(rest, "/"); nested {
			children[child] = Entry{Name: lead + prefix + child, IsContainer: true}
		} else if _, seen := children[rest]; !seen {
			children[rest] = Entry{Name: lead + k, Size: int64(len(data))}
		}
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	entries := make([]Entry, 0, len(children))
	for _, e := range children {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Open returns a reader over a copy of the stored object.
// Returns ErrNotFound if the path does not exist, ErrIsContainer if it only
// exists as a prefix of other objects.
func (m *Memory) Open(_ context.Context, p string) (io.ReadCloser, error) {
	key, valid := normalizeKey(p)
	if !valid || key == "" {
		return nil, ErrInvalidPath
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.data[key]
	if !exists {
		for k := range m.data {
			if strings.HasPrefix(k, key+"/") {
				return nil, fmt.Errorf("%w: %s", ErrIsContainer, p)
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	// Return a copy so callers never observe later writes.
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// normalizeKey cleans a path into a key without a leading slash. The empty
// key is the root. Returns false for paths that escape via "..".
func normalizeKey(p string) (string, bool) {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	if p == "" {
		return "", true
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	return cleaned, true
}

var _ FS = (*Memory)(nil)
