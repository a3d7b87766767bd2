package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local implements FS using the local filesystem.
//
// Paths are slash-separated and resolved beneath root, so with root "/"
// they are ordinary absolute paths. Entry names use the same namespace.
type Local struct {
	root string
}

// NewLocal creates a filesystem-backed handle rooted at the given directory.
// The directory must exist.
func NewLocal(root string) (*Local, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root %s is not a directory", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the root directory of this handle.
func (l *Local) Root() string {
	return l.root
}

// List returns the children of a directory, or the file itself.
// Returns ErrNotFound if the path does not exist.
// Returns ErrInvalidPath if the path would escape the root.
func (l *Local) List(_ context.Context, p string) ([]Entry, error) {
	name, fullPath, err := l.safePath(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	if !info.IsDir() {
		return []Entry{{Name: name, Size: info.Size()}}, nil
	}

	dirEntries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	// os.ReadDir sorts by filename.
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		child := Entry{Name: path.Join(name, de.Name())}
		// Stat follows symlinks so linked directories list as containers.
		if fi, err := os.Stat(filepath.Join(fullPath, de.Name())); err == nil {
			child.IsContainer = fi.IsDir()
			if !child.IsContainer {
				child.Size = fi.Size()
			}
		}
		entries = append(entries, child)
	}
	return entries, nil
}

// Open opens a file for reading.
// Returns ErrNotFound if the path does not exist, ErrIsContainer for a
// directory, and ErrInvalidPath if the path would escape the root.
func (l *Local) Open(_ context.Context, p string) (io.ReadCloser, error) {
	name, fullPath, err := l.safePath(p)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s", ErrIsContainer, name)
	}
	return file, nil
}

// OpenReaderAt opens a file for random access reads.
func (l *Local) OpenReaderAt(ctx context.Context, p string) (ReaderAt, error) {
	rc, err := l.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	file := rc.(*os.File)
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &fileReaderAt{File: file, size: info.Size()}, nil
}

type fileReaderAt struct {
	*os.File
	size int64
}

func (f *fileReaderAt) Size() int64 { return f.size }

// safePath validates p and returns its normalized name ("/a/b") and the
// filesystem path beneath root.
//
// Note: This does not prevent symlink escapes. A symlink inside the root
// pointing outside can still be followed.
func (l *Local) safePath(p string) (string, string, error) {
	if strings.ContainsRune(p, 0) {
		return "", "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", "", fmt.Errorf("%w: %s escapes root", ErrInvalidPath, p)
		}
	}

	name := path.Clean("/" + p)
	fullPath := filepath.Join(l.root, filepath.FromSlash(name))

	// Verify the resolved path is still under root
	if fullPath != l.root && !strings.HasPrefix(fullPath, strings.TrimSuffix(l.root, string(filepath.Separator))+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%w: %s escapes root", ErrInvalidPath, p)
	}
	return name, fullPath, nil
}

var (
	_ FS           = (*Local)(nil)
	_ RandomAccess = (*Local)(nil)
)
