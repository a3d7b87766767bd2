package storage_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/recap/recap/storage"
)

func newLocal(t *testing.T) (*storage.Local, string) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	writeFile(t, filepath.Join(root, "data", "b.csv"), "a,b\n1,2\n")
	writeFile(t, filepath.Join(root, "data", "a.jsonl"), `{"x":1}`+"\n")
	writeFile(t, filepath.Join(root, "data", "nested", "c.parquet"), "PAR1")
	return store, root
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestNewLocal_MissingRoot(t *testing.T) {
	if _, err := storage.NewLocal(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewLocal() error = nil, want error for missing root")
	}
}

func TestLocal_List_Directory(t *testing.T) {
	store, _ := newLocal(t)

	entries, err := store.List(t.Context(), "/data")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []storage.Entry{
		{Name: "/data/a.jsonl", Size: 8},
		{Name: "/data/b.csv", Size: 8},
		{Name: "/data/nested", IsContainer: true},
	}
	if len(entries) != len(want) {
		t.Fatalf("List() = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestLocal_List_WithoutLeadingSlash(t *testing.T) {
	store, _ := newLocal(t)

	entries, err := store.List(t.Context(), "data/nested")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "/data/nested/c.parquet" {
		t.Errorf("List() = %+v, want /data/nested/c.parquet", entries)
	}
}

func TestLocal_List_File(t *testing.T) {
	store, _ := newLocal(t)

	entries, err := store.List(t.Context(), "/data/b.csv")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "/data/b.csv" || entries[0].IsContainer {
		t.Errorf("List(file) = %+v, want the file itself", entries)
	}
}

func TestLocal_List_ErrNotFound(t *testing.T) {
	store, _ := newLocal(t)

	_, err := store.List(t.Context(), "/nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocal_Open(t *testing.T) {
	store, _ := newLocal(t)

	rc, err := store.Open(t.Context(), "/data/b.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = rc.Close() }()

	content, _ := io.ReadAll(rc)
	if string(content) != "a,b\n1,2\n" {
		t.Errorf("content mismatch: got %q", content)
	}
}

func TestLocal_Open_Errors(t *testing.T) {
	store, _ := newLocal(t)

	tests := []struct {
		path string
		want error
	}{
		{"/data/missing.csv", storage.ErrNotFound},
		{"/data", storage.ErrIsContainer},
		{"../etc/passwd", storage.ErrInvalidPath},
		{"/data/../../etc/passwd", storage.ErrInvalidPath},
	}
	for _, tt := range tests {
		_, err := store.Open(t.Context(), tt.path)
		if !errors.Is(err, tt.want) {
			t.Errorf("Open(%q) error = %v, want %v", tt.path, err, tt.want)
		}
	}
}

func TestLocal_List_Root(t *testing.T) {
	store, _ := newLocal(t)

	entries, err := store.List(t.Context(), "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "/data" || !entries[0].IsContainer {
		t.Errorf("List(root) = %+v, want /data container", entries)
	}
}
