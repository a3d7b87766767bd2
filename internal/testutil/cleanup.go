// Package testutil provides filesystem fixtures for examples and tests.
package testutil

import (
	"os"
	"path/filepath"
)

// RemoveAll removes the path and any children. Errors are ignored.
//
//	defer testutil.RemoveAll(tmpDir)
func RemoveAll(path string) { _ = os.RemoveAll(path) }

// WriteFiles creates each slash-separated name under root with its content,
// making parent directories as needed.
//
//	err := testutil.WriteFiles(root, map[string]string{
//	    "data/people.csv": "name,age\nada,36\n",
//	})
func WriteFiles(root string, files map[string]string) error {
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
