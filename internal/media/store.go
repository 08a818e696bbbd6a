// Package media stores downloaded assets on the local filesystem.
package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store writes media bytes under a root directory. Files are written to a
// temporary path and renamed into place, so a path returned by Save always
// refers to a completed transfer.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a Store.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &Store{root: root}, nil
}

// Save streams r to <root>/<handle>/<externalID>_<position><ext> and returns
// the final path.
func (s *Store) Save(handle, externalID string, position int, ext string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, pathSafe(handle))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	name := fmt.Sprintf("%s_%d%s", pathSafe(externalID), position, ext)
	final := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("rename media: %w", err)
	}
	return final, nil
}

// pathSafe keeps identifiers from escaping the store directory.
func pathSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
