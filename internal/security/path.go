// Package security confines user-supplied file paths to a configured directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for paths that escape the configured directory
var ErrOutsideDirectory = errors.New("path is outside configured directory")

// PathValidator resolves plan, ground-truth and corpus paths against one directory
type PathValidator struct {
	directory string
	realDir   string
}

// NewPathValidator creates a validator for the given directory. The directory
// must exist; symlinks in it are resolved once here.
func NewPathValidator(directory string) (*PathValidator, error) {
	if directory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access configured directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("configured path is not a directory: %s", directory)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathValidator{directory: filepath.Clean(abs), realDir: resolved}, nil
}

// Directory returns the absolute configured directory
func (v *PathValidator) Directory() string {
	return v.directory
}

// Resolve turns path into an absolute path inside the configured directory.
// Relative paths are taken from the directory. Existing files are checked
// through their symlinks, so a link pointing outside is rejected.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.directory, path)
	}
	clean := filepath.Clean(path)

	if !v.within(clean) && !within(v.realDir, clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}

	resolved, err := filepath.EvalSymlinks(clean)
	switch {
	case err == nil:
		if !within(v.realDir, resolved) {
			return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
		}
	case os.IsNotExist(err):
		// missing files are reported by the reader
	default:
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return clean, nil
}

func (v *PathValidator) within(path string) bool {
	return within(v.directory, path)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
