package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plan.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF-1.4"), 0o600))

	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{name: "valid directory", dir: dir},
		{name: "empty", dir: "", wantErr: true},
		{name: "missing", dir: filepath.Join(dir, "missing"), wantErr: true},
		{name: "file instead of directory", dir: file, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewPathValidator(tt.dir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(dir), v.Directory())
		})
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sheets"), 0o755))
	inside := filepath.Join(dir, "sheets", "A-101.pdf")
	require.NoError(t, os.WriteFile(inside, []byte("%PDF-1.4"), 0o600))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "absolute inside", path: inside, want: inside},
		{name: "relative", path: "sheets/A-101.pdf", want: inside},
		{name: "missing file inside", path: "ground_truth.yaml", want: filepath.Join(dir, "ground_truth.yaml")},
		{name: "dot segments collapse", path: "sheets/../sheets/A-101.pdf", want: inside},
		{name: "traversal", path: "../etc/passwd", wantErr: ErrOutsideDirectory},
		{name: "absolute outside", path: "/etc/passwd", wantErr: ErrOutsideDirectory},
		{name: "sibling prefix", path: dir + "-other/plan.pdf", wantErr: ErrOutsideDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = v.Resolve("")
	assert.Error(t, err)
	_, err = v.Resolve("\x00")
	assert.Error(t, err)
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o600))

	dir := t.TempDir()
	link := filepath.Join(dir, "plan.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(dir)
	require.NoError(t, err)
	_, err = v.Resolve("plan.json")
	assert.ErrorIs(t, err, ErrOutsideDirectory)
}
