package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) string {
	t.Helper()
	root, err := CanonicalRoot(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("print(1)"), 0644))
	return root
}

func TestResolve(t *testing.T) {
	root := newRoot(t)

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{name: "dot is root", target: ".", want: root},
		{name: "empty is root", target: "", want: root},
		{name: "plain file", target: "main.py", want: filepath.Join(root, "main.py")},
		{name: "nested missing file", target: "pkg/new/file.txt", want: filepath.Join(root, "pkg", "new", "file.txt")},
		{name: "dot dot back inside", target: "pkg/../main.py", want: filepath.Join(root, "main.py")},
		{name: "absolute inside", target: filepath.Join(root, "pkg"), want: filepath.Join(root, "pkg")},
		{name: "parent escape", target: "..", wantErr: true},
		{name: "deep escape", target: "pkg/../../outside.txt", wantErr: true},
		{name: "absolute outside", target: "/bin", wantErr: true},
		{name: "sibling with shared prefix", target: "../" + filepath.Base(root) + "-evil/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(root, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideRoot)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Symlinks(t *testing.T) {
	root := newRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644))

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "pkg"), filepath.Join(root, "alias")))

	t.Run("symlink pointing outside is rejected", func(t *testing.T) {
		_, err := Resolve(root, "escape/secret.txt")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("write target under outside symlink is rejected", func(t *testing.T) {
		_, err := Resolve(root, "escape/new/dir/file.txt")
		assert.ErrorIs(t, err, ErrOutsideRoot)
	})

	t.Run("symlink pointing inside is allowed", func(t *testing.T) {
		got, err := Resolve(root, "alias/x.txt")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "pkg", "x.txt"), got)
	})

	t.Run("symlinked root is canonicalized", func(t *testing.T) {
		link := filepath.Join(t.TempDir(), "rootlink")
		require.NoError(t, os.Symlink(root, link))

		got, err := Resolve(link, "main.py")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "main.py"), got)
	})
}

func TestWithin(t *testing.T) {
	assert.True(t, Within("/a/b", "/a/b"))
	assert.True(t, Within("/a/b", "/a/b/c"))
	assert.True(t, Within("/a/b", "/a/b/..c"))
	assert.False(t, Within("/a/b", "/a"))
	assert.False(t, Within("/a/b", "/a/bc"))
	assert.False(t, Within("/a/b", "/x/y"))
}

func TestCanonicalRoot(t *testing.T) {
	_, err := CanonicalRoot("  ")
	assert.Error(t, err)

	dir := t.TempDir()
	got, err := CanonicalRoot(dir)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
