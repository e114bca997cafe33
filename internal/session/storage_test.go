package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"esnafpanel-core/internal/model"
)

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStorage(path)

	stored := Stored{
		AccessToken:  "T1",
		RefreshToken: "R1",
		User:         &model.User{ID: "u-1", Email: "ayse@esnaf.dev"},
	}
	require.NoError(t, fs.Write(stored))

	got, err := fs.Read()
	require.NoError(t, err)
	require.Equal(t, stored, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorageMissingFileIsEmpty(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "absent.json"))

	got, err := fs.Read()
	require.NoError(t, err)
	require.Equal(t, Stored{}, got)
}

func TestFileStorageClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fs := NewFileStorage(path)
	require.NoError(t, fs.Write(Stored{AccessToken: "T1"}))

	require.NoError(t, fs.Clear())
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Clearing again is a no-op.
	require.NoError(t, fs.Clear())
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	fs := NewFileStorage(path)
	_, err := fs.Read()
	require.Error(t, err)
}

func TestDefaultStatePathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	require.Equal(t, filepath.Join("/tmp/xdg", "esnafpanel", "session.json"), DefaultStatePath())
}
