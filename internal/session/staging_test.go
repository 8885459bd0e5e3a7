package session

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_CreatesOwnerOnlyFileWithContent(t *testing.T) {
	old := shmDir
	shmDir = t.TempDir()
	t.Cleanup(func() { shmDir = old })

	f, err := Stage([]byte("private thoughts"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Cleanup() })

	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "private thoughts", string(data))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(f.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestStage_ReadSeesEditorChanges(t *testing.T) {
	old := shmDir
	shmDir = t.TempDir()
	t.Cleanup(func() { shmDir = old })

	f, err := Stage([]byte("before"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Cleanup() })

	require.NoError(t, os.WriteFile(f.Path(), []byte("after"), 0o600))

	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "after", string(data))
}

func TestCleanup_RemovesFile(t *testing.T) {
	old := shmDir
	shmDir = t.TempDir()
	t.Cleanup(func() { shmDir = old })

	f, err := Stage([]byte("secret"))
	require.NoError(t, err)

	require.NoError(t, f.Cleanup())

	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	// Cleanup after removal is not an error.
	assert.NoError(t, f.Cleanup())
}
