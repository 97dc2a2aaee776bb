package daemon

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindSocketCreatesListenerWithRestrictedMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hamr.sock")

	ln, err := bindSocket(path)
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBindSocketRemovesStaleSocketFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hamr.sock")

	stale, err := net.Listen("unix", path)
	require.NoError(t, err)
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	stale.Close() // leaves the socket file behind, unlinked by no one

	ln, err := bindSocket(path)
	require.NoError(t, err)
	defer ln.Close()
}

func TestBindSocketRejectsWhenDaemonAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hamr.sock")

	live, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer live.Close()

	_, err = bindSocket(path)
	assert.Error(t, err)
}
