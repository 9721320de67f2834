package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startCall struct {
	name string
	args []string
}

func newTestLauncher(command string, goos string, installed ...string) (*Launcher, *[]startCall) {
	calls := &[]startCall{}
	l := NewLauncher(command, []string{"--fs"}, NullLogger())
	l.goos = goos
	l.lookPath = func(name string) (string, error) {
		for _, n := range installed {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	l.start = func(name string, args ...string) error {
		*calls = append(*calls, startCall{name: name, args: args})
		return nil
	}
	return l, calls
}

func writePlaylist(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ep.m3u8")
	require.NoError(t, os.WriteFile(path, []byte("#EXTM3U\n"), 0644))
	return path
}

func TestLaunchConfiguredPlayer(t *testing.T) {
	target := writePlaylist(t)
	l, calls := newTestLauncher("mpv", "linux", "mpv")

	require.NoError(t, l.Launch(target))
	require.Len(t, *calls, 1)
	assert.Equal(t, "mpv", (*calls)[0].name)
	assert.Equal(t, []string{"--fs", target}, (*calls)[0].args)
}

func TestLaunchConfiguredPlayerMissing(t *testing.T) {
	target := writePlaylist(t)
	l, calls := newTestLauncher("nonexistent", "linux")

	assert.Error(t, l.Launch(target))
	assert.Empty(t, *calls, "configured player must not fall back")
}

func TestLaunchDetectsFirstInstalledPlayer(t *testing.T) {
	target := writePlaylist(t)
	l, calls := newTestLauncher("", "linux", "vlc", "celluloid")

	require.NoError(t, l.Launch(target))
	require.Len(t, *calls, 1)
	assert.Equal(t, "celluloid", (*calls)[0].name)
}

func TestLaunchMacOpensApp(t *testing.T) {
	target := writePlaylist(t)
	l, calls := newTestLauncher("", "darwin")

	require.NoError(t, l.Launch(target))
	require.Len(t, *calls, 1)
	assert.Equal(t, "open", (*calls)[0].name)
	assert.Equal(t, []string{"-n", "-a", "IINA", target}, (*calls)[0].args)
}

func TestLaunchFallsBackToSystemDefault(t *testing.T) {
	target := writePlaylist(t)
	l, calls := newTestLauncher("", "linux")

	require.NoError(t, l.Launch(target))
	require.Len(t, *calls, 1)
	assert.Equal(t, startCall{name: "xdg-open", args: []string{target}}, (*calls)[0])
}

func TestLaunchRejectsMissingPlaylist(t *testing.T) {
	l, calls := newTestLauncher("mpv", "linux", "mpv")

	assert.Error(t, l.Launch(""))
	assert.Error(t, l.Launch(filepath.Join(t.TempDir(), "missing.m3u8")))
	assert.Empty(t, *calls)
}
