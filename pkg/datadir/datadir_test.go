package datadir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b", "dbs")

	got, err := Resolve(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.DirExists(t, want)
}

func TestResolveOverrideCleaned(t *testing.T) {
	base := t.TempDir()
	got, err := Resolve(base + "/x/../dbs/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "dbs"), got)
}

func TestResolveExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveDefault(t *testing.T) {
	home := t.TempDir()
	orig := userHomeDir
	userHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDir = orig })

	first, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName), first)
	assert.DirExists(t, first)

	second, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveNoHome(t *testing.T) {
	orig := userHomeDir
	userHomeDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
	t.Cleanup(func() { userHomeDir = orig })

	_, err := Resolve("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestResolveFileInTheWay(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := Resolve(file)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = Resolve(filepath.Join(file, "child"))
	assert.ErrorIs(t, err, ErrUnavailable)
}
