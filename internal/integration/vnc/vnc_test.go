package vnc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/logging"
)

func fakeViewer(t *testing.T) string {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "tvnviewer.exe")
	require.NoError(t, os.WriteFile(exe, nil, 0o755))
	return exe
}

func TestConnect(t *testing.T) {
	exe := fakeViewer(t)
	var gotExe string
	var gotArgs []string
	l := NewLauncher(exe, "s3cret", logging.Discard()).WithStarter(func(_ context.Context, e string, args ...string) error {
		gotExe, gotArgs = e, args
		return nil
	})

	require.NoError(t, l.Connect(context.Background(), "10.0.0. 12"))
	assert.Equal(t, exe, gotExe)
	assert.Equal(t, []string{"-host=10.0.0.12", "-password=s3cret"}, gotArgs)
}

func TestConnectWithoutPassword(t *testing.T) {
	l := NewLauncher(fakeViewer(t), "", logging.Discard())
	assert.Equal(t, []string{"-host=10.0.0.12"}, l.Args("10.0.0.12"))
}

func TestConnectErrors(t *testing.T) {
	started := false
	starter := func(context.Context, string, ...string) error {
		started = true
		return nil
	}

	err := NewLauncher(fakeViewer(t), "", logging.Discard()).WithStarter(starter).Connect(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidIP)

	err = NewLauncher(filepath.Join(t.TempDir(), "missing.exe"), "", logging.Discard()).WithStarter(starter).Connect(context.Background(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrViewerNotFound)
	assert.False(t, started)

	err = NewLauncher(fakeViewer(t), "", logging.Discard()).
		WithStarter(func(context.Context, string, ...string) error { return errors.New("access denied") }).
		Connect(context.Background(), "10.0.0.1")
	assert.ErrorContains(t, err, "access denied")
}
