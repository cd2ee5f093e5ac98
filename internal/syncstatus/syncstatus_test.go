package syncstatus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/timerange"
)

func newTestFile(t *testing.T) *File {
	t.Helper()
	f := NewFile(filepath.Join(t.TempDir(), "app", "listado_actual.txt"))
	f.now = func() time.Time { return time.Date(2025, 2, 26, 8, 15, 0, 0, timerange.Location) }
	return f
}

func TestReadMissingFile(t *testing.T) {
	status, err := newTestFile(t).Read()
	require.NoError(t, err)
	assert.Empty(t, status.Executed)
	assert.Empty(t, status.Machines)
}

func TestReadIncompleteFile(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.Path()), 0o755))
	require.NoError(t, os.WriteFile(f.Path(), []byte("Ejecutado: 2025-02-25 08:00:00\n"), 0o644))

	status, err := f.Read()
	require.NoError(t, err)
	assert.Empty(t, status.Machines)
}

func TestMarkSyncedUnionSorted(t *testing.T) {
	f := newTestFile(t)

	_, err := f.MarkSynced("LE007", "LE001")
	require.NoError(t, err)
	status, err := f.MarkSynced("LE003", "LE001", " ")
	require.NoError(t, err)

	assert.Equal(t, []string{"LE001", "LE003", "LE007"}, status.Machines)

	raw, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "Ejecutado: 2025-02-26 08:15:00\nLE001-LE003-LE007", string(raw))

	entries, err := os.ReadDir(filepath.Dir(f.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestMergeCompletedUsesLastLine(t *testing.T) {
	f := newTestFile(t)
	_, err := f.MarkSynced("LE002")
	require.NoError(t, err)

	completed := filepath.Join(t.TempDir(), "equipos_completados.txt")
	require.NoError(t, os.WriteFile(completed, []byte("LE009\nLE001-LE004\n\n  \n"), 0o644))

	status, err := f.MergeCompleted(completed)
	require.NoError(t, err)
	assert.Equal(t, []string{"LE001", "LE002", "LE004"}, status.Machines)
}

func TestMergeCompletedMissingFile(t *testing.T) {
	f := newTestFile(t)
	_, err := f.MarkSynced("LE002")
	require.NoError(t, err)

	status, err := f.MergeCompleted(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, []string{"LE002"}, status.Machines)
}

func TestMissing(t *testing.T) {
	status := Status{Machines: []string{"LE003", "LE001"}}
	assert.Equal(t, []string{"LE007", "LE002"}, status.Missing([]string{"LE007", "LE001", "LE002", "LE003"}))
	assert.Empty(t, status.Missing(nil))
}
