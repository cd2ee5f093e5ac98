package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/config"
	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/timerange"
	"github.com/abelzeko/onemine/internal/usecases"
)

type fakeMachines []entities.Machine

func (f fakeMachines) ListMachines(context.Context) ([]entities.Machine, error) {
	return f, nil
}

type fakeOpener struct {
	local repository.Local
}

type fakeStreets struct {
	catalog []entities.StreetCatalogEntry
}

func (f *fakeStreets) LatestTransits(context.Context, string, timerange.Range) ([]entities.StreetTransit, error) {
	return nil, nil
}

func (f *fakeStreets) StreetCatalog(context.Context) ([]entities.StreetCatalogEntry, error) {
	return f.catalog, nil
}

func (o *fakeOpener) OpenLocal(context.Context) (*repository.Local, error) {
	return repository.NewLocal(o.local, nil), nil
}

func (o *fakeOpener) OpenRemote(_ context.Context, ip string) (*repository.Remote, error) {
	return nil, errors.New("unreachable " + ip)
}

func newTestEnv(t *testing.T) (*Env, *bytes.Buffer, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		StatusFile:   filepath.Join(dir, "listado_actual.txt"),
		ExportDir:    dir,
		QueryTimeout: time.Second,
	}
	opener := &fakeOpener{local: repository.Local{
		Machines: fakeMachines{
			{ID: 1, Name: "LE001", IPAddress: "10.0.0.1"},
			{ID: 2, Name: "LE002", IPAddress: "10.0.0. 2"},
			{ID: 3, Name: "LE003", IPAddress: "10.0.0.3"},
		},
		Streets: &fakeStreets{catalog: []entities.StreetCatalogEntry{
			{Macro: "M1", Street: "C10", Type: "Calle"},
			{Macro: "M2", Street: "C02", Type: "Calle"},
			{Macro: "M2", Street: "C10", Type: "Calle"},
		}},
	}}

	env := NewEnv(cfg, logging.Discard(), opener, nil)
	out := &bytes.Buffer{}
	env.Out = out
	return env, out, cfg
}

func run(env *Env, args ...string) error {
	return NewApp(env).RunContext(context.Background(), append([]string{"onemine"}, args...))
}

func TestParseFilters(t *testing.T) {
	got, err := ParseFilters([]string{"LHD=le0", " Calle =C10", "Zanja="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LHD": "le0", "Calle": "C10", "Zanja": ""}, got)

	_, err = ParseFilters([]string{"LHD"})
	assert.Error(t, err)
	_, err = ParseFilters([]string{"=x"})
	assert.Error(t, err)
}

func TestMachinesCommand(t *testing.T) {
	env, out, cfg := newTestEnv(t)

	require.NoError(t, run(env, "--filter", "Name=le00", "--filter", "IpAddress=.2", "machines"))
	assert.Contains(t, out.String(), "LE002")
	assert.Contains(t, out.String(), "10.0.0.2")
	assert.NotContains(t, out.String(), "LE001")
	assert.Contains(t, out.String(), "1 rows")

	out.Reset()
	dest := filepath.Join(cfg.ExportDir, "machines.xlsx")
	require.NoError(t, run(env, "--export", dest, "machines"))
	assert.Contains(t, out.String(), "Exported to "+dest)
	assert.FileExists(t, dest)
}

func TestCartirSyncedCommand(t *testing.T) {
	env, out, cfg := newTestEnv(t)
	require.NoError(t, os.WriteFile(cfg.StatusFile, []byte("Ejecutado: 2025-02-26 07:40:00\nLE001-LE003\n"), 0o644))

	require.NoError(t, run(env, "cartir", "synced"))
	assert.Equal(t, "Ejecutado: 2025-02-26 07:40:00\nSynced (2): LE001, LE003\nMissing (1): LE002\n", out.String())
}

func TestCartirMergeCommand(t *testing.T) {
	env, out, cfg := newTestEnv(t)
	completed := filepath.Join(t.TempDir(), "completados.txt")
	require.NoError(t, os.WriteFile(completed, []byte("LE009\nLE002-LE001\n\n"), 0o644))

	require.NoError(t, run(env, "cartir", "merge", completed))
	assert.Contains(t, out.String(), "LE001, LE002")

	content, err := os.ReadFile(cfg.StatusFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "LE001-LE002")
}

func TestCommandsNeedMachine(t *testing.T) {
	env, _, _ := newTestEnv(t)

	err := run(env, "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--machine")

	err = run(env, "--machine", "LE404", "vnc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine not found")
}

func TestRemoteFailureIsReported(t *testing.T) {
	env, _, _ := newTestEnv(t)
	err := run(env, "--machine", "le001", "trenches")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable 10.0.0.1")
}

func TestHistoryUnavailable(t *testing.T) {
	env, _, _ := newTestEnv(t)
	err := run(env, "history")
	assert.EqualError(t, err, "sync history is not available")
}

func TestInvalidRange(t *testing.T) {
	env, _, _ := newTestEnv(t)
	err := run(env, "loops", "--from", "2025-02-26", "--to", "2025-02-25")
	assert.ErrorIs(t, err, timerange.ErrInvalidRange)

	err = run(env, "loops", "--from-time", "25:00")
	assert.ErrorIs(t, err, timerange.ErrInvalidTime)
}

func TestHistoryCommand(t *testing.T) {
	env, out, _ := newTestEnv(t)
	repo, err := repository.NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "history.db"), logging.Discard())
	require.NoError(t, err)
	defer repo.Close()
	env.History = usecases.NewHistoryUseCase(repo)

	first := time.Date(2025, 2, 25, 7, 30, 0, 0, timerange.Location)
	second := time.Date(2025, 2, 26, 7, 31, 0, 0, timerange.Location)
	require.NoError(t, repo.SaveRecords(context.Background(), []entities.SyncRecord{
		{RunID: "r1", Machine: "LE001", Kind: entities.SyncKindCartir, Rows: 4, Status: entities.SyncStatusOK, CreatedAt: first},
		{RunID: "r2", Machine: "LE002", Kind: entities.SyncKindCartir, Status: entities.SyncStatusFailed, Error: "timeout", CreatedAt: second},
	}))

	require.NoError(t, run(env, "history"))
	assert.Contains(t, out.String(), "timeout")
	assert.Contains(t, out.String(), "Last run: 2025-02-26 07:31:00")

	out.Reset()
	require.NoError(t, run(env, "history", "--last"))
	assert.Contains(t, out.String(), "2025-02-25 07:30:00")
	assert.Contains(t, out.String(), "LE001")
	assert.NotContains(t, out.String(), "LE002")
}

func TestStreetCatalogNames(t *testing.T) {
	env, out, _ := newTestEnv(t)
	require.NoError(t, run(env, "streets", "catalog", "--names"))
	assert.Equal(t, "C02\nC10\n", out.String())
}
