package usecases

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

func TestLoopsAppliesColumnFilters(t *testing.T) {
	created := time.Date(2025, 2, 26, 14, 5, 0, 0, timerange.Location)
	reports := &fakeReports{loops: []entities.LoopEvent{
		{LHD: "LE001", Operator: "Juan Perez", Street: "C10", Trench: "Z1", CreatedAt: created, Operation: "Carga"},
		{LHD: "LE002", Operator: "Ana Soto", Street: "C10", Trench: "Z2", CreatedAt: created, Operation: "Descarga"},
		{LHD: "LE001", Operator: "Juan Perez", Street: "C11", Trench: "Z1", CreatedAt: created, Operation: "Descarga"},
	}}
	uc := NewReportUseCase(&fakeOpener{local: repository.Local{Reports: reports}}, logging.Discard())

	out, err := uc.Loops(context.Background(), timerange.Day(created), map[string]string{"LHD": "le001", "Operacion": "desc"})
	require.NoError(t, err)

	assert.Equal(t, LoopColumns, out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"LE001", "Juan Perez", "C11", "Z1", "2025-02-26 14:05:00", "Descarga"}, out.Rows[0])
}

func TestStatusFiltersByMachineAndOperator(t *testing.T) {
	reports := &fakeReports{changes: []entities.StatusChange{
		{LHD: "LE001", Operator: "Juan Perez", Status: "Operativo", ChangedBy: "Operador"},
		{LHD: "LE001", Operator: "Ana Soto", Status: "Mantencion", ChangedBy: "Supervisor Uno"},
		{LHD: "LE002", Operator: "Ana Soto", Status: "Operativo", ChangedBy: "Operador"},
	}}
	uc := NewReportUseCase(&fakeOpener{local: repository.Local{Reports: reports}}, logging.Discard())

	out, err := uc.Status(context.Background(), timerange.Today(), "LE001", "soto")
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "Supervisor Uno", out.Rows[0][3])

	all, err := uc.Status(context.Background(), timerange.Today(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())
}

func TestMachineStatusReadsRemote(t *testing.T) {
	logTable := table.New("Id", "Status")
	logTable.Append("1", "Operativo")
	opener := &fakeOpener{remotes: map[string]repository.Remote{
		"10.0.0.1": {Status: &fakeMachineStatus{tbl: logTable}},
	}}
	uc := NewReportUseCase(opener, logging.Discard())

	out, err := uc.MachineStatus(context.Background(), entities.Machine{Name: "LE001", IPAddress: "10.0.0.1"}, timerange.Today())
	require.NoError(t, err)
	assert.Same(t, logTable, out)
}

func TestExporterDefaultPath(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, logging.Discard())
	e.now = func() time.Time { return time.Date(2025, 2, 26, 9, 30, 5, 0, time.UTC) }

	tbl := table.New("A")
	tbl.Append("1")

	path, err := e.Export(tbl, AutoExport, "Loop")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Loop_20250226_093005.xlsx"), path)
	assert.FileExists(t, path)

	explicit := filepath.Join(dir, "out", "loops.xlsx")
	path, err = e.Export(tbl, explicit, "Loop")
	require.NoError(t, err)
	assert.Equal(t, explicit, path)

	_, err = e.Export(table.New("A"), "", "Loop")
	assert.ErrorIs(t, err, table.ErrNoData)
}
