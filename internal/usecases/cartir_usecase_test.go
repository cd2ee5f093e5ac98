package usecases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/logging"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/timerange"
)

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2025, 2, 26, hour, 15, 0, 0, timerange.Location)
	}
}

var sampleDetails = []entities.TaskDetail{
	{TaskID: 1, Macro: "M2", Street: "C10", Trench: "Z1", PailQuantity: 3},
	{TaskID: 2, Macro: "M1", Street: "C02", Trench: "Z4", PailQuantity: 2},
	{TaskID: 3, Macro: "M1", Street: "C01", Trench: "Z2", PailQuantity: 5},
	{TaskID: 4, Macro: "M1", Street: "C02", Trench: "Z14", PailQuantity: 1},
}

func TestReportUsesCurrentShift(t *testing.T) {
	cartirs := &fakeCartirs{
		header:  &entities.CartirHeader{ID: 501, Name: "Cartir 26-02"},
		details: sampleDetails,
		summary: entities.ShiftSummary{Total: 11, Entries: 4},
	}
	opener := &fakeOpener{local: repository.Local{Cartirs: cartirs}}
	uc := NewCartirUseCase(opener, nil, &fakeStatus{}, logging.Discard()).WithClock(at(21))

	report, err := uc.Report(context.Background())
	require.NoError(t, err)
	require.True(t, report.Found())

	assert.Equal(t, "B", report.Shift)
	assert.Equal(t, "B", cartirs.gotShift)
	assert.Equal(t, 23, cartirs.gotShiftID)
	assert.Equal(t, int64(501), report.Summary.CartirID)
	assert.Equal(t, []entities.MacroTotal{{Macro: "M1", Total: 8}, {Macro: "M2", Total: 3}}, report.MacroTotals)
	assert.Equal(t, []entities.StreetTotal{
		{Macro: "M1", Street: "C01", Total: 5},
		{Macro: "M1", Street: "C02", Total: 3},
		{Macro: "M2", Street: "C10", Total: 3},
	}, report.StreetTotals)
}

func TestReportWithoutCartir(t *testing.T) {
	opener := &fakeOpener{local: repository.Local{Cartirs: &fakeCartirs{}}}
	uc := NewCartirUseCase(opener, nil, &fakeStatus{}, logging.Discard()).WithClock(at(9))

	report, err := uc.Report(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Found())
	assert.Equal(t, "A", report.Shift)
	assert.Empty(t, report.Details)
}

func TestFilterDetails(t *testing.T) {
	got := FilterDetails(sampleDetails, " c0", "z1")
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0].TaskID)

	assert.Len(t, FilterDetails(sampleDetails, "", ""), 4)
}

type syncFixture struct {
	local   *fakeCartirs
	remotes map[string]*fakeRemoteCartirs
	history *fakeHistory
	status  *fakeStatus
	opener  *fakeOpener
	uc      *CartirUseCase
}

func newSyncFixture(ips ...string) *syncFixture {
	f := &syncFixture{
		local: &fakeCartirs{
			cartirs:   []entities.Cartir{{ID: 501}, {ID: 502}},
			latestID:  502,
			hasLatest: true,
			tasks:     []entities.Task{{ID: 1, CartirID: 502}, {ID: 2, CartirID: 502}, {ID: 3, CartirID: 502}},
		},
		remotes: map[string]*fakeRemoteCartirs{},
		history: &fakeHistory{},
		status:  &fakeStatus{},
	}
	f.opener = &fakeOpener{
		local:     repository.Local{Cartirs: f.local},
		remotes:   map[string]repository.Remote{},
		remoteErr: map[string]error{},
	}
	for _, ip := range ips {
		rc := &fakeRemoteCartirs{}
		f.remotes[ip] = rc
		f.opener.remotes[ip] = repository.Remote{Cartirs: rc}
	}
	f.uc = NewCartirUseCase(f.opener, f.history, f.status, logging.Discard()).WithClock(at(5))
	return f
}

func TestSyncPushesDayAndMarksMachine(t *testing.T) {
	f := newSyncFixture("10.0.0.1")
	machine := entities.Machine{ID: 1, Name: "LE001", IPAddress: "10.0.0.1"}

	res, err := f.uc.Sync(context.Background(), machine)
	require.NoError(t, err)

	// before 08:00 the operating day is yesterday
	assert.Equal(t, time.Date(2025, 2, 25, 0, 0, 0, 0, timerange.Location), f.local.gotDay)
	assert.Equal(t, 2, res.CartirsInserted)
	assert.Equal(t, int64(7), res.TasksDeleted)
	assert.Equal(t, 3, res.TasksInserted)
	assert.True(t, f.remotes["10.0.0.1"].deleted)

	assert.Equal(t, [][]string{{"LE001"}}, f.status.marked)
	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.Equal(t, entities.SyncKindCartir, rec.Kind)
	assert.Equal(t, entities.SyncStatusOK, rec.Status)
	assert.Equal(t, 5, rec.Rows)
	assert.NotEmpty(t, rec.RunID)
}

func TestSyncStopsAtFailingStep(t *testing.T) {
	f := newSyncFixture("10.0.0.1")
	f.remotes["10.0.0.1"].insertErr = errBoom

	_, err := f.uc.Sync(context.Background(), entities.Machine{Name: "LE001", IPAddress: "10.0.0.1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, IsStep(err, StepCartirs))
	assert.False(t, f.remotes["10.0.0.1"].deleted)

	assert.Empty(t, f.status.marked)
	require.Len(t, f.history.records, 1)
	assert.Equal(t, entities.SyncStatusFailed, f.history.records[0].Status)
	assert.Contains(t, f.history.records[0].Error, "insert cartirs")
}

func TestSyncWithoutDayCartirsStillSyncsTasks(t *testing.T) {
	f := newSyncFixture("10.0.0.1")
	f.local.cartirs = nil

	res, err := f.uc.Sync(context.Background(), entities.Machine{Name: "LE001", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.Zero(t, res.CartirsInserted)
	assert.Nil(t, f.remotes["10.0.0.1"].gotCartirs)
	assert.Equal(t, 3, res.TasksInserted)
}

func TestSyncWithoutAnyCartirFails(t *testing.T) {
	f := newSyncFixture("10.0.0.1")
	f.local.hasLatest = false

	_, err := f.uc.Sync(context.Background(), entities.Machine{Name: "LE001", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrNoCartir)
	assert.True(t, IsStep(err, StepInsertTasks))
	assert.False(t, f.remotes["10.0.0.1"].deleted)
}

func TestSyncReportsUnreachableMachine(t *testing.T) {
	f := newSyncFixture()
	_, err := f.uc.Sync(context.Background(), entities.Machine{Name: "LE009", IPAddress: "10.0.0.9"})
	assert.True(t, IsStep(err, StepConnect))
}

func TestNightSyncRecordsEveryMachine(t *testing.T) {
	f := newSyncFixture("10.0.0.1", "10.0.0.2", "10.0.0.3")
	f.remotes["10.0.0.2"].deleteErr = errBoom
	f.uc.WithWorkers(2)

	machines := []entities.Machine{
		{Name: "LE001", IPAddress: "10.0.0.1"},
		{Name: "LE002", IPAddress: "10.0.0.2"},
		{Name: "LE003", IPAddress: "10.0.0.3"},
		{Name: "LE004", IPAddress: "10.0.0.4"},
	}
	result, err := f.uc.NightSync(context.Background(), machines)
	require.NoError(t, err)

	assert.Equal(t, []string{"LE001", "LE003"}, result.Succeeded())
	failed := result.Failed()
	require.Len(t, failed, 2)
	assert.True(t, IsStep(failed[0].Err, StepDeleteTasks))
	assert.True(t, IsStep(failed[1].Err, StepConnect))

	assert.Equal(t, 1, f.history.saves)
	assert.Len(t, f.history.records, 4)
	for _, rec := range f.history.records {
		assert.Equal(t, result.RunID, rec.RunID)
	}
	assert.Equal(t, [][]string{{"LE001", "LE003"}}, f.status.marked)
	assert.Equal(t, 1, f.opener.localOpens, "local data is loaded once per run")
}

func TestNightSyncFailsWhenLocalIsDown(t *testing.T) {
	f := newSyncFixture("10.0.0.1")
	f.opener.localErr = errBoom

	_, err := f.uc.NightSync(context.Background(), []entities.Machine{{Name: "LE001", IPAddress: "10.0.0.1"}})
	assert.True(t, IsStep(err, StepLoad))
	assert.Empty(t, f.history.records)
}

func TestSyncedListsMissingMachines(t *testing.T) {
	status := &fakeStatus{status: syncstatus.Status{Executed: "Ejecutado: 2025-02-26 07:40:00", Machines: []string{"LE001", "LE003"}}}
	uc := NewCartirUseCase(&fakeOpener{}, nil, status, logging.Discard())

	report, err := uc.Synced([]string{"LE003", "LE002", "LE001", "LE004"})
	require.NoError(t, err)
	assert.Equal(t, []string{"LE002", "LE004"}, report.Missing)
	assert.Equal(t, "Ejecutado: 2025-02-26 07:40:00", report.Status.Executed)
}
