package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

var errBoom = errors.New("boom")

type fakeOpener struct {
	mu          sync.Mutex
	local       repository.Local
	localErr    error
	remotes     map[string]repository.Remote
	remoteErr   map[string]error
	localOpens  int
	localCloses int
}

func (o *fakeOpener) OpenLocal(context.Context) (*repository.Local, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.localErr != nil {
		return nil, o.localErr
	}
	o.localOpens++
	return repository.NewLocal(o.local, func() error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.localCloses++
		return nil
	}), nil
}

func (o *fakeOpener) OpenRemote(_ context.Context, ip string) (*repository.Remote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.remoteErr[ip]; err != nil {
		return nil, err
	}
	r, ok := o.remotes[ip]
	if !ok {
		return nil, errors.New("unreachable " + ip)
	}
	return repository.NewRemote(r, nil), nil
}

type fakeMachines struct {
	machines []entities.Machine
	err      error
}

func (f *fakeMachines) ListMachines(context.Context) ([]entities.Machine, error) {
	return f.machines, f.err
}

type fakeCartirs struct {
	header    *entities.CartirHeader
	cartirs   []entities.Cartir
	latestID  int64
	hasLatest bool
	tasks     []entities.Task
	details   []entities.TaskDetail
	summary   entities.ShiftSummary
	err       error

	gotDay     time.Time
	gotShift   string
	gotShiftID int
}

func (f *fakeCartirs) LatestHeader(context.Context) (*entities.CartirHeader, error) {
	return f.header, f.err
}

func (f *fakeCartirs) CartirsForDay(_ context.Context, day time.Time) ([]entities.Cartir, error) {
	f.gotDay = day
	return f.cartirs, f.err
}

func (f *fakeCartirs) LatestCartirID(context.Context) (int64, bool, error) {
	return f.latestID, f.hasLatest, nil
}

func (f *fakeCartirs) TasksByCartir(context.Context, int64) ([]entities.Task, error) {
	return f.tasks, nil
}

func (f *fakeCartirs) TaskDetails(_ context.Context, _ int64, shift string) ([]entities.TaskDetail, error) {
	f.gotShift = shift
	return f.details, nil
}

func (f *fakeCartirs) ShiftSummary(_ context.Context, cartirID int64, shift string, shiftID int) (entities.ShiftSummary, error) {
	f.gotShiftID = shiftID
	s := f.summary
	s.CartirID, s.Shift = cartirID, shift
	return s, nil
}

type fakeRemoteCartirs struct {
	insertErr, deleteErr, tasksErr error

	gotCartirs []entities.Cartir
	gotTasks   []entities.Task
	deleted    bool
}

func (f *fakeRemoteCartirs) InsertMissingCartirs(_ context.Context, cartirs []entities.Cartir) (int, error) {
	f.gotCartirs = cartirs
	return len(cartirs), f.insertErr
}

func (f *fakeRemoteCartirs) DeleteTasksForDay(context.Context, time.Time) (int64, error) {
	f.deleted = true
	return 7, f.deleteErr
}

func (f *fakeRemoteCartirs) InsertMissingTasks(_ context.Context, tasks []entities.Task) (int, error) {
	f.gotTasks = tasks
	return len(tasks), f.tasksErr
}

type fakeReports struct {
	loops   []entities.LoopEvent
	changes []entities.StatusChange
}

func (f *fakeReports) LoopEvents(context.Context, timerange.Range) ([]entities.LoopEvent, error) {
	return f.loops, nil
}

func (f *fakeReports) StatusChanges(context.Context, timerange.Range) ([]entities.StatusChange, error) {
	return f.changes, nil
}

type fakeOperators struct {
	operators []entities.Operator
}

func (f *fakeOperators) ListOperators(context.Context) ([]entities.Operator, error) {
	return f.operators, nil
}

type fakeRemoteOperators struct {
	got []entities.Operator
	err error
}

func (f *fakeRemoteOperators) UpsertOperators(_ context.Context, operators []entities.Operator) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = operators
	return len(operators), nil
}

type fakeTags struct {
	readings []entities.RSSIReading
	side     *entities.SideSelection
	gotMin   int
}

func (f *fakeTags) RSSIReadings(_ context.Context, _ timerange.Range, minRSSI int) ([]entities.RSSIReading, error) {
	f.gotMin = minRSSI
	return f.readings, nil
}

func (f *fakeTags) RawReadings(context.Context, timerange.Range) ([]entities.RSSIReading, error) {
	return f.readings, nil
}

func (f *fakeTags) LastSideSelection(context.Context) (*entities.SideSelection, error) {
	return f.side, nil
}

type fakeMachineStatus struct {
	tbl *table.Table
}

func (f *fakeMachineStatus) MachineStatus(context.Context, timerange.Range) (*table.Table, error) {
	return f.tbl, nil
}

type fakeStreets struct {
	transits []entities.StreetTransit
	catalog  []entities.StreetCatalogEntry
	gotZone  string
}

func (f *fakeStreets) LatestTransits(_ context.Context, zone string, _ timerange.Range) ([]entities.StreetTransit, error) {
	f.gotZone = zone
	return f.transits, nil
}

func (f *fakeStreets) StreetCatalog(context.Context) ([]entities.StreetCatalogEntry, error) {
	return f.catalog, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []entities.SyncRecord
	saves   int
	err     error
}

func (f *fakeHistory) SaveRecords(_ context.Context, records []entities.SyncRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.records = append(f.records, records...)
	return f.err
}

func (f *fakeHistory) ListRecent(_ context.Context, limit int) ([]entities.SyncRecord, error) {
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeHistory) LastSuccess(context.Context, string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for _, r := range f.records {
		if r.Status == entities.SyncStatusOK {
			out[r.Machine] = r.CreatedAt
		}
	}
	return out, nil
}

func (f *fakeHistory) GetLastRunTime(context.Context) (time.Time, error) {
	if len(f.records) == 0 {
		return time.Time{}, nil
	}
	return f.records[len(f.records)-1].CreatedAt, nil
}

func (f *fakeHistory) Close() error { return nil }

type fakeStatus struct {
	status syncstatus.Status
	marked [][]string
	err    error
}

func (f *fakeStatus) Read() (syncstatus.Status, error) {
	return f.status, f.err
}

func (f *fakeStatus) MarkSynced(machines ...string) (syncstatus.Status, error) {
	f.marked = append(f.marked, machines)
	f.status.Machines = append(f.status.Machines, machines...)
	return f.status, f.err
}

func (f *fakeStatus) MergeCompleted(string) (syncstatus.Status, error) {
	return f.status, f.err
}
