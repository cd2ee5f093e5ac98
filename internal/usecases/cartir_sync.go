package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/timerange"
)

// Sync steps, in order
const (
	StepLoad        = "load local data"
	StepConnect     = "connect"
	StepCartirs     = "insert cartirs"
	StepDeleteTasks = "delete tasks"
	StepInsertTasks = "insert tasks"
)

// SyncStepError reports the step at which a machine sync stopped
type SyncStepError struct {
	Machine string
	Step    string
	Err     error
}

func (e *SyncStepError) Error() string {
	return fmt.Sprintf("sync of %s failed at %s: %v", e.Machine, e.Step, e.Err)
}

func (e *SyncStepError) Unwrap() error {
	return e.Err
}

// SyncResult is what a sync changed on one machine
type SyncResult struct {
	Machine         entities.Machine
	CartirsInserted int
	TasksDeleted    int64
	TasksInserted   int
	Err             error
}

// OK reports whether the sync completed
func (r SyncResult) OK() bool {
	return r.Err == nil
}

// NightSyncResult collects the outcome of a sync over every machine
type NightSyncResult struct {
	RunID   string
	Results []SyncResult
}

// Succeeded returns the names of the machines synced successfully
func (r NightSyncResult) Succeeded() []string {
	ok := lo.Filter(r.Results, func(s SyncResult, _ int) bool { return s.OK() })
	return lo.Map(ok, func(s SyncResult, _ int) string { return s.Machine.Name })
}

// Failed returns the failed syncs
func (r NightSyncResult) Failed() []SyncResult {
	return lo.Filter(r.Results, func(s SyncResult, _ int) bool { return !s.OK() })
}

// payload is the local data pushed to every machine
type payload struct {
	day       time.Time
	cartirs   []entities.Cartir
	tasks     []entities.Task
	hasLatest bool
}

func (uc *CartirUseCase) loadPayload(ctx context.Context) (*payload, error) {
	p := &payload{day: uc.operatingDay()}

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	if p.cartirs, err = local.Cartirs.CartirsForDay(ctx, p.day); err != nil {
		return nil, fmt.Errorf("failed to load cartirs: %w", err)
	}

	latest, ok, err := local.Cartirs.LatestCartirID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest cartir: %w", err)
	}
	if ok {
		p.hasLatest = true
		if p.tasks, err = local.Cartirs.TasksByCartir(ctx, latest); err != nil {
			return nil, fmt.Errorf("failed to load tasks of cartir %d: %w", latest, err)
		}
	}

	uc.log.Infof("Loaded %d cartirs and %d tasks for %s", len(p.cartirs), len(p.tasks), p.day.Format("2006-01-02"))
	return p, nil
}

func (uc *CartirUseCase) operatingDay() time.Time {
	return timerange.OperatingDay(uc.now())
}

// Sync pushes the operating day's Cartir and the latest Cartir's Tasks to
// machine. It stops at the first failing step, returning a *SyncStepError.
// A successful machine is added to the status file.
func (uc *CartirUseCase) Sync(ctx context.Context, machine entities.Machine) (SyncResult, error) {
	runID := uuid.NewString()

	p, err := uc.loadPayload(ctx)
	if err != nil {
		res := SyncResult{Machine: machine, Err: &SyncStepError{Machine: machine.Name, Step: StepLoad, Err: err}}
		uc.record(ctx, runID, []SyncResult{res})
		return res, res.Err
	}

	res := uc.push(ctx, machine, p)
	uc.record(ctx, runID, []SyncResult{res})
	if res.Err != nil {
		return res, res.Err
	}

	if _, err := uc.status.MarkSynced(machine.Name); err != nil {
		return res, fmt.Errorf("failed to update status file: %w", err)
	}
	return res, nil
}

// NightSync pushes the day's data to every machine, a bounded number at a
// time. Failures are recorded per machine and do not stop the others. The
// returned error is reserved for failures that affect the whole run.
func (uc *CartirUseCase) NightSync(ctx context.Context, machines []entities.Machine) (NightSyncResult, error) {
	result := NightSyncResult{RunID: uuid.NewString()}
	log := uc.log.WithField("run", result.RunID)
	log.Infof("Starting night sync of %d machines", len(machines))

	p, err := uc.loadPayload(ctx)
	if err != nil {
		return result, &SyncStepError{Machine: "*", Step: StepLoad, Err: err}
	}

	result.Results = make([]SyncResult, len(machines))
	var g errgroup.Group
	g.SetLimit(uc.workers)
	for i, m := range machines {
		g.Go(func() error {
			result.Results[i] = uc.push(ctx, m, p)
			return nil
		})
	}
	_ = g.Wait()

	uc.record(ctx, result.RunID, result.Results)

	synced := result.Succeeded()
	if len(synced) > 0 {
		if _, err := uc.status.MarkSynced(synced...); err != nil {
			return result, fmt.Errorf("failed to update status file: %w", err)
		}
	}

	log.Infof("Night sync finished: %d synced, %d failed", len(synced), len(result.Failed()))
	return result, ctx.Err()
}

func (uc *CartirUseCase) push(ctx context.Context, machine entities.Machine, p *payload) SyncResult {
	res := SyncResult{Machine: machine}
	log := uc.log.WithFields(logrus.Fields{"machine": machine.Name, "ip": machine.IPAddress})
	fail := func(step string, err error) SyncResult {
		log.Errorf("Sync failed at %s: %v", step, err)
		res.Err = &SyncStepError{Machine: machine.Name, Step: step, Err: err}
		return res
	}

	remote, err := uc.opener.OpenRemote(ctx, machine.IPAddress)
	if err != nil {
		return fail(StepConnect, err)
	}
	defer remote.Close()

	if len(p.cartirs) > 0 {
		if res.CartirsInserted, err = remote.Cartirs.InsertMissingCartirs(ctx, p.cartirs); err != nil {
			return fail(StepCartirs, err)
		}
	} else {
		log.Warn("No cartir for the operating day, continuing with tasks")
	}

	if !p.hasLatest {
		return fail(StepInsertTasks, ErrNoCartir)
	}
	if res.TasksDeleted, err = remote.Cartirs.DeleteTasksForDay(ctx, p.day); err != nil {
		return fail(StepDeleteTasks, err)
	}
	if res.TasksInserted, err = remote.Cartirs.InsertMissingTasks(ctx, p.tasks); err != nil {
		return fail(StepInsertTasks, err)
	}

	log.Infof("Successfully synced %d cartirs and %d tasks (%d removed)", res.CartirsInserted, res.TasksInserted, res.TasksDeleted)
	return res
}

func (uc *CartirUseCase) record(ctx context.Context, runID string, results []SyncResult) {
	if uc.history == nil || len(results) == 0 {
		return
	}
	now := uc.now()
	records := lo.Map(results, func(r SyncResult, _ int) entities.SyncRecord {
		rec := entities.SyncRecord{
			RunID:     runID,
			Machine:   r.Machine.Name,
			IPAddress: r.Machine.IPAddress,
			Kind:      entities.SyncKindCartir,
			Rows:      r.CartirsInserted + r.TasksInserted,
			Status:    entities.SyncStatusOK,
			CreatedAt: now,
		}
		if r.Err != nil {
			rec.Status = entities.SyncStatusFailed
			rec.Error = r.Err.Error()
		}
		return rec
	})
	// history failures never fail a sync
	if err := uc.history.SaveRecords(context.WithoutCancel(ctx), records); err != nil {
		uc.log.Warnf("Failed to save sync history: %v", err)
	}
}

// IsStep reports whether err is a sync failure at step
func IsStep(err error, step string) bool {
	var stepErr *SyncStepError
	return errors.As(err, &stepErr) && stepErr.Step == step
}
