package usecases

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

// ReportUseCase runs the loop and status reports
type ReportUseCase struct {
	opener repository.Opener
	log    logrus.FieldLogger
}

// NewReportUseCase creates a new report use case
func NewReportUseCase(opener repository.Opener, log logrus.FieldLogger) *ReportUseCase {
	return &ReportUseCase{opener: opener, log: log}
}

// Loops returns the counted loop operations in rng. filters maps a column
// (LHD, Operador, Calle, Zanja, Operacion) to a substring it must contain.
func (uc *ReportUseCase) Loops(ctx context.Context, rng timerange.Range, filters map[string]string) (*table.Table, error) {
	uc.log.Debugf("Fetching loop data from %s to %s", timerange.Naive(rng.Start), timerange.Naive(rng.End))

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	events, err := local.Reports.LoopEvents(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch loop data: %w", err)
	}

	out := LoopsTable(events).Filter(filters)
	uc.log.Infof("Successfully fetched %d loop events, %d after filters", len(events), out.Len())
	return out, nil
}

// Status returns the status changes in rng whose LHD and operator contain
// the given values
func (uc *ReportUseCase) Status(ctx context.Context, rng timerange.Range, lhd, operator string) (*table.Table, error) {
	uc.log.Debugf("Fetching status changes from %s to %s", timerange.Naive(rng.Start), timerange.Naive(rng.End))

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	changes, err := local.Reports.StatusChanges(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status changes: %w", err)
	}

	out := StatusTable(changes).Filter(map[string]string{"LHD": lhd, "Operator": operator})
	uc.log.Infof("Successfully fetched %d status changes, %d after filters", len(changes), out.Len())
	return out, nil
}

// MachineStatus returns the status log kept on the machine itself
func (uc *ReportUseCase) MachineStatus(ctx context.Context, machine entities.Machine, rng timerange.Range) (*table.Table, error) {
	log := uc.log.WithFields(logrus.Fields{"machine": machine.Name, "ip": machine.IPAddress})
	log.Debug("Fetching machine status log")

	remote, err := uc.opener.OpenRemote(ctx, machine.IPAddress)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	out, err := remote.Status.MachineStatus(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch machine status: %w", err)
	}
	log.Infof("Successfully fetched %d machine status rows", out.Len())
	return out, nil
}
