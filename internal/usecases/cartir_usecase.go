package usecases

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/timerange"
)

const defaultSyncWorkers = 4

// CartirUseCase builds the shift report and pushes the day's Cartir and
// Tasks to the machines
type CartirUseCase struct {
	opener  repository.Opener
	history repository.HistoryRepository
	status  StatusStore
	log     logrus.FieldLogger
	now     func() time.Time
	workers int
}

// NewCartirUseCase creates a new Cartir use case. history may be nil.
func NewCartirUseCase(opener repository.Opener, history repository.HistoryRepository, status StatusStore, log logrus.FieldLogger) *CartirUseCase {
	return &CartirUseCase{
		opener:  opener,
		history: history,
		status:  status,
		log:     log,
		now:     time.Now,
		workers: defaultSyncWorkers,
	}
}

// WithClock replaces the clock deciding the shift and operating day
func (uc *CartirUseCase) WithClock(now func() time.Time) *CartirUseCase {
	uc.now = now
	return uc
}

// WithWorkers bounds how many machines a night sync handles at once
func (uc *CartirUseCase) WithWorkers(n int) *CartirUseCase {
	if n > 0 {
		uc.workers = n
	}
	return uc
}

// ShiftReport is the latest Cartir and the current shift's production
type ShiftReport struct {
	Header       *entities.CartirHeader
	Shift        string
	Summary      entities.ShiftSummary
	Details      []entities.TaskDetail
	MacroTotals  []entities.MacroTotal
	StreetTotals []entities.StreetTotal
}

// Found reports whether a Cartir exists
func (r *ShiftReport) Found() bool {
	return r != nil && r.Header != nil
}

// Report loads the latest Cartir with the summary and detail of the current shift
func (uc *CartirUseCase) Report(ctx context.Context) (*ShiftReport, error) {
	shift := timerange.Shift(uc.now())
	uc.log.Debugf("Fetching shift report for shift %s", shift)

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	report := &ShiftReport{Shift: shift}
	header, err := local.Cartirs.LatestHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cartir header: %w", err)
	}
	if header == nil {
		uc.log.Info("No cartir found")
		return report, nil
	}
	report.Header = header

	report.Summary, err = local.Cartirs.ShiftSummary(ctx, header.ID, shift, timerange.ShiftID(shift))
	if err != nil {
		return nil, fmt.Errorf("failed to load shift summary: %w", err)
	}
	report.Details, err = local.Cartirs.TaskDetails(ctx, header.ID, shift)
	if err != nil {
		return nil, fmt.Errorf("failed to load task details: %w", err)
	}
	report.MacroTotals, report.StreetTotals = Totals(report.Details)

	uc.log.Infof("Successfully loaded cartir %d with %d tasks in shift %s", header.ID, len(report.Details), shift)
	return report, nil
}

// Totals sums pail quantities per macro and per macro and street, sorted by name
func Totals(details []entities.TaskDetail) ([]entities.MacroTotal, []entities.StreetTotal) {
	quantity := func(d entities.TaskDetail) float64 { return d.PailQuantity }

	byMacro := lo.GroupBy(details, func(d entities.TaskDetail) string { return d.Macro })
	macros := lo.Keys(byMacro)
	sort.Strings(macros)

	var macroTotals []entities.MacroTotal
	var streetTotals []entities.StreetTotal
	for _, macro := range macros {
		rows := byMacro[macro]
		macroTotals = append(macroTotals, entities.MacroTotal{Macro: macro, Total: lo.SumBy(rows, quantity)})

		byStreet := lo.GroupBy(rows, func(d entities.TaskDetail) string { return d.Street })
		streets := lo.Keys(byStreet)
		sort.Strings(streets)
		for _, street := range streets {
			streetTotals = append(streetTotals, entities.StreetTotal{
				Macro:  macro,
				Street: street,
				Total:  lo.SumBy(byStreet[street], quantity),
			})
		}
	}
	return macroTotals, streetTotals
}

// FilterDetails keeps the details whose street and trench contain the given
// values, case-insensitively. Empty values match everything.
func FilterDetails(details []entities.TaskDetail, street, trench string) []entities.TaskDetail {
	street = strings.ToLower(strings.TrimSpace(street))
	trench = strings.ToLower(strings.TrimSpace(trench))
	return lo.Filter(details, func(d entities.TaskDetail, _ int) bool {
		return strings.Contains(strings.ToLower(d.Street), street) &&
			strings.Contains(strings.ToLower(d.Trench), trench)
	})
}

// SyncedReport is the status file compared with the machine list
type SyncedReport struct {
	Status  syncstatus.Status
	Missing []string
}

// Synced reads the status file and lists the machines of all not yet synced
func (uc *CartirUseCase) Synced(all []string) (SyncedReport, error) {
	status, err := uc.status.Read()
	if err != nil {
		return SyncedReport{}, err
	}
	return SyncedReport{Status: status, Missing: status.Missing(all)}, nil
}

// MergeCompleted adds the machines completed by an external run, read from path
func (uc *CartirUseCase) MergeCompleted(path string) (syncstatus.Status, error) {
	status, err := uc.status.MergeCompleted(path)
	if err != nil {
		return syncstatus.Status{}, err
	}
	uc.log.Infof("Status file now lists %d synced machines", len(status.Machines))
	return status, nil
}
