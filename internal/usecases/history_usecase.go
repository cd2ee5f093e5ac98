package usecases

import (
	"context"
	"fmt"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
)

// DefaultHistoryLimit is how many records History returns when no limit is given
const DefaultHistoryLimit = 20

// HistoryUseCase reads the local sync history
type HistoryUseCase struct {
	repo repository.HistoryRepository
}

// NewHistoryUseCase creates a new history use case
func NewHistoryUseCase(repo repository.HistoryRepository) *HistoryUseCase {
	return &HistoryUseCase{repo: repo}
}

// Recent returns the latest records, newest first
func (uc *HistoryUseCase) Recent(ctx context.Context, limit int) (*table.Table, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	records, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync history: %w", err)
	}
	return HistoryTable(records), nil
}

// LastCartirSync returns when each machine last received its Cartir successfully
func (uc *HistoryUseCase) LastCartirSync(ctx context.Context) (map[string]string, error) {
	last, err := uc.repo.LastSuccess(ctx, entities.SyncKindCartir)
	if err != nil {
		return nil, fmt.Errorf("failed to read last syncs: %w", err)
	}
	out := make(map[string]string, len(last))
	for machine, t := range last {
		out[machine] = formatTime(t)
	}
	return out, nil
}

// LastSyncs lists every machine with a successful Cartir sync and its time
func (uc *HistoryUseCase) LastSyncs(ctx context.Context) (*table.Table, error) {
	last, err := uc.LastCartirSync(ctx)
	if err != nil {
		return nil, err
	}
	return LastSyncTable(last), nil
}

// LastRun returns the time of the newest record, empty when the history is empty
func (uc *HistoryUseCase) LastRun(ctx context.Context) (string, error) {
	t, err := uc.repo.GetLastRunTime(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last run time: %w", err)
	}
	return formatTime(t), nil
}
