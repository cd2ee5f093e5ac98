package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
)

const maxOperatorField = 50

// OperatorUseCase reads the operator roster and pushes it to machines
type OperatorUseCase struct {
	opener  repository.Opener
	history repository.HistoryRepository
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewOperatorUseCase creates a new operator use case. history may be nil.
func NewOperatorUseCase(opener repository.Opener, history repository.HistoryRepository, log logrus.FieldLogger) *OperatorUseCase {
	return &OperatorUseCase{opener: opener, history: history, log: log, now: time.Now}
}

// List returns the local roster
func (uc *OperatorUseCase) List(ctx context.Context) (*table.Table, error) {
	uc.log.Debug("Fetching operators")

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	operators, err := local.Operators.ListOperators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operators: %w", err)
	}
	uc.log.Infof("Successfully fetched %d operators", len(operators))
	return OperatorsTable(operators), nil
}

// Search returns the roster rows containing text in any column
func (uc *OperatorUseCase) Search(ctx context.Context, text string) (*table.Table, error) {
	roster, err := uc.List(ctx)
	if err != nil {
		return nil, err
	}
	return roster.Search(text), nil
}

// Push upserts the operators of tbl into machine's database and returns
// the number of rows processed. tbl must carry the OperatorsId, FirstName,
// LastName, TagId and SapNumber columns.
func (uc *OperatorUseCase) Push(ctx context.Context, machine entities.Machine, tbl *table.Table) (int, error) {
	operators, err := OperatorsFromTable(tbl)
	if err != nil {
		return 0, err
	}
	if len(operators) == 0 {
		return 0, nil
	}

	log := uc.log.WithFields(logrus.Fields{"machine": machine.Name, "ip": machine.IPAddress})
	log.Infof("Pushing %d operators", len(operators))

	n, err := uc.upsert(ctx, machine, operators)
	uc.record(ctx, machine, n, err)
	if err != nil {
		log.Errorf("Operator push failed: %v", err)
		return 0, err
	}

	log.Infof("Successfully pushed %d operators", n)
	return n, nil
}

func (uc *OperatorUseCase) upsert(ctx context.Context, machine entities.Machine, operators []entities.Operator) (int, error) {
	remote, err := uc.opener.OpenRemote(ctx, machine.IPAddress)
	if err != nil {
		return 0, err
	}
	defer remote.Close()

	n, err := remote.Operators.UpsertOperators(ctx, operators)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert operators: %w", err)
	}
	return n, nil
}

func (uc *OperatorUseCase) record(ctx context.Context, machine entities.Machine, rows int, err error) {
	if uc.history == nil {
		return
	}
	rec := entities.SyncRecord{
		Machine:   machine.Name,
		IPAddress: machine.IPAddress,
		Kind:      entities.SyncKindOperators,
		Rows:      rows,
		Status:    entities.SyncStatusOK,
		CreatedAt: uc.now(),
	}
	if err != nil {
		rec.Status = entities.SyncStatusFailed
		rec.Error = err.Error()
	}
	if err := uc.history.SaveRecords(context.WithoutCancel(ctx), []entities.SyncRecord{rec}); err != nil {
		uc.log.Warnf("Failed to save sync history: %v", err)
	}
}

// OperatorsFromTable converts roster rows to operators. Text fields are
// trimmed and cut to 50 characters; a TagId that is not an integer becomes nil.
func OperatorsFromTable(tbl *table.Table) ([]entities.Operator, error) {
	if tbl == nil {
		return nil, nil
	}
	missing := lo.Filter(OperatorColumns, func(c string, _ int) bool { return tbl.Index(c) < 0 })
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	rows := tbl.Select(OperatorColumns...).Rows
	operators := make([]entities.Operator, 0, len(rows))
	for i, row := range rows {
		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OperatorsId on row %d: %q", i+1, row[0])
		}
		operators = append(operators, entities.Operator{
			ID:        id,
			FirstName: truncate(row[1]),
			LastName:  truncate(row[2]),
			TagID:     parseTag(row[3]),
			SapNumber: truncate(row[4]),
		})
	}
	return operators, nil
}

func truncate(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > maxOperatorField {
		r = r[:maxOperatorField]
	}
	return string(r)
}

func parseTag(s string) *int64 {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	// values exported as floats, e.g. 1234.0
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		v := int64(f)
		return &v
	}
	return nil
}
