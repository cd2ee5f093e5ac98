package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

// ReportRepository defines the range reports served by the local database
type ReportRepository interface {
	LoopEvents(ctx context.Context, r timerange.Range) ([]entities.LoopEvent, error)
	StatusChanges(ctx context.Context, r timerange.Range) ([]entities.StatusChange, error)
}

// SQLServerReportRepository implements ReportRepository
type SQLServerReportRepository struct {
	sqlServer
}

// NewSQLServerReportRepository creates a report repository over db
func NewSQLServerReportRepository(db DB, queryTimeout time.Duration) *SQLServerReportRepository {
	return &SQLServerReportRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// LoopEvents returns the counted loop operations in the range, newest first
func (r *SQLServerReportRepository) LoopEvents(ctx context.Context, rng timerange.Range) ([]entities.LoopEvent, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @fechaInicio datetimeoffset(7) = @start;
		DECLARE @fechaFin    datetimeoffset(7) = @end;

		SELECT
			Machine.Name AS LHD,
			(Operator.FirstName + ' ' + Operator.LastName) AS Operador,
			Z.Name AS Calle,
			MTZone.Name AS Zanja,
			CAST(LoopSync.CreatedAt AS smalldatetime) AS CreatedAt,
			LoopOperationType.Name AS Operacion
		FROM LoopSync
		LEFT JOIN Machine ON LoopSync.MachineId = Machine.MachineId
		LEFT JOIN Operator ON LoopSync.OperatorId = Operator.OperatorId
		RIGHT JOIN MTZone ON MTZone.ZoneId = LoopSync.StartZoneId
		INNER JOIN MTZone Z ON MTZone.ParentZoneId = Z.ZoneId
		LEFT JOIN LoopOperationType ON LoopSync.LoopOperationTypeId = LoopOperationType.LoopOperationTypeId
		WHERE LoopSync.CreatedAt BETWEEN @fechaInicio AND @fechaFin
			AND LoopOperationType.ApplyToCount = 1
		ORDER BY LoopSync.CreatedAt DESC`

	rows, err := r.db.QueryContext(ctx, query,
		sql.Named("start", timerange.Offset(rng.Start)),
		sql.Named("end", timerange.Offset(rng.End)))
	if err != nil {
		return nil, fmt.Errorf("failed to query loop data: %w", err)
	}
	defer rows.Close()

	var result []entities.LoopEvent
	for rows.Next() {
		var (
			lhd, operator, street, trench, operation sql.NullString
			createdAt                                sql.NullTime
		)
		if err := rows.Scan(&lhd, &operator, &street, &trench, &createdAt, &operation); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entities.LoopEvent{
			LHD:       lhd.String,
			Operator:  operator.String,
			Street:    street.String,
			Trench:    trench.String,
			CreatedAt: timerange.Wall(createdAt.Time),
			Operation: operation.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// StatusChanges returns the machine status changes in the range, newest first
func (r *SQLServerReportRepository) StatusChanges(ctx context.Context, rng timerange.Range) ([]entities.StatusChange, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @fechaInicio datetimeoffset(7) = @start;
		DECLARE @fechaFin    datetimeoffset(7) = @end;

		SELECT
			Machine.Name AS LHD,
			Operator.FirstName + ' ' + Operator.LastName AS Operator,
			Status.Name AS Status,
			ISNULL(MTUser.FirstName + ' ' + MTUser.LastName, 'Operador') AS Cambio,
			CAST(StatusLogSync.CreatedAt AS smalldatetime) AS CreatedAt
		FROM StatusLogSync
		INNER JOIN Operator ON StatusLogSync.ReporterId = Operator.OperatorId
		INNER JOIN Machine  ON StatusLogSync.MachineId  = Machine.MachineId
		INNER JOIN Status   ON StatusLogSync.StatusId   = Status.StatusId
		LEFT JOIN  MTUser   ON StatusLogSync.UserId     = MTUser.UserId
		WHERE StatusLogSync.CreatedAt BETWEEN @fechaInicio AND @fechaFin
		ORDER BY StatusLogSync.CreatedAt DESC`

	rows, err := r.db.QueryContext(ctx, query,
		sql.Named("start", timerange.Offset(rng.Start)),
		sql.Named("end", timerange.Offset(rng.End)))
	if err != nil {
		return nil, fmt.Errorf("failed to query status changes: %w", err)
	}
	defer rows.Close()

	var result []entities.StatusChange
	for rows.Next() {
		var (
			lhd, operator, status, changedBy sql.NullString
			createdAt                        sql.NullTime
		)
		if err := rows.Scan(&lhd, &operator, &status, &changedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entities.StatusChange{
			LHD:       lhd.String,
			Operator:  operator.String,
			Status:    status.String,
			ChangedBy: changedBy.String,
			CreatedAt: timerange.Wall(createdAt.Time),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// MachineStatusRepository defines the status log read from a machine database
type MachineStatusRepository interface {
	MachineStatus(ctx context.Context, r timerange.Range) (*table.Table, error)
}

// SQLServerMachineStatusRepository reads MachineStatusLog on a machine database
type SQLServerMachineStatusRepository struct {
	sqlServer
}

// NewSQLServerMachineStatusRepository creates a machine status repository over db
func NewSQLServerMachineStatusRepository(db DB, queryTimeout time.Duration) *SQLServerMachineStatusRepository {
	return &SQLServerMachineStatusRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// MachineStatus returns every MachineStatusLog column for the range, newest
// first. The log stores its timestamp as text, so the range is compared
// without offset.
func (r *SQLServerMachineStatusRepository) MachineStatus(ctx context.Context, rng timerange.Range) (*table.Table, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @fechaInicio DATETIME2 = @start;
		DECLARE @fechaFin    DATETIME2 = @end;

		SELECT *
		FROM MachineStatusLog
		WHERE CAST(CAST(MachineStatusLog.timestamp AS VARCHAR(MAX)) AS DATETIME2) >= @fechaInicio
			AND CAST(CAST(MachineStatusLog.timestamp AS VARCHAR(MAX)) AS DATETIME2) <= @fechaFin
		ORDER BY CAST(CAST(MachineStatusLog.timestamp AS VARCHAR(MAX)) AS DATETIME2) DESC`

	t, err := queryTable(ctx, r.db, query,
		sql.Named("start", timerange.NaiveISO(rng.Start)),
		sql.Named("end", timerange.NaiveISO(rng.End)))
	if err != nil {
		return nil, fmt.Errorf("failed to query machine status: %w", err)
	}
	return t, nil
}
