package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/timerange"
)

// CartirRepository defines the Cartir and Task reads on the local database
type CartirRepository interface {
	LatestHeader(ctx context.Context) (*entities.CartirHeader, error)
	CartirsForDay(ctx context.Context, day time.Time) ([]entities.Cartir, error)
	LatestCartirID(ctx context.Context) (int64, bool, error)
	TasksByCartir(ctx context.Context, cartirID int64) ([]entities.Task, error)
	TaskDetails(ctx context.Context, cartirID int64, shift string) ([]entities.TaskDetail, error)
	ShiftSummary(ctx context.Context, cartirID int64, shift string, shiftID int) (entities.ShiftSummary, error)
}

// RemoteCartirRepository defines the Cartir and Task writes on a machine database
type RemoteCartirRepository interface {
	InsertMissingCartirs(ctx context.Context, cartirs []entities.Cartir) (int, error)
	DeleteTasksForDay(ctx context.Context, day time.Time) (int64, error)
	InsertMissingTasks(ctx context.Context, tasks []entities.Task) (int, error)
}

// SQLServerCartirRepository implements CartirRepository
type SQLServerCartirRepository struct {
	sqlServer
}

// NewSQLServerCartirRepository creates a local Cartir repository over db
func NewSQLServerCartirRepository(db DB, queryTimeout time.Duration) *SQLServerCartirRepository {
	return &SQLServerCartirRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// LatestHeader returns the Cartir with the highest id, nil if the table is empty
func (r *SQLServerCartirRepository) LatestHeader(ctx context.Context) (*entities.CartirHeader, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT TOP (1) CartirId, Name,
			CAST(CreatedAt AS smalldatetime) AS CreatedAt,
			CAST(UpdatedAt AS smalldatetime) AS UpdatedAt
		FROM Cartir
		ORDER BY CartirId DESC`

	var (
		h         entities.CartirHeader
		name      sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&h.ID, &name, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest cartir: %w", err)
	}
	h.Name = name.String
	h.CreatedAt = timerange.Wall(createdAt.Time)
	h.UpdatedAt = timerange.Wall(updatedAt.Time)
	return &h, nil
}

// CartirsForDay returns the Cartirs dated on the given local calendar day
func (r *SQLServerCartirRepository) CartirsForDay(ctx context.Context, day time.Time) ([]entities.Cartir, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT c.CartirId, c.Name, c.CartirDate, c.CreatedAt, c.UpdatedAt
		FROM Cartir c
		WHERE CAST(c.CartirDate AS DATE) = @day
		ORDER BY c.CartirId`

	dayStr := day.In(timerange.Location).Format(timerange.DateLayout)
	rows, err := r.db.QueryContext(ctx, query, sql.Named("day", dayStr))
	if err != nil {
		return nil, fmt.Errorf("failed to query cartirs for %s: %w", dayStr, err)
	}
	defer rows.Close()

	var result []entities.Cartir
	for rows.Next() {
		var (
			c                                entities.Cartir
			name                             sql.NullString
			cartirDate, createdAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&c.ID, &name, &cartirDate, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Name = name.String
		c.CartirDate = timerange.Wall(cartirDate.Time)
		c.CreatedAt = timerange.Wall(createdAt.Time)
		c.UpdatedAt = timerange.Wall(updatedAt.Time)
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// LatestCartirID returns the id of the Cartir with the most recent CartirDate
func (r *SQLServerCartirRepository) LatestCartirID(ctx context.Context) (int64, bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	var id int64
	err := r.db.QueryRowContext(ctx, "SELECT TOP 1 CartirId FROM Cartir ORDER BY CartirDate DESC").Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to query latest cartir id: %w", err)
	}
	return id, true, nil
}

// TasksByCartir returns every Task of a Cartir
func (r *SQLServerCartirRepository) TasksByCartir(ctx context.Context, cartirID int64) ([]entities.Task, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT TaskId, CartirId, ShiftId, SectorId, StreetId, SpotId,
			PailQuantity, PailVolume, TaskStart, CreatedAt
		FROM Task
		WHERE CartirId = @cartirId
		ORDER BY TaskId`

	rows, err := r.db.QueryContext(ctx, query, sql.Named("cartirId", cartirID))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for cartir %d: %w", cartirID, err)
	}
	defer rows.Close()

	var result []entities.Task
	for rows.Next() {
		var (
			t                           entities.Task
			shift, sector, street, spot sql.NullInt64
			quantity, volume            sql.NullFloat64
			taskStart, createdAt        sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.CartirID, &shift, &sector, &street, &spot,
			&quantity, &volume, &taskStart, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t.ShiftID = shift.Int64
		t.SectorID = sector.Int64
		t.StreetID = street.Int64
		t.SpotID = spot.Int64
		t.PailQuantity = quantity.Float64
		t.PailVolume = volume.Float64
		t.TaskStart = timerange.Wall(taskStart.Time)
		t.CreatedAt = timerange.Wall(createdAt.Time)
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// TaskDetails returns the Tasks of a Cartir and shift resolved to zone names
func (r *SQLServerCartirRepository) TaskDetails(ctx context.Context, cartirID int64, shift string) ([]entities.TaskDetail, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT
			T.TaskId,
			T.CartirId,
			S.Name AS Turno,
			Z3.Name AS Macro,
			Z2.Name AS Calle,
			Z.Name AS Zanja,
			T.PailQuantity,
			T.PailVolume,
			T.CreatedAt
		FROM Task T
		INNER JOIN MTZone Z ON T.SpotId = Z.ZoneId
		INNER JOIN MTZone Z2 ON Z.ParentZoneId = Z2.ZoneId
		INNER JOIN Shift S ON T.ShiftId = S.ShiftId
		INNER JOIN MTZone Z3 ON T.SectorId = Z3.ZoneId
		WHERE T.CartirId = @cartirId AND S.Name = @shift
		ORDER BY T.CreatedAt`

	rows, err := r.db.QueryContext(ctx, query, sql.Named("cartirId", cartirID), sql.Named("shift", shift))
	if err != nil {
		return nil, fmt.Errorf("failed to query task details for cartir %d shift %s: %w", cartirID, shift, err)
	}
	defer rows.Close()

	var result []entities.TaskDetail
	for rows.Next() {
		var (
			d                                entities.TaskDetail
			shiftName, macro, street, trench sql.NullString
			quantity, volume                 sql.NullFloat64
			createdAt                        sql.NullTime
		)
		if err := rows.Scan(&d.TaskID, &d.CartirID, &shiftName, &macro, &street, &trench,
			&quantity, &volume, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		d.Shift = shiftName.String
		d.Macro = macro.String
		d.Street = street.String
		d.Trench = trench.String
		d.PailQuantity = quantity.Float64
		d.PailVolume = volume.Float64
		d.CreatedAt = timerange.Wall(createdAt.Time)
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// ShiftSummary sums the pail quantity and counts the Tasks of a Cartir in a shift.
// A shift without Tasks yields a zero summary.
func (r *SQLServerCartirRepository) ShiftSummary(ctx context.Context, cartirID int64, shift string, shiftID int) (entities.ShiftSummary, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT ISNULL(SUM(PailQuantity), 0) AS Total, COUNT(*) AS Ingresos
		FROM Task
		WHERE ShiftId = @shiftId AND CartirId = @cartirId`

	summary := entities.ShiftSummary{CartirID: cartirID, Shift: shift}
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, sql.Named("shiftId", shiftID), sql.Named("cartirId", cartirID)).
		Scan(&total, &summary.Entries)
	if err != nil {
		return entities.ShiftSummary{}, fmt.Errorf("failed to query shift summary: %w", err)
	}
	summary.Total = total.Float64
	return summary, nil
}

// SQLServerRemoteCartirRepository implements RemoteCartirRepository on a machine database
type SQLServerRemoteCartirRepository struct {
	sqlServer
}

// NewSQLServerRemoteCartirRepository creates a remote Cartir repository over db
func NewSQLServerRemoteCartirRepository(db DB, queryTimeout time.Duration) *SQLServerRemoteCartirRepository {
	return &SQLServerRemoteCartirRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// InsertMissingCartirs inserts the Cartirs whose id is not yet on the machine
// and returns how many were inserted
func (r *SQLServerRemoteCartirRepository) InsertMissingCartirs(ctx context.Context, cartirs []entities.Cartir) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if len(cartirs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	inserted := 0
	for _, c := range cartirs {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM [dbo].[Cartirs] WHERE CartirsId = @id",
			sql.Named("id", c.ID)).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to check cartir %d: %w", c.ID, err)
		}
		if count > 0 {
			continue
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO [dbo].[Cartirs] (CartirsId, Name, CartirDate, CreatedAt, UpdatedAt)
			VALUES (@id, @name, @cartirDate, @createdAt, @updatedAt)`,
			sql.Named("id", c.ID),
			sql.Named("name", c.Name),
			sql.Named("cartirDate", offsetOrNil(c.CartirDate)),
			sql.Named("createdAt", offsetOrNil(c.CreatedAt)),
			sql.Named("updatedAt", offsetOrNil(c.UpdatedAt)),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert cartir %d: %w", c.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// DeleteTasksForDay removes the machine's Tasks started on the given local day
func (r *SQLServerRemoteCartirRepository) DeleteTasksForDay(ctx context.Context, day time.Time) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	dayStr := day.In(timerange.Location).Format(timerange.DateLayout)
	res, err := r.db.ExecContext(ctx, "DELETE FROM Tasks WHERE CAST(TaskStartAt AS DATE) = @day", sql.Named("day", dayStr))
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks for %s: %w", dayStr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted tasks for %s: %w", dayStr, err)
	}
	return n, nil
}

// InsertMissingTasks inserts the Tasks whose id is not yet on the machine
// and returns how many were inserted
func (r *SQLServerRemoteCartirRepository) InsertMissingTasks(ctx context.Context, tasks []entities.Task) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	inserted := 0
	for _, t := range tasks {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM Tasks WHERE TasksId = @id",
			sql.Named("id", t.ID)).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to check task %d: %w", t.ID, err)
		}
		if count > 0 {
			continue
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO Tasks (TasksId, CartirId, ShiftId, SectorId, StreetId, SpotId,
				PailQuantity, PailVolume, TaskStartAt, CreatedAt)
			VALUES (@id, @cartirId, @shiftId, @sectorId, @streetId, @spotId,
				@pailQuantity, @pailVolume, @taskStart, @createdAt)`,
			sql.Named("id", t.ID),
			sql.Named("cartirId", t.CartirID),
			sql.Named("shiftId", nullIfZero(t.ShiftID)),
			sql.Named("sectorId", nullIfZero(t.SectorID)),
			sql.Named("streetId", nullIfZero(t.StreetID)),
			sql.Named("spotId", nullIfZero(t.SpotID)),
			sql.Named("pailQuantity", t.PailQuantity),
			sql.Named("pailVolume", t.PailVolume),
			sql.Named("taskStart", offsetOrNil(t.TaskStart)),
			sql.Named("createdAt", offsetOrNil(t.CreatedAt)),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert task %d: %w", t.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func offsetOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return timerange.Offset(t)
}

func nullIfZero(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
