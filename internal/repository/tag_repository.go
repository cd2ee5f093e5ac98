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

// TagRepository defines the tag readings stored on a machine database
type TagRepository interface {
	RSSIReadings(ctx context.Context, r timerange.Range, minRSSI int) ([]entities.RSSIReading, error)
	RawReadings(ctx context.Context, r timerange.Range) ([]entities.RSSIReading, error)
	LastSideSelection(ctx context.Context) (*entities.SideSelection, error)
}

// SQLServerTagRepository implements TagRepository
type SQLServerTagRepository struct {
	sqlServer
}

// NewSQLServerTagRepository creates a tag repository over db
func NewSQLServerTagRepository(db DB, queryTimeout time.Duration) *SQLServerTagRepository {
	return &SQLServerTagRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// RSSIReadings returns the readings in the range stronger than minRSSI, newest first.
// Street is the parent zone of the tagged trench.
func (r *SQLServerTagRepository) RSSIReadings(ctx context.Context, rng timerange.Range, minRSSI int) ([]entities.RSSIReading, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @fechaInicio datetimeoffset(7) = @start;
		DECLARE @fechaFin    datetimeoffset(7) = @end;

		SELECT
			RawDatas.TagId,
			B.Name AS Calle,
			A.Name AS Zanja,
			RawDatas.RSSI,
			CAST(RawDatas.Timestamp AS smalldatetime) AS [Timestamp],
			RawDatas.BatteryStatus
		FROM RawDatas
		INNER JOIN Zones A ON RawDatas.TagId = A.TagId
		RIGHT JOIN Zones B ON A.ParentZoneId = B.ZonesId
		WHERE RawDatas.CreatedAt >= @fechaInicio
			AND RawDatas.CreatedAt <= @fechaFin
			AND RawDatas.RSSI > @minRssi
		ORDER BY RawDatas.CreatedAt DESC`

	readings, err := r.readings(ctx, query,
		sql.Named("start", timerange.Offset(rng.Start)),
		sql.Named("end", timerange.Offset(rng.End)),
		sql.Named("minRssi", minRSSI))
	if err != nil {
		return nil, fmt.Errorf("failed to query RSSI readings: %w", err)
	}
	return readings, nil
}

// RawReadings returns every reading in the range, newest first. Street is the MB zone.
func (r *SQLServerTagRepository) RawReadings(ctx context.Context, rng timerange.Range) ([]entities.RSSIReading, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @fechaInicio datetimeoffset(7) = @start;
		DECLARE @fechaFin    datetimeoffset(7) = @end;

		SELECT
			r.TagId,
			b.Name AS MB,
			a.Name AS Zanja,
			r.RSSI,
			CAST(r.[Timestamp] AS smalldatetime) AS [Timestamp],
			r.BatteryStatus
		FROM RawDatas r
		INNER JOIN Zones a ON (r.TagId = a.TagId)
		RIGHT JOIN Zones b ON (a.ParentZoneId = b.ZonesId)
		WHERE r.CreatedAt >= @fechaInicio
			AND r.CreatedAt <= @fechaFin
		ORDER BY r.CreatedAt DESC`

	readings, err := r.readings(ctx, query,
		sql.Named("start", timerange.Offset(rng.Start)),
		sql.Named("end", timerange.Offset(rng.End)))
	if err != nil {
		return nil, fmt.Errorf("failed to query tag readings: %w", err)
	}
	return readings, nil
}

func (r *SQLServerTagRepository) readings(ctx context.Context, query string, args ...any) ([]entities.RSSIReading, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []entities.RSSIReading
	for rows.Next() {
		var (
			tagID, rssi                   sql.NullInt64
			street, trench, batteryStatus sql.NullString
			timestamp                     sql.NullTime
		)
		if err := rows.Scan(&tagID, &street, &trench, &rssi, &timestamp, &batteryStatus); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entities.RSSIReading{
			TagID:         tagID.Int64,
			Street:        street.String,
			Trench:        trench.String,
			RSSI:          int(rssi.Int64),
			Timestamp:     timerange.Wall(timestamp.Time),
			BatteryStatus: batteryStatus.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// LastSideSelection returns the most recent side selected on the machine, nil if none
func (r *SQLServerTagRepository) LastSideSelection(ctx context.Context) (*entities.SideSelection, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT TOP 1 O.FirstName, O.LastName, S.Side
		FROM Machines M
		INNER JOIN Loops L ON (M.MachinesId = L.MachineId)
		LEFT JOIN Operators O ON (O.OperatorsId = L.OperatorId)
		RIGHT JOIN SideSelectionLogs S ON (S.OperatorId = O.OperatorsId)
		ORDER BY S.CreatedAt DESC`

	var first, last, side sql.NullString
	if err := r.db.QueryRowContext(ctx, query).Scan(&first, &last, &side); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query last side selection: %w", err)
	}
	return &entities.SideSelection{FirstName: first.String, LastName: last.String, Side: side.String}, nil
}
