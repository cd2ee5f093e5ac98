package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/timerange"
)

// StreetRepository defines the street transit reads on the local database
type StreetRepository interface {
	LatestTransits(ctx context.Context, zone string, r timerange.Range) ([]entities.StreetTransit, error)
	StreetCatalog(ctx context.Context) ([]entities.StreetCatalogEntry, error)
}

// SQLServerStreetRepository implements StreetRepository
type SQLServerStreetRepository struct {
	sqlServer
}

// NewSQLServerStreetRepository creates a street repository over db
func NewSQLServerStreetRepository(db DB, queryTimeout time.Duration) *SQLServerStreetRepository {
	return &SQLServerStreetRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// LatestTransits returns the most recent transit of every map point in the
// range, newest first. An empty zone matches all zones.
func (r *SQLServerStreetRepository) LatestTransits(ctx context.Context, zone string, rng timerange.Range) ([]entities.StreetTransit, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		DECLARE @FechaInicio DATETIME = @start;
		DECLARE @FechaFin    DATETIME = @end;
		DECLARE @ZoneName    NVARCHAR(128) = @zone;

		WITH UltimoTransitoPorPunto AS (
			SELECT
				[Name],
				[SectorName],
				[MapPoint],
				[ZoneName],
				[TransitDate],
				ROW_NUMBER() OVER (PARTITION BY [MapPoint] ORDER BY [TransitDate] DESC) AS RowNum
			FROM [dbo].[vwTransit]
			WHERE (@ZoneName = '' OR [ZoneName] = @ZoneName)
				AND [TransitDate] BETWEEN @FechaInicio AND @FechaFin
		)
		SELECT [Name], [SectorName], [MapPoint], [ZoneName], [TransitDate]
		FROM UltimoTransitoPorPunto
		WHERE RowNum = 1
		ORDER BY TransitDate DESC`

	rows, err := r.db.QueryContext(ctx, query,
		sql.Named("start", timerange.Naive(rng.Start)),
		sql.Named("end", timerange.Naive(rng.End)),
		sql.Named("zone", strings.TrimSpace(zone)))
	if err != nil {
		return nil, fmt.Errorf("failed to query street transits: %w", err)
	}
	defer rows.Close()

	var result []entities.StreetTransit
	for rows.Next() {
		var (
			name, sector, mapPoint, zoneName sql.NullString
			transitDate                      sql.NullTime
		)
		if err := rows.Scan(&name, &sector, &mapPoint, &zoneName, &transitDate); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entities.StreetTransit{
			Name:        name.String,
			SectorName:  sector.String,
			MapPoint:    mapPoint.String,
			ZoneName:    zoneName.String,
			TransitDate: timerange.Wall(transitDate.Time),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// StreetCatalog returns the zones of type Calle with their parent macro
func (r *SQLServerStreetRepository) StreetCatalog(ctx context.Context) ([]entities.StreetCatalogEntry, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT b.Name AS Macro, a.Name AS Calle, z.Name AS Tipo
		FROM MTZone a
		RIGHT JOIN ZoneType z ON (a.ZoneTypeId = z.ZoneTypeId)
		RIGHT JOIN MTZone   b ON (a.ParentZoneId = b.ZoneId)
		WHERE z.Name LIKE 'Calle'
		ORDER BY a.Name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query street catalog: %w", err)
	}
	defer rows.Close()

	var result []entities.StreetCatalogEntry
	for rows.Next() {
		var macro, street, kind sql.NullString
		if err := rows.Scan(&macro, &street, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entities.StreetCatalogEntry{Macro: macro.String, Street: street.String, Type: kind.String})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}
