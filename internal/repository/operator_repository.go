package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/abelzeko/onemine/internal/entities"
)

// OperatorRepository defines the roster read from the local database
type OperatorRepository interface {
	ListOperators(ctx context.Context) ([]entities.Operator, error)
}

// RemoteOperatorRepository defines the roster write to a machine database
type RemoteOperatorRepository interface {
	UpsertOperators(ctx context.Context, operators []entities.Operator) (int, error)
}

// SQLServerOperatorRepository implements OperatorRepository
type SQLServerOperatorRepository struct {
	sqlServer
}

// NewSQLServerOperatorRepository creates an operator repository over db
func NewSQLServerOperatorRepository(db DB, queryTimeout time.Duration) *SQLServerOperatorRepository {
	return &SQLServerOperatorRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// ListOperators returns the full operator roster
func (r *SQLServerOperatorRepository) ListOperators(ctx context.Context) ([]entities.Operator, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT OperatorId AS OperatorsId, FirstName, LastName, TagId, SapNumber
		FROM Operator
		ORDER BY OperatorId`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query operators: %w", err)
	}
	defer rows.Close()

	var result []entities.Operator
	for rows.Next() {
		var (
			o                      entities.Operator
			first, last, sapNumber sql.NullString
			tagID                  sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &first, &last, &tagID, &sapNumber); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		o.FirstName = first.String
		o.LastName = last.String
		o.SapNumber = sapNumber.String
		if tagID.Valid {
			id := tagID.Int64
			o.TagID = &id
		}
		result = append(result, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// SQLServerRemoteOperatorRepository implements RemoteOperatorRepository
type SQLServerRemoteOperatorRepository struct {
	sqlServer
}

// NewSQLServerRemoteOperatorRepository creates a remote operator repository over db
func NewSQLServerRemoteOperatorRepository(db DB, queryTimeout time.Duration) *SQLServerRemoteOperatorRepository {
	return &SQLServerRemoteOperatorRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

const (
	createTmpOperators = `
		IF OBJECT_ID('tempdb..#tmp_operators') IS NOT NULL DROP TABLE #tmp_operators;
		CREATE TABLE #tmp_operators (
			OperatorsId INT NOT NULL,
			FirstName NVARCHAR(50) NOT NULL,
			LastName  NVARCHAR(50) NOT NULL,
			TagId     INT NULL,
			SapNumber NVARCHAR(50) NOT NULL
		);`

	mergeOperators = `
		MERGE INTO Operators AS target
		USING #tmp_operators AS source
			ON target.OperatorsId = source.OperatorsId
		WHEN MATCHED THEN
			UPDATE SET
				target.FirstName = source.FirstName,
				target.LastName  = source.LastName,
				target.TagId     = source.TagId,
				target.SapNumber = source.SapNumber
		WHEN NOT MATCHED THEN
			INSERT (OperatorsId, FirstName, LastName, TagId, SectorId, CreatedAt, SapNumber)
			VALUES (source.OperatorsId, source.FirstName, source.LastName, source.TagId, 1, SYSUTCDATETIME(), source.SapNumber);`
)

// UpsertOperators bulk copies the roster into a session temp table and
// merges it into Operators in one transaction. New operators get sector 1.
// It returns the number of rows sent.
func (r *SQLServerRemoteOperatorRepository) UpsertOperators(ctx context.Context, operators []entities.Operator) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	if len(operators) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, createTmpOperators); err != nil {
		return 0, fmt.Errorf("failed to create temporary table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn("#tmp_operators", mssql.BulkOptions{},
		"OperatorsId", "FirstName", "LastName", "TagId", "SapNumber"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk copy: %w", err)
	}
	defer stmt.Close()

	for _, o := range operators {
		var tagID any
		if o.TagID != nil {
			tagID = *o.TagID
		}
		if _, err := stmt.ExecContext(ctx, o.ID, o.FirstName, o.LastName, tagID, o.SapNumber); err != nil {
			return 0, fmt.Errorf("failed to copy operator %d: %w", o.ID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to flush bulk copy: %w", err)
	}

	if _, err := tx.ExecContext(ctx, mergeOperators); err != nil {
		return 0, fmt.Errorf("failed to merge operators: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(operators), nil
}
