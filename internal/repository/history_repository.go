package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
)

// HistoryRepository defines the interface for sync history persistence operations
type HistoryRepository interface {
	SaveRecords(ctx context.Context, records []entities.SyncRecord) error
	ListRecent(ctx context.Context, limit int) ([]entities.SyncRecord, error)
	LastSuccess(ctx context.Context, kind string) (map[string]time.Time, error)
	GetLastRunTime(ctx context.Context) (time.Time, error)
	Close() error
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewSQLiteHistoryRepository creates and initializes a new SQLite repository
func NewSQLiteHistoryRepository(dbPath string, log logrus.FieldLogger) (*SQLiteHistoryRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "sync_history.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Infof("Opening history database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		machine TEXT NOT NULL,
		ip_address TEXT,
		kind TEXT NOT NULL,
		rows INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sync_machine ON sync_history(machine);
	CREATE INDEX IF NOT EXISTS idx_sync_created_at ON sync_history(created_at);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteHistoryRepository{
		db:  db,
		log: log,
	}, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveRecords stores sync outcomes in the database
func (r *SQLiteHistoryRepository) SaveRecords(ctx context.Context, records []entities.SyncRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_history(run_id, machine, ip_address, kind, rows, status, error, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx,
			rec.RunID,
			rec.Machine,
			rec.IPAddress,
			rec.Kind,
			rec.Rows,
			rec.Status,
			rec.Error,
			createdAt.UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert record for %s: %w", rec.Machine, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debugf("Successfully saved %d sync history records", len(records))
	return nil
}

// ListRecent returns the newest records first
func (r *SQLiteHistoryRepository) ListRecent(ctx context.Context, limit int) ([]entities.SyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, run_id, machine, ip_address, kind, rows, status, error, created_at
		FROM sync_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var result []entities.SyncRecord
	for rows.Next() {
		var (
			rec       entities.SyncRecord
			ip, errs  sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.Machine,
			&ip,
			&rec.Kind,
			&rec.Rows,
			&rec.Status,
			&errs,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.IPAddress = ip.String
		rec.Error = errs.String
		if rec.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// LastSuccess returns the time of the latest successful sync of each machine for a kind
func (r *SQLiteHistoryRepository) LastSuccess(ctx context.Context, kind string) (map[string]time.Time, error) {
	query := `
		SELECT machine, MAX(created_at)
		FROM sync_history
		WHERE kind = ? AND status = ?
		GROUP BY machine
		ORDER BY machine`

	rows, err := r.db.QueryContext(ctx, query, kind, entities.SyncStatusOK)
	if err != nil {
		return nil, fmt.Errorf("failed to query last successful syncs: %w", err)
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var machine, ts string
		if err := rows.Scan(&machine, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		result[machine] = t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// GetLastRunTime returns the most recent record time, zero if the history is empty
func (r *SQLiteHistoryRepository) GetLastRunTime(ctx context.Context) (time.Time, error) {
	var timestampStr sql.NullString
	err := r.db.QueryRowContext(ctx, "SELECT MAX(created_at) FROM sync_history").Scan(&timestampStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get last run time: %w", err)
	}

	if !timestampStr.Valid || timestampStr.String == "" {
		return time.Time{}, nil
	}
	return parseTimestamp(timestampStr.String)
}

// parseTimestamp accepts the layouts go-sqlite3 writes and returns for DATETIME columns
func parseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s'", s)
}
