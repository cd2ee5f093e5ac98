package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abelzeko/onemine/internal/entities"
)

// MachineRepository defines the interface for reading the machine list
type MachineRepository interface {
	ListMachines(ctx context.Context) ([]entities.Machine, error)
}

// SQLServerMachineRepository reads machines from the local database
type SQLServerMachineRepository struct {
	sqlServer
}

// NewSQLServerMachineRepository creates a machine repository over db. A
// positive queryTimeout bounds each call; the other SQL Server
// repositories take it the same way.
func NewSQLServerMachineRepository(db DB, queryTimeout time.Duration) *SQLServerMachineRepository {
	return &SQLServerMachineRepository{sqlServer: sqlServer{db: db, timeout: queryTimeout}}
}

// ListMachines returns every machine with the IP of its onboard computer
func (r *SQLServerMachineRepository) ListMachines(ctx context.Context) ([]entities.Machine, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	query := `
		SELECT M.MachineId, M.Name, C.IpAddress
		FROM Machine M
		INNER JOIN Computer C ON (M.ComputerId = C.ComputerId)`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query machines: %w", err)
	}
	defer rows.Close()

	var result []entities.Machine
	for rows.Next() {
		var (
			m    entities.Machine
			name sql.NullString
			ip   sql.NullString
		)
		if err := rows.Scan(&m.ID, &name, &ip); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Name = name.String
		m.IPAddress = ip.String
		result = append(result, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}
