// Package usecases contains the dashboard's business logic: each use case
// opens the connections it needs, runs the repository queries and shapes
// the rows into tables ready to render or export.
package usecases

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/syncstatus"
	"github.com/abelzeko/onemine/internal/table"
)

var (
	// ErrMachineNotFound is returned when no machine matches a name or IP
	ErrMachineNotFound = errors.New("machine not found")
	// ErrMissingColumns is returned when an operator table lacks required columns
	ErrMissingColumns = errors.New("missing required columns")
	// ErrNoCartir is returned by a sync when the local database has no Cartir
	ErrNoCartir = errors.New("no cartir found")
)

// StatusStore is the synced-machines status file
type StatusStore interface {
	Read() (syncstatus.Status, error)
	MarkSynced(machines ...string) (syncstatus.Status, error)
	MergeCompleted(path string) (syncstatus.Status, error)
}

// AutoExport asks Exporter.Export for a timestamped file in the export directory
const AutoExport = "auto"

// Exporter writes report tables to spreadsheets
type Exporter struct {
	dir string
	now func() time.Time
	log logrus.FieldLogger
}

// NewExporter creates an exporter writing default files under dir
func NewExporter(dir string, log logrus.FieldLogger) *Exporter {
	return &Exporter{dir: dir, now: time.Now, log: log}
}

// Export writes tbl to path, or to <dir>/<prefix>_YYYYMMDD_HHMMSS.xlsx when
// path is empty or AutoExport. It returns the written path.
func (e *Exporter) Export(tbl *table.Table, path, prefix string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || strings.EqualFold(path, AutoExport) {
		path = table.DefaultExportPath(e.dir, prefix, e.now())
	}
	if err := tbl.Export(path); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", prefix, err)
	}
	e.log.Infof("Successfully exported %d rows to %s", tbl.Len(), path)
	return path, nil
}
