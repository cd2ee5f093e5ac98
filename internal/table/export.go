package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Datos"

// DefaultExportPath returns <dir>/<prefix>_YYYYMMDD_HHMMSS.xlsx
func DefaultExportPath(dir, prefix string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", prefix, now.Format("20060102_150405")))
}

// Export writes the table to a single-sheet xlsx file at path, creating
// parent directories as needed. Numeric cells are stored as numbers.
func (t *Table) Export(path string) error {
	if t.Empty() {
		return ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = cellValue(v)
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// maxNumericDigits is the precision an xlsx number keeps
const maxNumericDigits = 15

// cellValue stores plain numbers as numbers. Text that would change when
// read back as a number stays text: explicit plus signs, leading zeros and
// long digit runs such as IDs.
func cellValue(v string) interface{} {
	digits := strings.TrimPrefix(v, "-")
	if digits == "" || v[0] == '+' || leadingZero(digits) || digitCount(digits) > maxNumericDigits {
		return v
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if x, err := strconv.ParseFloat(v, 64); err == nil && !strings.ContainsAny(v, "eEnN") {
		return x
	}
	return v
}

func leadingZero(digits string) bool {
	return len(digits) > 1 && digits[0] == '0' && digits[1] != '.'
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
