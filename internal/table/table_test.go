package table

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func loopTable() *Table {
	t := New("LHD", "Operador", "Calle", "Zanja")
	t.Append("LHD-01", "Juan Perez", "C10", "Z1")
	t.Append("LHD-02", "Ana Soto", "C10", "Z2")
	t.Append("LHD-01", "Ana Soto", "C11", "Z1")
	return t
}

func TestFilter(t *testing.T) {
	tbl := loopTable()

	out := tbl.Filter(map[string]string{"lhd": " lhd-01 ", "Operador": "ana"})
	require.Equal(t, 1, out.Len())
	assert.Equal(t, []string{"LHD-01", "Ana Soto", "C11", "Z1"}, out.Rows[0])

	out = tbl.Filter(map[string]string{"Unknown": "x", "Calle": ""})
	assert.Equal(t, 3, out.Len(), "unknown columns and empty values are ignored")
}

func TestSearch(t *testing.T) {
	tbl := loopTable()

	assert.Equal(t, 2, tbl.Search("SOTO").Len())
	assert.Equal(t, 3, tbl.Search("  ").Len())
	assert.Equal(t, 0, tbl.Search("nobody").Len())
}

func TestAppendPadsRows(t *testing.T) {
	tbl := New("A", "B")
	tbl.Append("1")
	tbl.Append("1", "2", "3")
	assert.Equal(t, [][]string{{"1", ""}, {"1", "2"}}, tbl.Rows)
}

func TestSelectAndColumn(t *testing.T) {
	tbl := loopTable()

	out := tbl.Select("Zanja", "Missing", "LHD")
	assert.Equal(t, []string{"Z1", "", "LHD-01"}, out.Rows[0])
	assert.Equal(t, []string{"C10", "C10", "C11"}, tbl.Column("calle"))
	assert.Nil(t, tbl.Column("nope"))
}

func TestExport(t *testing.T) {
	tbl := New("TagId", "MB", "RSSI", "Code")
	tbl.Append("1001", "MB-3", "-71", "007")

	path := filepath.Join(t.TempDir(), "nested", "out.xlsx")
	require.NoError(t, tbl.Export(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"TagId", "MB", "RSSI", "Code"}, rows[0])
	assert.Equal(t, []string{"1001", "MB-3", "-71", "007"}, rows[1])
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{"", ""},
		{"42", int64(42)},
		{"-61", int64(-61)},
		{"2.5", 2.5},
		{"0.75", 0.75},
		{"-0.5", -0.5},
		{"0", int64(0)},
		{"+5", "+5"},
		{"-0123", "-0123"},
		{"0123", "0123"},
		{"1234567890123456", "1234567890123456"},
		{"123456789012345", int64(123456789012345)},
		{"1e5", "1e5"},
		{"NaN", "NaN"},
		{"LHD-01", "LHD-01"},
		{"-", "-"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellValue(tt.in), tt.in)
	}
}

func TestExportEmpty(t *testing.T) {
	err := New("A").Export(filepath.Join(t.TempDir(), "x.xlsx"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDefaultExportPath(t *testing.T) {
	now := time.Date(2025, 2, 26, 13, 45, 7, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "RSSI_20250226_134507.xlsx"), DefaultExportPath("out", "RSSI", now))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	loopTable().Render(&buf)
	assert.Contains(t, buf.String(), "Juan Perez")
	assert.Contains(t, buf.String(), "3 rows")
}
