package table

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// Render prints the table to w followed by a row count
func (t *Table) Render(w io.Writer) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.AppendBulk(t.Rows)
	tw.Render()
	fmt.Fprintf(w, "%d rows\n", t.Len())
}
