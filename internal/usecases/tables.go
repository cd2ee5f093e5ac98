package usecases

import (
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

// Column sets of the report tables
var (
	HeaderColumns      = []string{"CartirId", "Name", "CreatedAt", "UpdatedAt"}
	SummaryColumns     = []string{"CartirId", "Shift", "Total", "Ingresos"}
	DetailColumns      = []string{"TaskId", "CartirId", "Turno", "Macro", "Calle", "Zanja", "PailQuantity", "PailVolume", "CreatedAt"}
	MacroTotalColumns  = []string{"Macro", "Total PailQuantity"}
	StreetTotalColumns = []string{"Macro", "Calle", "Total PailQuantity"}
	LoopColumns        = []string{"LHD", "Operador", "Calle", "Zanja", "CreatedAt", "Operacion"}
	StatusColumns      = []string{"LHD", "Operator", "Status", "Cambio", "CreatedAt"}
	OperatorColumns    = []string{"OperatorsId", "FirstName", "LastName", "TagId", "SapNumber"}
	RSSIColumns        = []string{"TagId", "Calle", "Zanja", "RSSI", "Timestamp", "BatteryStatus"}
	TrenchColumns      = []string{"TagId", "MB", "Zanja", "BatteryStatus"}
	TransitColumns     = []string{"Name", "SectorName", "MapPoint", "ZoneName", "Date", "Time"}
	CatalogColumns     = []string{"Macro", "Calle", "Tipo"}
	HistoryColumns     = []string{"RunId", "Machine", "IpAddress", "Kind", "Rows", "Status", "Error", "CreatedAt"}
	LastSyncColumns    = []string{"Machine", "LastSync"}
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return timerange.Naive(t)
}

// HeaderTable renders the Cartir header as a single row, empty when h is nil
func HeaderTable(h *entities.CartirHeader) *table.Table {
	t := table.New(HeaderColumns...)
	if h != nil {
		t.Append(formatInt(h.ID), h.Name, formatTime(h.CreatedAt), formatTime(h.UpdatedAt))
	}
	return t
}

// SummaryTable renders a shift summary
func SummaryTable(s entities.ShiftSummary) *table.Table {
	t := table.New(SummaryColumns...)
	t.Append(formatInt(s.CartirID), s.Shift, formatNumber(s.Total), strconv.Itoa(s.Entries))
	return t
}

// DetailsTable renders task details
func DetailsTable(details []entities.TaskDetail) *table.Table {
	t := table.New(DetailColumns...)
	for _, d := range details {
		t.Append(formatInt(d.TaskID), formatInt(d.CartirID), d.Shift, d.Macro, d.Street, d.Trench,
			formatNumber(d.PailQuantity), formatNumber(d.PailVolume), formatTime(d.CreatedAt))
	}
	return t
}

// MacroTotalsTable renders pail totals per macro
func MacroTotalsTable(totals []entities.MacroTotal) *table.Table {
	t := table.New(MacroTotalColumns...)
	for _, m := range totals {
		t.Append(m.Macro, formatNumber(m.Total))
	}
	return t
}

// StreetTotalsTable renders pail totals per street
func StreetTotalsTable(totals []entities.StreetTotal) *table.Table {
	t := table.New(StreetTotalColumns...)
	for _, s := range totals {
		t.Append(s.Macro, s.Street, formatNumber(s.Total))
	}
	return t
}

// LoopsTable renders loop events
func LoopsTable(events []entities.LoopEvent) *table.Table {
	t := table.New(LoopColumns...)
	for _, e := range events {
		t.Append(e.LHD, e.Operator, e.Street, e.Trench, formatTime(e.CreatedAt), e.Operation)
	}
	return t
}

// StatusTable renders status changes
func StatusTable(changes []entities.StatusChange) *table.Table {
	t := table.New(StatusColumns...)
	for _, c := range changes {
		t.Append(c.LHD, c.Operator, c.Status, c.ChangedBy, formatTime(c.CreatedAt))
	}
	return t
}

// OperatorsTable renders the operator roster
func OperatorsTable(operators []entities.Operator) *table.Table {
	t := table.New(OperatorColumns...)
	for _, o := range operators {
		tag := ""
		if o.TagID != nil {
			tag = formatInt(*o.TagID)
		}
		t.Append(formatInt(o.ID), o.FirstName, o.LastName, tag, o.SapNumber)
	}
	return t
}

// RSSITable renders tag readings
func RSSITable(readings []entities.RSSIReading) *table.Table {
	t := table.New(RSSIColumns...)
	for _, r := range readings {
		t.Append(formatInt(r.TagID), r.Street, r.Trench, strconv.Itoa(r.RSSI), formatTime(r.Timestamp), r.BatteryStatus)
	}
	return t
}

// TrenchesTable renders the latest reading per trench tag
func TrenchesTable(tags []entities.TrenchTag) *table.Table {
	t := table.New(TrenchColumns...)
	for _, tag := range tags {
		t.Append(formatInt(tag.TagID), tag.MB, tag.Trench, tag.BatteryStatus)
	}
	return t
}

// TransitsTable renders street transits with the date and time split
func TransitsTable(transits []entities.StreetTransit) *table.Table {
	t := table.New(TransitColumns...)
	for _, tr := range transits {
		date, clock := "", ""
		if !tr.TransitDate.IsZero() {
			local := tr.TransitDate.In(timerange.Location)
			date, clock = local.Format(timerange.DateLayout), local.Format("15:04:05")
		}
		t.Append(tr.Name, tr.SectorName, tr.MapPoint, tr.ZoneName, date, clock)
	}
	return t
}

// CatalogTable renders the street catalog
func CatalogTable(entries []entities.StreetCatalogEntry) *table.Table {
	t := table.New(CatalogColumns...)
	for _, e := range entries {
		t.Append(e.Macro, e.Street, e.Type)
	}
	return t
}

// HistoryTable renders sync history records
func HistoryTable(records []entities.SyncRecord) *table.Table {
	t := table.New(HistoryColumns...)
	for _, r := range records {
		t.Append(r.RunID, r.Machine, r.IPAddress, r.Kind, strconv.Itoa(r.Rows), r.Status, r.Error, formatTime(r.CreatedAt))
	}
	return t
}

// LastSyncTable renders machine → last sync time, sorted by machine
func LastSyncTable(last map[string]string) *table.Table {
	t := table.New(LastSyncColumns...)
	machines := lo.Keys(last)
	sort.Strings(machines)
	for _, m := range machines {
		t.Append(m, last[m])
	}
	return t
}
