package entities

import "time"

// CartirHeader is the latest Cartir as shown on the shift report
type CartirHeader struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cartir is a daily shift manifest. Times are mine-local wall clock.
type Cartir struct {
	ID         int64
	Name       string
	CartirDate time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Task is a pail collection event belonging to a Cartir
type Task struct {
	ID           int64
	CartirID     int64
	ShiftID      int64
	SectorID     int64
	StreetID     int64
	SpotID       int64
	PailQuantity float64
	PailVolume   float64
	TaskStart    time.Time
	CreatedAt    time.Time
}

// TaskDetail is a Task resolved to its shift and zone names
type TaskDetail struct {
	TaskID       int64
	CartirID     int64
	Shift        string
	Macro        string
	Street       string
	Trench       string
	PailQuantity float64
	PailVolume   float64
	CreatedAt    time.Time
}

// ShiftSummary aggregates the Tasks of one Cartir and shift
type ShiftSummary struct {
	CartirID int64
	Shift    string
	Total    float64
	Entries  int
}

// MacroTotal is the pail quantity of one macro zone
type MacroTotal struct {
	Macro string
	Total float64
}

// StreetTotal is the pail quantity of one street inside a macro zone
type StreetTotal struct {
	Macro  string
	Street string
	Total  float64
}
