package entities

import "time"

// LoopEvent is a counted loop operation performed by an LHD
type LoopEvent struct {
	LHD       string
	Operator  string
	Street    string
	Trench    string
	CreatedAt time.Time
	Operation string
}

// StatusChange is a machine status change reported by an operator
type StatusChange struct {
	LHD       string
	Operator  string
	Status    string
	ChangedBy string // supervisor name or "Operador"
	CreatedAt time.Time
}

// RSSIReading is a tag reading seen by a machine antenna
type RSSIReading struct {
	TagID         int64
	Street        string
	Trench        string
	RSSI          int
	Timestamp     time.Time
	BatteryStatus string
}

// TrenchTag is the latest reading of one tag in a trench
type TrenchTag struct {
	TagID         int64
	MB            string
	Trench        string
	BatteryStatus string
}

// StreetTransit is the latest transit recorded at a map point
type StreetTransit struct {
	Name        string
	SectorName  string
	MapPoint    string
	ZoneName    string
	TransitDate time.Time
}

// StreetCatalogEntry is a street zone and its parent macro
type StreetCatalogEntry struct {
	Macro  string
	Street string
	Type   string
}

// SideSelection is the last side an operator selected on a machine
type SideSelection struct {
	FirstName string
	LastName  string
	Side      string
}
