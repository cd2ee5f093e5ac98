// Package entities contains the core domain objects for the mine-site dashboard
package entities

import (
	"time"
)

// Machine represents a field machine (LHD) and the computer it carries
type Machine struct {
	ID        int64
	Name      string
	IPAddress string // As stored in Computer.IpAddress, may contain stray spaces
}

// Operator represents a row of the operator roster
type Operator struct {
	ID        int64
	FirstName string
	LastName  string
	TagID     *int64 // RFID tag, nil when the operator has none
	SapNumber string
}

// SyncRecord is one entry of the local sync history
type SyncRecord struct {
	ID        int64
	RunID     string
	Machine   string
	IPAddress string
	Kind      string // cartir, operators
	Rows      int
	Status    string // ok, failed
	Error     string
	CreatedAt time.Time
}

// Sync history values
const (
	SyncKindCartir    = "cartir"
	SyncKindOperators = "operators"

	SyncStatusOK     = "ok"
	SyncStatusFailed = "failed"
)
