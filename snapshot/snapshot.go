// Package snapshot turns raw controller register reads into typed,
// immutable production snapshots. All fields of a snapshot come from one
// batched read, so values are never torn across polls.
package snapshot

import "time"

// ProductionSnapshot is the point-in-time view of one production line.
// It is a value object: construct once, never mutate.
type ProductionSnapshot struct {
	Plan        int       // Planned production count
	Actual      int       // Actual production count
	ProductType int       // Product type code currently running (0-15)
	InOperating bool      // Line running flag
	CapturedAt  time.Time // Capture time observed at the caller
	PLCTime     time.Time // Controller clock (BCD), CapturedAt when absent
}

// Remaining returns the outstanding unit count, clamped at zero.
func (s ProductionSnapshot) Remaining() int {
	if s.Actual >= s.Plan {
		return 0
	}
	return s.Plan - s.Actual
}

// Source produces production snapshots. The PLC-backed implementation and
// the simulation share this contract, so everything above the acquisition
// layer is transport-agnostic.
type Source interface {
	// Fetch returns a fully populated snapshot or an error; it never
	// returns a partially filled snapshot.
	Fetch() (ProductionSnapshot, error)

	// Mode identifies the source kind ("plc" or "sim") for status
	// reporting.
	Mode() string
}
