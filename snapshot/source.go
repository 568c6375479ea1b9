package snapshot

import (
	"time"

	"linesign/melsec"
)

// Reader is the slice of the transport client a PLC source needs. The
// production client satisfies it; tests substitute a fake.
type Reader interface {
	EnsureConnected() error
	ReadBlocks(blocks []melsec.Block) ([][]uint16, error)
}

// PLCSource captures snapshots from a live controller. Every capture is a
// single multi-block read, so the counters within one snapshot come from
// the same protocol exchange.
type PLCSource struct {
	client Reader
	regs   *RegisterMap
	now    func() time.Time
}

// NewPLCSource builds a source reading through client using the given
// register map.
func NewPLCSource(client Reader, regs *RegisterMap) *PLCSource {
	return &PLCSource{client: client, regs: regs, now: time.Now}
}

// Fetch captures one snapshot. Transport and protocol errors are returned
// unchanged so callers can branch on the melsec sentinels.
func (s *PLCSource) Fetch() (ProductionSnapshot, error) {
	if err := s.client.EnsureConnected(); err != nil {
		return ProductionSnapshot{}, err
	}

	groups, err := s.client.ReadBlocks(s.regs.Blocks())
	if err != nil {
		return ProductionSnapshot{}, err
	}

	return s.regs.Decode(groups, s.now())
}

// Mode reports "plc".
func (s *PLCSource) Mode() string { return "plc" }
