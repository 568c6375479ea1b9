package snapshot

import (
	"errors"
	"fmt"
	"time"

	"linesign/logging"
	"linesign/melsec"
)

// ErrInvalidConfig indicates a register map that fails validation. Raised
// at construction time, never mid-poll.
var ErrInvalidConfig = errors.New("invalid register map")

// RegisterConfig names the device addresses holding each production
// counter. Plan, Actual and ProductType are required; Status and Clock are
// optional and skipped when empty.
type RegisterConfig struct {
	Plan        string `yaml:"plan"`         // Planned count, 1 word
	Actual      string `yaml:"actual"`       // Actual count, 1 word
	ProductType string `yaml:"product_type"` // Product type code, 1 word
	Status      string `yaml:"status"`       // Running flag, bit 0 of 1 word
	Clock       string `yaml:"clock"`        // Controller clock, 3 words BCD YMDhms
}

type fieldKind int

const (
	fieldPlan fieldKind = iota
	fieldActual
	fieldProductType
	fieldStatus
	fieldClock
)

type field struct {
	name   string
	kind   fieldKind
	addr   melsec.DeviceAddress
	points uint16
}

// RegisterMap is the validated, immutable decode table for one line.
type RegisterMap struct {
	fields []field
	blocks []melsec.Block
}

// NewRegisterMap parses and validates a register configuration. Any
// structural problem (unparseable device, overlapping ranges, missing
// required field) fails here so it can never surface mid-poll.
func NewRegisterMap(cfg RegisterConfig) (*RegisterMap, error) {
	specs := []struct {
		name     string
		kind     fieldKind
		device   string
		points   uint16
		required bool
	}{
		{"plan", fieldPlan, cfg.Plan, 1, true},
		{"actual", fieldActual, cfg.Actual, 1, true},
		{"product_type", fieldProductType, cfg.ProductType, 1, true},
		{"status", fieldStatus, cfg.Status, 1, false},
		{"clock", fieldClock, cfg.Clock, 3, false},
	}

	m := &RegisterMap{}
	for _, spec := range specs {
		if spec.device == "" {
			if spec.required {
				return nil, fmt.Errorf("%w: %s register not configured", ErrInvalidConfig, spec.name)
			}
			continue
		}

		addr, err := melsec.ParseDevice(spec.device)
		if err != nil {
			return nil, fmt.Errorf("%w: %s register: %v", ErrInvalidConfig, spec.name, err)
		}
		// Word-unit access to a bit device must start on a word boundary.
		if addr.IsBitDevice() && addr.Number%16 != 0 {
			return nil, fmt.Errorf("%w: %s register %s: bit device head must be a multiple of 16", ErrInvalidConfig, spec.name, addr)
		}

		m.fields = append(m.fields, field{name: spec.name, kind: spec.kind, addr: addr, points: spec.points})
		m.blocks = append(m.blocks, melsec.Block{Addr: addr, Points: spec.points})
	}

	if err := m.checkOverlap(); err != nil {
		return nil, err
	}

	return m, nil
}

// checkOverlap rejects field ranges that alias each other within the same
// device area, which would corrupt a single batched read.
func (m *RegisterMap) checkOverlap() error {
	for i := 0; i < len(m.fields); i++ {
		for j := i + 1; j < len(m.fields); j++ {
			a, b := m.fields[i], m.fields[j]
			if a.addr.Device != b.addr.Device {
				continue
			}
			aEnd := a.addr.Number + uint32(a.points)
			bEnd := b.addr.Number + uint32(b.points)
			if a.addr.Number < bEnd && b.addr.Number < aEnd {
				return fmt.Errorf("%w: %s (%s) overlaps %s (%s)", ErrInvalidConfig, a.name, a.addr, b.name, b.addr)
			}
		}
	}
	return nil
}

// Blocks returns the ordered device ranges for one batched read.
func (m *RegisterMap) Blocks() []melsec.Block {
	out := make([]melsec.Block, len(m.blocks))
	copy(out, m.blocks)
	return out
}

// Decode maps the word groups of one batched read onto a snapshot. The
// group order must match Blocks(). capturedAt stamps the snapshot and is
// the fallback for an absent or undecodable controller clock.
func (m *RegisterMap) Decode(groups [][]uint16, capturedAt time.Time) (ProductionSnapshot, error) {
	if len(groups) != len(m.fields) {
		return ProductionSnapshot{}, fmt.Errorf("%w: got %d word groups, want %d", melsec.ErrProtocol, len(groups), len(m.fields))
	}

	snap := ProductionSnapshot{
		CapturedAt: capturedAt,
		PLCTime:    capturedAt,
	}

	for i, f := range m.fields {
		words := groups[i]
		if len(words) < int(f.points) {
			return ProductionSnapshot{}, fmt.Errorf("%w: %s group has %d words, want %d", melsec.ErrProtocol, f.name, len(words), f.points)
		}

		switch f.kind {
		case fieldPlan:
			snap.Plan = int(words[0])
		case fieldActual:
			snap.Actual = int(words[0])
		case fieldProductType:
			snap.ProductType = int(words[0])
		case fieldStatus:
			snap.InOperating = words[0]&0x1 != 0
		case fieldClock:
			ts, err := decodeClock(words, capturedAt.Location())
			if err != nil {
				// Controllers with an unset clock report garbage BCD;
				// the original system falls back to the host clock.
				logging.DebugLog("snapshot", "clock decode failed (%v), using capture time", err)
				continue
			}
			snap.PLCTime = ts
		}
	}

	return snap, nil
}

// decodeClock converts the controller clock words (BCD packed as
// YYMM DDhh mmss, e.g. 0x2511 0x1314 0x3045 = 2025-11-13 14:30:45) into a
// time in the given location.
func decodeClock(words []uint16, loc *time.Location) (time.Time, error) {
	if len(words) < 3 {
		return time.Time{}, fmt.Errorf("clock needs 3 words, got %d", len(words))
	}

	parts := make([]int, 6)
	for i := 0; i < 3; i++ {
		hi, err := bcdByte(byte(words[i] >> 8))
		if err != nil {
			return time.Time{}, err
		}
		lo, err := bcdByte(byte(words[i]))
		if err != nil {
			return time.Time{}, err
		}
		parts[i*2] = hi
		parts[i*2+1] = lo
	}

	year, month, day := 2000+parts[0], parts[1], parts[2]
	hour, minute, sec := parts[3], parts[4], parts[5]

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("clock fields out of range: %04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, sec)
	}

	return time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc), nil
}

// bcdByte decodes one packed BCD byte (two decimal digits).
func bcdByte(b byte) (int, error) {
	hi, lo := int(b>>4), int(b&0xF)
	if hi > 9 || lo > 9 {
		return 0, fmt.Errorf("invalid BCD byte 0x%02X", b)
	}
	return hi*10 + lo, nil
}
