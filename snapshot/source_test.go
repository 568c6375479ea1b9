package snapshot

import (
	"errors"
	"testing"
	"time"

	"linesign/melsec"
)

type fakeReader struct {
	connectErr error
	readErr    error
	groups     [][]uint16
	gotBlocks  []melsec.Block
}

func (f *fakeReader) EnsureConnected() error { return f.connectErr }

func (f *fakeReader) ReadBlocks(blocks []melsec.Block) ([][]uint16, error) {
	f.gotBlocks = blocks
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.groups, nil
}

func testRegMap(t *testing.T) *RegisterMap {
	t.Helper()
	m, err := NewRegisterMap(RegisterConfig{Plan: "D100", Actual: "D102", ProductType: "D104"})
	if err != nil {
		t.Fatalf("NewRegisterMap: %v", err)
	}
	return m
}

func TestPLCSourceFetch(t *testing.T) {
	fr := &fakeReader{groups: [][]uint16{{2800}, {1200}, {7}}}
	src := NewPLCSource(fr, testRegMap(t))
	captured := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	src.now = func() time.Time { return captured }

	snap, err := src.Fetch()
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Plan != 2800 || snap.Actual != 1200 || snap.ProductType != 7 {
		t.Errorf("snapshot = %+v", snap)
	}
	if !snap.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", snap.CapturedAt, captured)
	}
	if len(fr.gotBlocks) != 3 {
		t.Errorf("read %d blocks, want 3", len(fr.gotBlocks))
	}
	if src.Mode() != "plc" {
		t.Errorf("Mode = %q, want plc", src.Mode())
	}
}

func TestPLCSourcePropagatesErrors(t *testing.T) {
	fr := &fakeReader{connectErr: melsec.ErrConnection}
	src := NewPLCSource(fr, testRegMap(t))
	if _, err := src.Fetch(); !errors.Is(err, melsec.ErrConnection) {
		t.Errorf("connect failure: got %v, want ErrConnection", err)
	}

	fr = &fakeReader{readErr: melsec.ErrTimeout}
	src = NewPLCSource(fr, testRegMap(t))
	if _, err := src.Fetch(); !errors.Is(err, melsec.ErrTimeout) {
		t.Errorf("read failure: got %v, want ErrTimeout", err)
	}
}

func TestSimSourceDeterministic(t *testing.T) {
	a := NewSimSource(42)
	b := NewSimSource(42)

	for i := 0; i < 50; i++ {
		sa, err := a.Fetch()
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		sb, _ := b.Fetch()
		if sa.Plan != sb.Plan || sa.Actual != sb.Actual || sa.ProductType != sb.ProductType {
			t.Fatalf("step %d diverged: %+v vs %+v", i, sa, sb)
		}
	}
	if a.Mode() != "sim" {
		t.Errorf("Mode = %q, want sim", a.Mode())
	}
}

func TestSimSourceProgresses(t *testing.T) {
	src := NewSimSource(1)
	prev, _ := src.Fetch()
	if prev.ProductType < 0 || prev.ProductType > 15 {
		t.Errorf("product type %d out of range", prev.ProductType)
	}
	for i := 0; i < 1000; i++ {
		snap, err := src.Fetch()
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if snap.Actual > snap.Plan {
			t.Fatalf("actual %d exceeds plan %d", snap.Actual, snap.Plan)
		}
		if snap.Plan == prev.Plan && snap.Actual < prev.Actual {
			t.Fatalf("actual went backwards within a plan: %d -> %d", prev.Actual, snap.Actual)
		}
		prev = snap
	}
}
