package poller

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"linesign/catalog"
	"linesign/melsec"
	"linesign/snapshot"
)

type scriptedSource struct {
	steps []func() (snapshot.ProductionSnapshot, error)
	i     int
}

func (s *scriptedSource) Fetch() (snapshot.ProductionSnapshot, error) {
	step := s.steps[s.i]
	if s.i < len(s.steps)-1 {
		s.i++
	}
	return step()
}

func (s *scriptedSource) Mode() string { return "plc" }

func ok(plan, actual, product int) func() (snapshot.ProductionSnapshot, error) {
	return func() (snapshot.ProductionSnapshot, error) {
		return snapshot.ProductionSnapshot{
			Plan:        plan,
			Actual:      actual,
			ProductType: product,
			CapturedAt:  time.Now(),
		}, nil
	}
}

func fail(err error) func() (snapshot.ProductionSnapshot, error) {
	return func() (snapshot.ProductionSnapshot, error) {
		return snapshot.ProductionSnapshot{}, err
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	dir := t.TempDir()
	body := `{"0": {"name": "Widget 700", "pallet_capacity": 700, "rate_per_minute": 50}}`
	if err := os.WriteFile(filepath.Join(dir, "A1.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err := catalog.Load(dir, "A1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestPollOnceDerivesFigures(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){ok(2800, 0, 0)}}
	p := New(src, testCatalog(t), time.Second)

	u := p.PollOnce()
	if u.Err != nil {
		t.Fatalf("Err = %v", u.Err)
	}
	if !u.ProductKnown || u.Product.Name != "Widget 700" {
		t.Errorf("product = %+v known=%v", u.Product, u.ProductKnown)
	}
	if u.RemainPallets != 4 {
		t.Errorf("RemainPallets = %d, want 4", u.RemainPallets)
	}
	if u.RemainMinutes != 56 {
		t.Errorf("RemainMinutes = %g, want 56", u.RemainMinutes)
	}
	if u.Stale {
		t.Error("fresh update flagged stale")
	}
}

func TestPollOnceUnknownProduct(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){ok(100, 10, 9)}}
	p := New(src, testCatalog(t), time.Second)

	u := p.PollOnce()
	if u.Err != nil {
		t.Fatalf("Err = %v", u.Err)
	}
	if u.ProductKnown {
		t.Error("ProductKnown = true for unmapped code")
	}
	if u.Snapshot.Plan != 100 || u.Snapshot.Actual != 10 {
		t.Errorf("raw counters lost: %+v", u.Snapshot)
	}
}

func TestStaleAfterConsecutiveFailures(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){
		ok(2800, 1200, 0),
		fail(melsec.ErrTimeout),
	}}
	p := New(src, testCatalog(t), time.Second)

	if u := p.PollOnce(); u.Err != nil {
		t.Fatalf("seed poll: %v", u.Err)
	}

	var last Update
	for i := 0; i < p.failureLimit; i++ {
		last = p.PollOnce()
		if !errors.Is(last.Err, melsec.ErrTimeout) {
			t.Fatalf("failure %d: Err = %v", i, last.Err)
		}
		wantStale := i >= p.failureLimit-1
		if last.Stale != wantStale {
			t.Errorf("failure %d: Stale = %v, want %v", i, last.Stale, wantStale)
		}
		// Retained reading survives the outage.
		if last.Snapshot.Actual != 1200 {
			t.Errorf("failure %d: retained Actual = %d", i, last.Snapshot.Actual)
		}
	}

	st := p.Status()
	if !st.Stale || st.Failures != p.failureLimit || st.LastError == "" {
		t.Errorf("Status = %+v", st)
	}
}

func TestRecoveryClearsStale(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){
		fail(melsec.ErrConnection),
		ok(2800, 1300, 0),
	}}
	p := New(src, testCatalog(t), time.Second)
	p.PollOnce()

	u := p.PollOnce()
	if u.Err != nil || u.Stale {
		t.Errorf("recovered update: Err=%v Stale=%v", u.Err, u.Stale)
	}
	if st := p.Status(); st.Stale || st.Failures != 0 {
		t.Errorf("Status after recovery = %+v", st)
	}
}

func TestFailuresWithoutDataAreNotStale(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){fail(melsec.ErrConnection)}}
	p := New(src, testCatalog(t), time.Second)

	for i := 0; i < 5; i++ {
		if u := p.PollOnce(); u.Stale {
			t.Fatal("Stale = true with no retained reading")
		}
	}
	if _, ok := p.Last(); ok {
		t.Error("Last reports data after failures only")
	}
}

func TestPrimeSeedsStaleReading(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){ok(10, 5, 0)}}
	p := New(src, testCatalog(t), time.Second)

	p.Prime(snapshot.ProductionSnapshot{Plan: 2800, Actual: 900})
	u, ok := p.Last()
	if !ok || !u.Stale || u.Snapshot.Actual != 900 {
		t.Errorf("primed reading = %+v ok=%v", u, ok)
	}

	// A live poll replaces the primed reading.
	p.PollOnce()
	u, _ = p.Last()
	if u.Stale || u.Snapshot.Actual != 5 {
		t.Errorf("after live poll = %+v", u)
	}
}

func TestOnUpdateListeners(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){ok(10, 5, 0)}}
	p := New(src, testCatalog(t), time.Second)

	got := 0
	p.OnUpdate(func(u Update) { got++ })
	p.PollOnce()
	p.PollOnce()
	if got != 2 {
		t.Errorf("listener ran %d times, want 2", got)
	}
}

func TestStartStop(t *testing.T) {
	src := &scriptedSource{steps: []func() (snapshot.ProductionSnapshot, error){ok(10, 5, 0)}}
	p := New(src, testCatalog(t), 10*time.Millisecond)

	done := make(chan struct{})
	var once bool
	p.OnUpdate(func(u Update) {
		if !once {
			once = true
			close(done)
		}
	})

	p.Start()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no update within 1s")
	}
	p.Stop()
}
