package snapshot

import (
	"math/rand"
	"sync"
	"time"
)

// SimSource fabricates plausible snapshots without any network. It runs a
// plan of fixed size and advances the actual count by a small random step
// on each fetch, wrapping to a new product when the plan completes. The
// sequence is fully determined by the seed.
type SimSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	plan    int
	actual  int
	product int
	now     func() time.Time
}

// NewSimSource builds a simulated source. The same seed always yields the
// same sequence of snapshots.
func NewSimSource(seed int64) *SimSource {
	s := &SimSource{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
	}
	s.reset()
	return s
}

func (s *SimSource) reset() {
	s.plan = 2000 + s.rng.Intn(2000)
	s.actual = 0
	s.product = s.rng.Intn(16)
}

// Fetch returns the next simulated snapshot. It never fails.
func (s *SimSource) Fetch() (ProductionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actual >= s.plan {
		s.reset()
	}

	step := 1 + s.rng.Intn(8)
	s.actual += step
	if s.actual > s.plan {
		s.actual = s.plan
	}

	now := s.now()
	return ProductionSnapshot{
		Plan:        s.plan,
		Actual:      s.actual,
		ProductType: s.product,
		InOperating: true,
		CapturedAt:  now,
		PLCTime:     now,
	}, nil
}

// Mode reports "sim".
func (s *SimSource) Mode() string { return "sim" }
