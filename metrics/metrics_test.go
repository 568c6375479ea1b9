package metrics

import (
	"errors"
	"math"
	"testing"
)

func TestRemainingPallets(t *testing.T) {
	tests := []struct {
		name     string
		plan     int
		actual   int
		capacity int
		want     int
	}{
		{"plan complete", 2800, 2800, 2800, 0},
		{"full plan ahead", 2800, 0, 700, 4},
		{"partial pallet rounds down", 2800, 100, 700, 3},
		{"overrun clamps", 2800, 3000, 700, 0},
		{"capacity one", 10, 4, 1, 6},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RemainingPallets(tc.plan, tc.actual, tc.capacity)
			if err != nil {
				t.Fatalf("RemainingPallets: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRemainingPalletsInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -5} {
		if _, err := RemainingPallets(100, 0, capacity); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("capacity %d: got %v, want ErrInvalidConfig", capacity, err)
		}
	}
}

func TestRemainingMinutes(t *testing.T) {
	tests := []struct {
		name   string
		plan   int
		actual int
		rate   float64
		want   float64
	}{
		{"half plan at fifty per minute", 100, 0, 50, 2.0},
		{"fractional result", 100, 25, 30, 2.5},
		{"complete", 100, 100, 50, 0},
		{"overrun clamps", 100, 150, 50, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RemainingMinutes(tc.plan, tc.actual, tc.rate)
			if err != nil {
				t.Fatalf("RemainingMinutes: %v", err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("got %g, want %g", got, tc.want)
			}
		})
	}
}

func TestRemainingMinutesInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1.5} {
		if _, err := RemainingMinutes(100, 0, rate); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("rate %g: got %v, want ErrInvalidConfig", rate, err)
		}
	}
}
