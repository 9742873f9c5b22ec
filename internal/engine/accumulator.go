package engine

import (
	"math"
	"sync"
)

// accumulatorStore keeps per-drone fractional battery change between integer
// deductions. Drone battery is persisted as a whole percentage; feeding every
// tick's sub-percent consumption straight into it (rounded up) would overdrain
// the pack by an order of magnitude over many short ticks, so fractions are
// accumulated here and only the floor is ever deducted.
type accumulatorStore struct {
	mu      sync.Mutex
	pending map[int64]float64
}

func newAccumulatorStore() *accumulatorStore {
	return &accumulatorStore{pending: make(map[int64]float64)}
}

// Add accumulates amount for the drone and returns the whole percent now due
// for deduction, keeping the fractional remainder.
func (s *accumulatorStore) Add(droneID int64, amount float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.pending[droneID] + amount
	whole := math.Floor(total)
	s.pending[droneID] = total - whole
	return int(whole)
}

// Retain drops carries for every drone not in keep.
func (s *accumulatorStore) Retain(keep map[int64]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		if !keep[id] {
			delete(s.pending, id)
		}
	}
}

// Clear drops any carried-over fraction for the drone.
func (s *accumulatorStore) Clear(droneID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, droneID)
}

func (s *accumulatorStore) pendingFor(droneID int64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[droneID]
}
