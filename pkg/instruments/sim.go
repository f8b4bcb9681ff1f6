package instruments

import (
	"math/rand"
	"sync"
	"time"
)

// simSource produces the readings for simulated instruments. Every driver
// owns one so a fixed seed gives a reproducible trace per instrument.
type simSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSimSource(seed int64) *simSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &simSource{rng: rand.New(rand.NewSource(seed))}
}

// noisy returns center plus gaussian noise of amplitude amp.
func (s *simSource) noisy(center, amp float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return center + amp*s.rng.NormFloat64()
}
