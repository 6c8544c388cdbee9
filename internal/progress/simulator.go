package progress

import (
	"math"
	"sync"
	"time"
)

// Max is the value at which the simulation halts
const Max = 100.0

// Simulator is a fake progress clock for long-running requests. It advances
// by a fixed step every tick until it reaches Max, independent of whether
// the real work has finished. Nothing should treat its value as a signal of
// completion.
type Simulator struct {
	tick time.Duration
	step float64

	mu         sync.Mutex
	value      float64
	generation uint64
	stop       chan struct{}
}

// NewSimulator returns a simulator that would reach Max after duration when
// ticking every tick.
func NewSimulator(duration, tick time.Duration) *Simulator {
	if tick <= 0 {
		tick = 200 * time.Millisecond
	}
	if duration < tick {
		duration = tick
	}
	return &Simulator{
		tick: tick,
		step: Max / (float64(duration) / float64(tick)),
	}
}

// Start resets the value to zero and begins ticking. A run already in
// progress is cancelled first.
func (s *Simulator) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.haltLocked()
	s.value = 0
	s.generation++
	s.stop = make(chan struct{})

	go s.run(s.generation, s.stop)
}

// Stop halts ticking and resets the value to zero
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.haltLocked()
	s.generation++
	s.value = 0
}

// Value is the current progress in [0, 100]
func (s *Simulator) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Running reports whether a ticker is active
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

func (s *Simulator) haltLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Simulator) run(generation uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := s.advance(generation); done {
				return
			}
		}
	}
}

// advance applies one step and reports whether this run is over
func (s *Simulator) advance(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return true
	}

	s.value = math.Min(s.value+s.step, Max)
	if s.value >= Max {
		s.haltLocked()
		return true
	}
	return false
}
