package collector

import (
	"sync"
	"time"
)

// Progress keeps rotation cadence across loop rebuilds (config reloads).
// A nil *Progress is valid and remembers nothing.
type Progress struct {
	mu              sync.Mutex
	rotationCounter int
	since           time.Time
	rotatedAt       time.Time
}

// NewProgress returns empty cadence state.
func NewProgress() *Progress {
	return &Progress{}
}

// RotationCounter returns cycles counted since the last successful rotation.
func (p *Progress) RotationCounter() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotationCounter
}

func (p *Progress) load() (counter int, since, rotatedAt time.Time) {
	if p == nil {
		return 0, time.Time{}, time.Time{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rotationCounter, p.since, p.rotatedAt
}

func (p *Progress) save(counter int, since, rotatedAt time.Time) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.rotationCounter = counter
	p.since = since
	p.rotatedAt = rotatedAt
	p.mu.Unlock()
}
