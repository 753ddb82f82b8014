package operations

import (
	"sync"
	"time"
)

// ProgressTracker tracks progress through a known number of work items
type ProgressTracker struct {
	Step      string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(step string, total int) *ProgressTracker {
	return &ProgressTracker{
		Step:      step,
		Total:     total,
		Current:   0,
		StartTime: time.Now(),
	}
}

// Update updates the current progress
func (p *ProgressTracker) Update(current int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current = current
	p.Message = message
}

// Increment increments the current progress by 1
func (p *ProgressTracker) Increment(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = message
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, percentage float64, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	percentage = 0
	if p.Total > 0 {
		percentage = float64(p.Current) / float64(p.Total) * 100
	}

	return p.Current, p.Total, percentage, p.Message
}

// IsComplete returns true if all work items are done
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}
