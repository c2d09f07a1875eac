package clock

import (
	"sync"
	"time"
)

// Mock is a settable Clock for tests
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// Ensure Mock implements Clock
var _ Clock = (*Mock)(nil)

// NewMock creates a Mock set to the given time
func NewMock(t time.Time) *Mock {
	return &Mock{current: t}
}

// Now returns the mocked current time
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by the given duration
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}
