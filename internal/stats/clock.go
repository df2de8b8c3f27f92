package stats

import "time"

// TimeProvider abstracts the clock so tests can pin "today".
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider is the default implementation that uses the system clock
type DefaultTimeProvider struct{}

// Now returns the current UTC time
func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider always returns the same instant; intended for tests.
type FixedTimeProvider struct {
	Time time.Time
}

func (p *FixedTimeProvider) Now() time.Time {
	return p.Time
}
