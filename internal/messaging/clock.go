package messaging

import (
	"sync"
	"time"
)

// Clock supplies creation timestamps
type Clock interface {
	Now() time.Time
}

// MonotonicClock never goes backwards, so messages created through one
// service are timestamped in creation order. Times are truncated to
// milliseconds, the precision every backend can store.
type MonotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{now: time.Now}
}

func (c *MonotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
