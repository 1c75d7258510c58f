package feed

import "sync"

// DefaultScrollThreshold is how many rows from the end count as "near".
const DefaultScrollThreshold = 3

// Metrics describes a scrollable container: the offset of the first visible
// row, how many rows are visible, and the total content height.
type Metrics struct {
	Top     int
	Visible int
	Total   int
}

// NearEnd reports whether the visible window reaches within threshold rows
// of the end of the content.
func (m Metrics) NearEnd(threshold int) bool {
	return m.Top+m.Visible >= m.Total-threshold
}

// Proximity turns scroll observations into near-end triggers. An identical
// position is reported at most once; whether a trigger actually loads
// anything is up to the controller.
type Proximity struct {
	mu        sync.Mutex
	threshold int
	last      Metrics
	fired     bool
}

// NewProximity creates a detector with the given threshold. Negative values
// are treated as zero.
func NewProximity(threshold int) *Proximity {
	if threshold < 0 {
		threshold = 0
	}
	return &Proximity{threshold: threshold}
}

// Threshold returns the configured threshold.
func (p *Proximity) Threshold() int {
	return p.threshold
}

// Observe records the current scroll position and reports whether it should
// fire a near-end trigger.
func (p *Proximity) Observe(m Metrics) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fired && m == p.last {
		return false
	}
	p.last = m
	p.fired = m.NearEnd(p.threshold)
	return p.fired
}

// Rearm forgets the last reported position, so the next observation fires
// again if it is near the end. Used after the content is replaced.
func (p *Proximity) Rearm() {
	p.mu.Lock()
	p.fired = false
	p.last = Metrics{}
	p.mu.Unlock()
}
