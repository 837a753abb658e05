package stream

import "time"

// Throttle debounces alerts of a single camera against the last emitted
// alert. The zero value has never emitted, so the first detection passes.
type Throttle struct {
	last    time.Time
	emitted bool
}

// Ready reports whether an alert at now may be emitted given interval.
// The interval must be strictly exceeded.
func (t *Throttle) Ready(now time.Time, interval time.Duration) bool {
	if !t.emitted {
		return true
	}
	return now.Sub(t.last) > interval
}

// Mark records an emitted alert at now.
func (t *Throttle) Mark(now time.Time) {
	t.last = now
	t.emitted = true
}

// Allow is Ready followed by Mark when the alert passes.
func (t *Throttle) Allow(now time.Time, interval time.Duration) bool {
	if !t.Ready(now, interval) {
		return false
	}
	t.Mark(now)
	return true
}

// LastEmitted returns the time of the last emitted alert, if any.
func (t *Throttle) LastEmitted() (time.Time, bool) {
	return t.last, t.emitted
}
