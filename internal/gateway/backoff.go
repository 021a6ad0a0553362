package gateway

import "time"

// DefaultResetWait is the interval the backoff returns to after every
// successful open.
const DefaultResetWait = 5 * time.Second

// Backoff is the reconnect interval state. It is a value: Reset and Next
// return updated copies, so the manager owns the only live instance.
//
// Invariant: Reset <= Current <= Max.
type Backoff struct {
	Current time.Duration
	Max     time.Duration
	ResetTo time.Duration
}

// NewBackoff returns a backoff at its reset value. A ceiling below the reset
// value is raised to it.
func NewBackoff(reset, max time.Duration) Backoff {
	if reset <= 0 {
		reset = DefaultResetWait
	}
	if max < reset {
		max = reset
	}
	return Backoff{Current: reset, Max: max, ResetTo: reset}
}

// Reset returns the backoff at its reset value.
func (b Backoff) Reset() Backoff {
	b.Current = b.ResetTo
	return b
}

// Next returns the delay to wait now and the backoff to use after it:
// the current interval doubled, capped at Max.
func (b Backoff) Next() (time.Duration, Backoff) {
	delay := b.Current
	next := b.Current * 2
	if next > b.Max || next <= 0 {
		next = b.Max
	}
	b.Current = next
	return delay, b
}
