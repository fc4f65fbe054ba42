package ratelimit

import "time"

// window is the uniform admission interface both window styles implement.
// Callers hold the provider's mutex around every method.
type window interface {
	// tryAcquire performs an atomic check-and-increment. On denial it
	// returns the duration until the next possible admission.
	tryAcquire(now time.Time) (ok bool, retryAfter time.Duration)
	// snapshot reports remaining budget and the next reset without
	// mutating window state.
	snapshot(now time.Time) (remaining int, resetAt time.Time)
}

// fixedWindow resets at aligned boundaries: all consumption within
// [start, start+duration) counts against the limit, then the counter clears.
type fixedWindow struct {
	limit    int
	duration time.Duration
	start    time.Time
	consumed int
}

func newFixedWindow(limit int, duration time.Duration, now time.Time) *fixedWindow {
	return &fixedWindow{limit: limit, duration: duration, start: now.Truncate(duration)}
}

func (w *fixedWindow) roll(now time.Time) {
	if !now.Before(w.start.Add(w.duration)) {
		w.start = now.Truncate(w.duration)
		w.consumed = 0
	}
}

func (w *fixedWindow) tryAcquire(now time.Time) (bool, time.Duration) {
	w.roll(now)
	if w.consumed < w.limit {
		w.consumed++
		return true, 0
	}
	return false, w.start.Add(w.duration).Sub(now)
}

func (w *fixedWindow) snapshot(now time.Time) (int, time.Time) {
	if !now.Before(w.start.Add(w.duration)) {
		// Current window already lapsed; the next acquire starts fresh.
		return w.limit, now.Truncate(w.duration).Add(w.duration)
	}
	return w.limit - w.consumed, w.start.Add(w.duration)
}

// rollingWindow slides relative to request history: an admission is allowed
// while fewer than limit requests happened in the trailing duration.
type rollingWindow struct {
	limit    int
	duration time.Duration
	history  []time.Time // admission times, oldest first
}

func newRollingWindow(limit int, duration time.Duration) *rollingWindow {
	return &rollingWindow{limit: limit, duration: duration}
}

func (w *rollingWindow) trim(now time.Time) {
	cutoff := now.Add(-w.duration)
	i := 0
	for i < len(w.history) && !w.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.history = append(w.history[:0], w.history[i:]...)
	}
}

func (w *rollingWindow) tryAcquire(now time.Time) (bool, time.Duration) {
	w.trim(now)
	if len(w.history) < w.limit {
		w.history = append(w.history, now)
		return true, 0
	}
	return false, w.history[0].Add(w.duration).Sub(now)
}

func (w *rollingWindow) snapshot(now time.Time) (int, time.Time) {
	cutoff := now.Add(-w.duration)
	inWindow := 0
	var oldest time.Time
	for _, ts := range w.history {
		if ts.After(cutoff) {
			if inWindow == 0 {
				oldest = ts
			}
			inWindow++
		}
	}
	remaining := w.limit - inWindow
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now
	if inWindow > 0 {
		resetAt = oldest.Add(w.duration)
	}
	return remaining, resetAt
}
