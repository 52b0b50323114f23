package peersync

import "time"

// RateWindow enforces the outbound send cap: at most maxPerWindow sends per
// window of windowLength. The window starts at the first send after a reset
// and rolls forward once its length has fully elapsed.
type RateWindow struct {
	maxPerWindow int
	length       time.Duration
	windowStart  time.Time
	count        int
}

// NewRateWindow creates a rate window. maxPerWindow <= 0 disables the cap.
func NewRateWindow(maxPerWindow int, length time.Duration) RateWindow {
	return RateWindow{maxPerWindow: maxPerWindow, length: length}
}

// Allow consumes one send slot if the current window has room. A false
// return means the caller must hold the event and re-offer it later; the
// window never silently discards anything itself.
func (w *RateWindow) Allow(now time.Time) bool {
	if w.maxPerWindow <= 0 {
		return true
	}
	if w.windowStart.IsZero() || now.Sub(w.windowStart) > w.length {
		w.windowStart = now
		w.count = 0
	}
	if w.count >= w.maxPerWindow {
		return false
	}
	w.count++
	return true
}

// Reset starts a fresh window; called when a new connection epoch begins
func (w *RateWindow) Reset(now time.Time) {
	w.windowStart = now
	w.count = 0
}

// Usage returns the slots consumed in the current window and the cap
func (w *RateWindow) Usage() (int, int) {
	return w.count, w.maxPerWindow
}
