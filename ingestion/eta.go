package ingestion

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// DefaultETAWindow is the number of observations the ETA averages over.
const DefaultETAWindow = 10

// ETA estimates the time remaining from a sliding window of recent ticks.
type ETA struct {
	mu        sync.Mutex
	total     int64
	capacity  int
	last      time.Time
	lastCount int64
	elapsed   []time.Duration
	estimates []float64 // milliseconds
	now       func() time.Time
}

// NewETA creates an estimator for total units with the given window capacity.
func NewETA(total int64, capacity int) *ETA {
	return newETA(total, capacity, time.Now)
}

func newETA(total int64, capacity int, now func() time.Time) *ETA {
	if capacity < 1 {
		capacity = DefaultETAWindow
	}
	return &ETA{
		total:    total,
		capacity: capacity,
		last:     now(),
		now:      now,
	}
}

// Tick records that current units are done and returns the smoothed
// estimate of the time remaining. Ticks without progress do not enter
// the estimate window. Counts below an earlier tick's are treated as no
// progress, so concurrent reporters may tick out of order.
func (e *ETA) Tick(current int64) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	current = max(current, e.lastCount)

	now := e.now()
	if d := now.Sub(e.last); d > 0 {
		e.elapsed = pushWindow(e.elapsed, d, e.capacity)
	}
	e.last = now

	increment := current - e.lastCount
	e.lastCount = current
	if increment > 0 && len(e.elapsed) > 0 {
		remaining := max(e.total-current, 0)
		estimate := meanMillis(e.elapsed) * (float64(remaining) / float64(increment))
		if !math.IsNaN(estimate) && !math.IsInf(estimate, 0) {
			e.estimates = pushWindow(e.estimates, estimate, e.capacity)
		}
	}

	if len(e.estimates) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range e.estimates {
		sum += v
	}
	return time.Duration(sum / float64(len(e.estimates)) * float64(time.Millisecond))
}

// WindowLen returns the number of estimates currently averaged.
func (e *ETA) WindowLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.estimates)
}

// FormatETA renders d as days, hours, minutes, seconds and milliseconds,
// most significant first, dropping leading zero units: "1h 2m 3s 4ms".
func FormatETA(d time.Duration) string {
	ms := d.Milliseconds()
	if ms <= 0 {
		return "0ms"
	}
	parts := []struct {
		value int64
		unit  string
	}{
		{ms / 86400000, "d"},
		{ms / 3600000 % 24, "h"},
		{ms / 60000 % 60, "m"},
		{ms / 1000 % 60, "s"},
		{ms % 1000, "ms"},
	}

	var out []string
	for _, part := range parts {
		if len(out) == 0 && part.value == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%d%s", part.value, part.unit))
	}
	return strings.Join(out, " ")
}

func pushWindow[T any](window []T, v T, capacity int) []T {
	window = append(window, v)
	if len(window) > capacity {
		window = window[len(window)-capacity:]
	}
	return window
}

func meanMillis(window []time.Duration) float64 {
	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	return float64(sum) / float64(len(window)) / float64(time.Millisecond)
}
