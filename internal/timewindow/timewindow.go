// Package timewindow splits a time range into bounded, contiguous windows.
package timewindow

import "time"

// MaxSpan is the longest range the mutation API accepts in a single request.
const MaxSpan = 7 * 24 * time.Hour

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Partition splits [from, to) into sequential windows of at most span, earliest first.
// Every window except possibly the last is exactly span long. An empty or inverted
// range yields no windows. A non-positive span yields the whole range as one window.
func Partition(from, to time.Time, span time.Duration) []Window {
	if !to.After(from) {
		return nil
	}
	if span <= 0 {
		return []Window{{From: from, To: to}}
	}

	windows := make([]Window, 0, int(to.Sub(from)/span)+1)
	for cursor := from; cursor.Before(to); {
		end := cursor.Add(span)
		if end.After(to) {
			end = to
		}
		windows = append(windows, Window{From: cursor, To: end})
		cursor = end
	}
	return windows
}
