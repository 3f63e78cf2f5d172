package timewindow

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		from     time.Time
		to       time.Time
		span     time.Duration
		expected []Window
	}{
		{
			name: "nine days split into a full week and a remainder",
			from: day(1),
			to:   day(10),
			span: MaxSpan,
			expected: []Window{
				{From: day(1), To: day(8)},
				{From: day(8), To: day(10)},
			},
		},
		{
			name:     "range shorter than span",
			from:     day(1),
			to:       day(2),
			span:     MaxSpan,
			expected: []Window{{From: day(1), To: day(2)}},
		},
		{
			name: "exact multiple of span",
			from: day(1),
			to:   day(15),
			span: MaxSpan,
			expected: []Window{
				{From: day(1), To: day(8)},
				{From: day(8), To: day(15)},
			},
		},
		{
			name:     "equal bounds",
			from:     day(1),
			to:       day(1),
			span:     MaxSpan,
			expected: nil,
		},
		{
			name:     "inverted bounds",
			from:     day(10),
			to:       day(1),
			span:     MaxSpan,
			expected: nil,
		},
		{
			name:     "non-positive span returns whole range",
			from:     day(1),
			to:       day(20),
			span:     0,
			expected: []Window{{From: day(1), To: day(20)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Partition(tt.from, tt.to, tt.span))
		})
	}
}

func TestPartition_PreservesLocation(t *testing.T) {
	t.Parallel()

	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skip("timezone database not available")
	}

	from := time.Date(2024, time.March, 28, 12, 0, 0, 0, amsterdam)
	to := from.Add(10 * 24 * time.Hour)

	windows := Partition(from, to, MaxSpan)
	require.Len(t, windows, 2)
	assert.Equal(t, MaxSpan, windows[0].Duration())
	assert.True(t, windows[1].To.Equal(to))
}

func TestPartition_Properties(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("windows cover the range without gaps or overlaps", prop.ForAll(
		func(startSec, lengthSec, spanSec int64) bool {
			from := base.Add(time.Duration(startSec) * time.Second)
			to := from.Add(time.Duration(lengthSec) * time.Second)
			span := time.Duration(spanSec) * time.Second

			windows := Partition(from, to, span)
			if len(windows) == 0 {
				return false
			}
			if !windows[0].From.Equal(from) || !windows[len(windows)-1].To.Equal(to) {
				return false
			}
			for i, w := range windows {
				if !w.From.Before(w.To) {
					return false
				}
				if i > 0 && !windows[i-1].To.Equal(w.From) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(0, 365*24*3600),
		gen.Int64Range(1, 90*24*3600),
		gen.Int64Range(1, 14*24*3600),
	))

	properties.Property("only the last window may be shorter than span", prop.ForAll(
		func(lengthSec, spanSec int64) bool {
			from := base
			to := from.Add(time.Duration(lengthSec) * time.Second)
			span := time.Duration(spanSec) * time.Second

			windows := Partition(from, to, span)
			for i, w := range windows {
				if w.Duration() > span {
					return false
				}
				if i < len(windows)-1 && w.Duration() != span {
					return false
				}
			}
			return true
		},
		gen.Int64Range(1, 90*24*3600),
		gen.Int64Range(1, 14*24*3600),
	))

	properties.Property("empty or inverted ranges produce no windows", prop.ForAll(
		func(startSec, backSec int64) bool {
			to := base.Add(time.Duration(startSec) * time.Second)
			from := to.Add(time.Duration(backSec) * time.Second)
			return len(Partition(from, to, MaxSpan)) == 0
		},
		gen.Int64Range(0, 365*24*3600),
		gen.Int64Range(0, 30*24*3600),
	))

	properties.TestingRun(t)
}
