package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/otel"
	"github.com/kvk-connect/kvk-sync/internal/store"
	"github.com/kvk-connect/kvk-sync/internal/timewindow"
)

const (
	mutatieJobName = "mutaties"

	// DefaultLookback is the window start when no signals are stored yet
	DefaultLookback = 24 * time.Hour
	// settleDelay keeps the window end away from signals that may still be published
	settleDelay = time.Minute
)

// timestampLayouts are the ISO-8601 forms accepted for manual windows.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp, defaulting to UTC when no zone is given
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected ISO-8601", s)
}

// MutatieJob stores the mutation signals of a time window
type MutatieJob struct {
	signals  SignalSource
	last     store.SignaalReader
	writer   store.Writer[kvk.Signaal]
	pageSize int
	from     *time.Time
	to       *time.Time
	now      func() time.Time
	opts     jobOptions
}

// NewMutatieJob creates a MutatieJob in auto mode: each cycle continues from the newest
// stored signal, or one day back on an empty store, up to a minute ago
func NewMutatieJob(
	signals SignalSource,
	last store.SignaalReader,
	writer store.Writer[kvk.Signaal],
	pageSize int,
	opts ...JobOption,
) *MutatieJob {
	return &MutatieJob{
		signals:  signals,
		last:     last,
		writer:   writer,
		pageSize: pageSize,
		now:      time.Now,
		opts:     newJobOptions(opts),
	}
}

// WithWindow switches the job to manual mode with a fixed window
func (j *MutatieJob) WithWindow(from, to time.Time) (*MutatieJob, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid window: to (%s) is before from (%s)",
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	from, to = from.UTC(), to.UTC()
	j.from, j.to = &from, &to
	return j, nil
}

// WithClock overrides the clock used to resolve auto windows
func (j *MutatieJob) WithClock(now func() time.Time) *MutatieJob {
	j.now = now
	return j
}

// Name returns the job name
func (*MutatieJob) Name() string {
	return mutatieJobName
}

// Window resolves the time range the next cycle covers
func (j *MutatieJob) Window(ctx context.Context) (timewindow.Window, error) {
	if j.from != nil && j.to != nil {
		return timewindow.Window{From: *j.from, To: *j.to}, nil
	}

	now := j.now().UTC()
	from := now.Add(-DefaultLookback)
	last, ok, err := j.last.LastTimestamp(ctx)
	if err != nil {
		return timewindow.Window{}, err
	}
	if ok {
		from = last
	}
	return timewindow.Window{From: from, To: now.Add(-settleDelay)}, nil
}

// Run stores the signals of the resolved window, one partition at a time
func (j *MutatieJob) Run(ctx context.Context) error {
	window, err := j.Window(ctx)
	if err != nil {
		return err
	}

	windows := timewindow.Partition(window.From, window.To, timewindow.MaxSpan)
	slog.InfoContext(ctx, "Syncing mutation signals",
		"from", window.From, "to", window.To, "windows", len(windows))

	var stored int
	err = store.WithWriter(ctx, j.writer, func(w store.Writer[kvk.Signaal]) error {
		for _, win := range windows {
			n, err := j.syncWindow(ctx, w, win)
			stored += n
			if err != nil {
				return err
			}
		}
		return nil
	})
	j.opts.record(ctx, mutatieJobName, Result{Stored: stored})

	if err != nil {
		return fmt.Errorf("failed to sync signals: %w", err)
	}
	slog.InfoContext(ctx, "Stored mutation signals", "count", stored)
	return nil
}

func (j *MutatieJob) syncWindow(
	ctx context.Context, w store.Writer[kvk.Signaal], win timewindow.Window,
) (stored int, err error) {
	ctx, span := otel.StartWindow(ctx, j.opts.tracer, win.From, win.To)
	defer func() {
		span.SetAttributes(otel.AttrResultCount.Int(stored))
		otel.End(span, err)
	}()

	for signaal, err := range j.signals.Signals(ctx, win, j.pageSize) {
		if err != nil {
			return stored, err
		}
		if err := w.Add(ctx, signaal); err != nil {
			return stored, err
		}
		stored++
	}
	slog.DebugContext(ctx, "Synced signal window", "from", win.From, "to", win.To, "count", stored)
	return stored, nil
}

// SyncSignaal fetches a single signal and stores it
func (j *MutatieJob) SyncSignaal(ctx context.Context, signaalID string) (*kvk.Signaal, error) {
	signaal, err := j.signals.Signaal(ctx, signaalID)
	if err != nil {
		return nil, err
	}

	err = store.WithWriter(ctx, j.writer, func(w store.Writer[kvk.Signaal]) error {
		return w.Add(ctx, *signaal)
	})
	if err != nil {
		return nil, err
	}
	return signaal, nil
}
