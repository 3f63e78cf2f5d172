package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultBatchSize commits every record so concurrent processes see progress immediately
const DefaultBatchSize = 1

// ErrSessionNotInitialized is returned when a writer is used outside Open and Close
var ErrSessionNotInitialized = errors.New("session not initialized")

// Writer persists records of type T in batched transactions.
//
// A Writer is a scoped resource: Open begins a transaction, Add upserts records and
// commits whenever the batch is full, and Close commits or rolls back the remainder.
type Writer[T any] interface {
	Open(ctx context.Context) error
	Add(ctx context.Context, rec T) error
	// Flush commits the pending records and starts a new transaction
	Flush(ctx context.Context) error
	// Close commits pending records when cause is nil and rolls them back otherwise
	Close(ctx context.Context, cause error) error
	// Count returns the number of records added since Open
	Count() int
}

// upsertFunc writes a single record inside tx, stamping it with now
type upsertFunc[T any] func(ctx context.Context, tx *sql.Tx, rec T, now time.Time) error

// Option configures a Writer
type Option func(*writerOptions)

type writerOptions struct {
	batchSize int
	now       func() time.Time
}

// WithBatchSize sets the number of records per transaction. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(o *writerOptions) {
		if n >= 1 {
			o.batchSize = n
		}
	}
}

// WithClock overrides the clock used to stamp last_updated
func WithClock(now func() time.Time) Option {
	return func(o *writerOptions) {
		o.now = now
	}
}

type batchWriter[T any] struct {
	db      *sql.DB
	name    string
	upsert  upsertFunc[T]
	opts    writerOptions
	tx      *sql.Tx
	pending int
	count   int
}

func newWriter[T any](db *sql.DB, name string, upsert upsertFunc[T], opts ...Option) *batchWriter[T] {
	o := writerOptions{batchSize: DefaultBatchSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &batchWriter[T]{db: db, name: name, upsert: upsert, opts: o}
}

func (w *batchWriter[T]) Open(ctx context.Context) error {
	if w.tx != nil {
		return fmt.Errorf("%s writer is already open", w.name)
	}
	if err := w.begin(ctx); err != nil {
		return err
	}
	w.count = 0
	return nil
}

func (w *batchWriter[T]) begin(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s transaction: %w", w.name, err)
	}
	w.tx = tx
	w.pending = 0
	return nil
}

func (w *batchWriter[T]) Add(ctx context.Context, rec T) error {
	if w.tx == nil {
		return ErrSessionNotInitialized
	}
	if err := w.upsert(ctx, w.tx, rec, w.opts.now().UTC()); err != nil {
		return fmt.Errorf("failed to store %s: %w", w.name, err)
	}
	w.pending++
	w.count++

	if w.pending >= w.opts.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

func (w *batchWriter[T]) Flush(ctx context.Context) error {
	if w.tx == nil {
		return ErrSessionNotInitialized
	}
	if err := w.commit(); err != nil {
		return err
	}
	return w.begin(ctx)
}

func (w *batchWriter[T]) commit() error {
	tx, pending := w.tx, w.pending
	w.tx = nil
	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("Rollback after failed commit failed", "writer", w.name, "error", rbErr)
		}
		return fmt.Errorf("failed to commit %d %s records: %w", pending, w.name, err)
	}
	slog.Debug("Committed batch", "writer", w.name, "records", pending)
	return nil
}

func (w *batchWriter[T]) Close(_ context.Context, cause error) error {
	if w.tx == nil {
		return nil
	}
	if cause == nil {
		return w.commit()
	}

	tx, pending := w.tx, w.pending
	w.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back %s: %w", w.name, err)
	}
	if pending > 0 {
		slog.Warn("Rolled back pending records", "writer", w.name, "records", pending, "cause", cause)
	}
	return nil
}

func (w *batchWriter[T]) Count() int {
	return w.count
}

// WithWriter opens w, runs fn and closes w with the outcome of fn.
// A panic in fn rolls back pending records before it is re-raised.
func WithWriter[T any](ctx context.Context, w Writer[T], fn func(Writer[T]) error) (err error) {
	if err := w.Open(ctx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = w.Close(ctx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		if closeErr := w.Close(ctx, err); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(w)
}
