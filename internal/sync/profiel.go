package sync

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/normalize"
	"github.com/kvk-connect/kvk-sync/internal/store"
)

// Mode selects which part of a gap a ProfielJob closes
type Mode int

const (
	// ModeAll updates outdated records first and then fetches missing ones
	ModeAll Mode = iota
	// ModeOutdated only refreshes records that changed upstream
	ModeOutdated
	// ModeMissing only fetches records that are not stored yet
	ModeMissing
)

// DefaultLimit is the number of keys a ProfielJob handles per gap and cycle
const DefaultLimit = 100

// ProfielJob closes a store.Gap for records of type T
type ProfielJob[T any] struct {
	name      string
	reader    store.Reader
	writer    store.Writer[T]
	fetch     fetchFunc[T]
	normalize func(string) (string, error)
	mode      Mode
	limit     int
	opts      jobOptions
}

func newProfielJob[T any](
	gap store.Gap,
	reader store.Reader,
	writer store.Writer[T],
	fetch fetchFunc[T],
	normalizeKey func(string) (string, error),
	opts []JobOption,
) *ProfielJob[T] {
	return &ProfielJob[T]{
		name:      gap.Name,
		reader:    reader,
		writer:    writer,
		fetch:     fetch,
		normalize: normalizeKey,
		limit:     DefaultLimit,
		opts:      newJobOptions(opts),
	}
}

// NewBasisProfielJob creates the job that keeps base profiles in step with the signals
func NewBasisProfielJob(
	reader store.Reader, writer store.Writer[kvk.BasisProfiel], records RecordFetcher, opts ...JobOption,
) *ProfielJob[kvk.BasisProfiel] {
	return newProfielJob(store.BasisProfielGap, reader, writer, records.BasisProfiel, normalize.KvKNummer, opts)
}

// NewVestigingenJob creates the job that keeps establishment lists in step with the base profiles
func NewVestigingenJob(
	reader store.Reader, writer store.Writer[kvk.Vestigingen], records RecordFetcher, opts ...JobOption,
) *ProfielJob[kvk.Vestigingen] {
	return newProfielJob(store.VestigingenGap, reader, writer, records.Vestigingen, normalize.KvKNummer, opts)
}

// NewVestigingsProfielJob creates the job that keeps establishment profiles in step with
// the establishment lists and signals
func NewVestigingsProfielJob(
	reader store.Reader, writer store.Writer[kvk.VestigingsProfiel], records RecordFetcher, opts ...JobOption,
) *ProfielJob[kvk.VestigingsProfiel] {
	return newProfielJob(
		store.VestigingsProfielGap, reader, writer, records.VestigingsProfiel, normalize.Vestigingsnummer, opts)
}

// WithMode restricts the job to part of its gap
func (j *ProfielJob[T]) WithMode(mode Mode) *ProfielJob[T] {
	j.mode = mode
	return j
}

// WithLimit sets the number of keys sampled per gap and cycle. Values below 1 are ignored.
func (j *ProfielJob[T]) WithLimit(limit int) *ProfielJob[T] {
	if limit >= 1 {
		j.limit = limit
	}
	return j
}

// Name returns the record type the job syncs
func (j *ProfielJob[T]) Name() string {
	return j.name
}

// Run updates outdated and fetches missing records according to the job mode.
// Each part commits in its own writer scope.
func (j *ProfielJob[T]) Run(ctx context.Context) error {
	var total Result
	defer func() {
		slog.InfoContext(ctx, "Sync job finished", "job", j.name,
			"stored", total.Stored, "not_found", total.NotFound, "failed", total.Failed)
	}()

	if j.mode != ModeMissing {
		res, err := j.UpdateOutdated(ctx, j.limit)
		total.Add(res)
		if err != nil {
			return err
		}
	}
	if j.mode != ModeOutdated {
		res, err := j.UpdateMissing(ctx, j.limit)
		total.Add(res)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateOutdated refreshes up to limit outdated records
func (j *ProfielJob[T]) UpdateOutdated(ctx context.Context, limit int) (Result, error) {
	return j.withLimit(limit).runSample(ctx, "outdated", j.reader.SampleOutdated)
}

// UpdateMissing fetches up to limit missing records
func (j *ProfielJob[T]) UpdateMissing(ctx context.Context, limit int) (Result, error) {
	return j.withLimit(limit).runSample(ctx, "missing", j.reader.SampleMissing)
}

func (j *ProfielJob[T]) withLimit(limit int) *ProfielJob[T] {
	c := *j
	return c.WithLimit(limit)
}

func (j *ProfielJob[T]) runSample(
	ctx context.Context, kind string, sample func(context.Context, int) ([]string, error),
) (res Result, err error) {
	err = store.WithWriter(ctx, j.writer, func(w store.Writer[T]) error {
		res, err = j.sample(ctx, w, kind, sample)
		return err
	})
	return res, err
}

func (j *ProfielJob[T]) sample(
	ctx context.Context, w store.Writer[T], kind string, sample func(context.Context, int) ([]string, error),
) (Result, error) {
	keys, err := sample(ctx, j.limit)
	if err != nil {
		return Result{}, err
	}
	slog.InfoContext(ctx, "Syncing records", "job", j.name, "kind", kind, "count", len(keys))
	if len(keys) == 0 {
		return Result{}, nil
	}
	return syncKeys(ctx, j.name, j.opts, Keys(keys), j.fetch, w)
}

// SyncKeys fetches and stores the records of explicitly given keys.
// Keys are normalized first; keys that cannot be normalized count as failed.
// With skipExisting, keys that already have a record are not fetched again.
func (j *ProfielJob[T]) SyncKeys(ctx context.Context, keys iter.Seq2[string, error], skipExisting bool) (Result, error) {
	var res Result
	err := store.WithWriter(ctx, j.writer, func(w store.Writer[T]) error {
		var skipped int
		normalized := func(yield func(string, error) bool) {
			for raw, err := range keys {
				if err != nil {
					yield("", err)
					return
				}
				key, err := j.normalize(raw)
				if err != nil {
					slog.WarnContext(ctx, "Skipping invalid key", "job", j.name, "key", raw, "error", err)
					res.Failed++
					continue
				}
				if skipExisting {
					exists, err := j.reader.Exists(ctx, key)
					if err != nil {
						yield("", err)
						return
					}
					if exists {
						skipped++
						continue
					}
				}
				if !yield(key, nil) {
					return
				}
			}
		}

		synced, err := syncKeys(ctx, j.name, j.opts, normalized, j.fetch, w)
		res.Add(synced)
		if skipped > 0 {
			slog.InfoContext(ctx, "Skipped keys that are already stored", "job", j.name, "count", skipped)
		}
		return err
	})
	return res, err
}

// ExpandVestigingen yields the vestigingsnummers of every company in kvkNummers.
// Companies that cannot be fetched or do not exist are logged and skipped, as is
// the placeholder stored for companies without establishments.
func ExpandVestigingen(
	ctx context.Context, records RecordFetcher, kvkNummers iter.Seq2[string, error],
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for kvkNummer, err := range kvkNummers {
			if err != nil {
				yield("", err)
				return
			}

			vestigingen, err := records.Vestigingen(ctx, kvkNummer)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield("", ctxErr)
					return
				}
				slog.WarnContext(ctx, "Failed to fetch vestigingen", "kvk_nummer", kvkNummer, "error", err)
				continue
			}
			if vestigingen == nil {
				slog.InfoContext(ctx, "No vestigingen found", "kvk_nummer", kvkNummer)
				continue
			}

			for _, nummer := range vestigingen.Vestigingsnummers {
				if nummer == kvk.GeenVestigingen {
					continue
				}
				if !yield(nummer, nil) {
					return
				}
			}
		}
	}
}

// String returns the mode as used on the command line
func (m Mode) String() string {
	switch m {
	case ModeOutdated:
		return "outdated"
	case ModeMissing:
		return "missing"
	case ModeAll:
		return "all"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}
