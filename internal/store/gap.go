// Package store persists KvK records and answers which of them are missing or outdated.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
)

// Source is a set of rows whose keys should have a matching target record
type Source struct {
	Table string
	Key   string
	// Timestamp is compared against the target's last_updated; unused for missing checks
	Timestamp string
	// Filter is an optional SQL condition on the source rows, aliased as s
	Filter string
}

// Gap pairs driving sources with the record table they should be reflected in
type Gap struct {
	Name      string
	Missing   Source
	Outdated  Source
	Target    string
	TargetKey string
}

// Predefined gaps, one per record type
var (
	BasisProfielGap = Gap{
		Name:      "basisprofiel",
		Missing:   Source{Table: "signalen", Key: "kvknummer", Timestamp: "timestamp"},
		Outdated:  Source{Table: "signalen", Key: "kvknummer", Timestamp: "timestamp", Filter: "s.vestigingsnummer IS NULL"},
		Target:    "basisprofielen",
		TargetKey: "kvk_nummer",
	}

	VestigingenGap = Gap{
		Name:      "vestigingen",
		Missing:   Source{Table: "basisprofielen", Key: "kvk_nummer", Timestamp: "last_updated"},
		Outdated:  Source{Table: "basisprofielen", Key: "kvk_nummer", Timestamp: "last_updated"},
		Target:    "vestigingen",
		TargetKey: "kvk_nummer",
	}

	VestigingsProfielGap = Gap{
		Name: "vestigingsprofiel",
		Missing: Source{
			Table:  "vestigingen",
			Key:    "vestigingsnummer",
			Filter: "s.vestigingsnummer <> '" + kvk.GeenVestigingen + "'",
		},
		Outdated: Source{
			Table:     "signalen",
			Key:       "vestigingsnummer",
			Timestamp: "timestamp",
			Filter:    "s.vestigingsnummer IS NOT NULL",
		},
		Target:    "vestigingsprofielen",
		TargetKey: "vestigingsnummer",
	}
)

// Gaps returns all predefined gaps in sync order
func Gaps() []Gap {
	return []Gap{BasisProfielGap, VestigingenGap, VestigingsProfielGap}
}

// Reader answers read-only questions about a gap
type Reader interface {
	// CountMissing returns the number of distinct source keys without a target record
	CountMissing(ctx context.Context) (int, error)
	// SampleMissing returns up to limit randomly chosen missing keys
	SampleMissing(ctx context.Context, limit int) ([]string, error)
	// SampleOutdated returns up to limit keys whose source changed after the record was written
	SampleOutdated(ctx context.Context, limit int) ([]string, error)
	// CountOutdated returns the number of outdated keys
	CountOutdated(ctx context.Context) (int, error)
	// Exists reports whether a target record exists for key
	Exists(ctx context.Context, key string) (bool, error)
}

type sqlReader struct {
	db  *sql.DB
	gap Gap
}

// NewReader creates a Reader for gap
func NewReader(db *sql.DB, gap Gap) Reader {
	return &sqlReader{db: db, gap: gap}
}

func where(filter string, cond string) string {
	if filter == "" {
		return "WHERE " + cond
	}
	return "WHERE " + filter + " AND " + cond
}

func (r *sqlReader) notExists() string {
	return fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s t WHERE t.%s = s.%s)",
		r.gap.Target, r.gap.TargetKey, r.gap.Missing.Key)
}

func (r *sqlReader) outdatedFrom() string {
	src := r.gap.Outdated
	return fmt.Sprintf("FROM %s s JOIN %s t ON t.%s = s.%s %s",
		src.Table, r.gap.Target, r.gap.TargetKey, src.Key,
		where(src.Filter, fmt.Sprintf("s.%s > t.last_updated", src.Timestamp)))
}

func (r *sqlReader) CountMissing(ctx context.Context) (int, error) {
	src := r.gap.Missing
	query := fmt.Sprintf("SELECT COUNT(DISTINCT s.%s) FROM %s s %s",
		src.Key, src.Table, where(src.Filter, r.notExists()))
	return r.count(ctx, "missing", query)
}

func (r *sqlReader) SampleMissing(ctx context.Context, limit int) ([]string, error) {
	src := r.gap.Missing
	// DISTINCT lives in a subquery so the random order applies to unique keys
	query := fmt.Sprintf(
		"SELECT s.%[1]s FROM (SELECT DISTINCT s.%[1]s FROM %[2]s s %[3]s) s ORDER BY RANDOM() LIMIT $1",
		src.Key, src.Table, where(src.Filter, r.notExists()))
	return r.keys(ctx, "missing", query, limit)
}

func (r *sqlReader) SampleOutdated(ctx context.Context, limit int) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT s.%[1]s %[2]s ORDER BY s.%[1]s LIMIT $1",
		r.gap.Outdated.Key, r.outdatedFrom())
	return r.keys(ctx, "outdated", query, limit)
}

func (r *sqlReader) CountOutdated(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(DISTINCT s.%s) %s", r.gap.Outdated.Key, r.outdatedFrom())
	return r.count(ctx, "outdated", query)
}

func (r *sqlReader) Exists(ctx context.Context, key string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = $1 LIMIT 1", r.gap.Target, r.gap.TargetKey)

	var one int
	err := r.db.QueryRowContext(ctx, query, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w", r.gap.Name, key, err)
	}
	return true, nil
}

func (r *sqlReader) count(ctx context.Context, kind, query string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s %s records: %w", kind, r.gap.Name, err)
	}
	return n, nil
}

func (r *sqlReader) keys(ctx context.Context, kind, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s %s records: %w", kind, r.gap.Name, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan %s key: %w", r.gap.Name, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s %s records: %w", kind, r.gap.Name, err)
	}
	return keys, nil
}

// SignaalReader reads persisted mutation signals
type SignaalReader interface {
	// LastTimestamp returns the newest signal timestamp; ok is false when no signals are stored
	LastTimestamp(ctx context.Context) (ts time.Time, ok bool, err error)
}

type sqlSignaalReader struct {
	db *sql.DB
}

// NewSignaalReader creates a SignaalReader
func NewSignaalReader(db *sql.DB) SignaalReader {
	return &sqlSignaalReader{db: db}
}

func (r *sqlSignaalReader) LastTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts time.Time
	err := r.db.QueryRowContext(ctx, "SELECT s.timestamp FROM signalen s ORDER BY s.timestamp DESC LIMIT 1").Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read last signal timestamp: %w", err)
	}
	return ts.UTC(), true, nil
}
