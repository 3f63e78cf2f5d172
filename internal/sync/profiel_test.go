package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvk-connect/kvk-sync/database"
	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/store"
)

var (
	t0 = time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

func at(ts time.Time) store.Option {
	return store.WithClock(func() time.Time { return ts })
}

func seed[T any](t *testing.T, w store.Writer[T], recs ...T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.WithWriter(ctx, w, func(w store.Writer[T]) error {
		for _, rec := range recs {
			if err := w.Add(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}))
}

func storedNamen(t *testing.T, db *sql.DB) map[string]string {
	t.Helper()
	rows, err := db.Query(`SELECT kvk_nummer, naam FROM basisprofielen`)
	require.NoError(t, err)
	defer rows.Close()

	got := map[string]string{}
	for rows.Next() {
		var k, naam string
		require.NoError(t, rows.Scan(&k, &naam))
		got[k] = naam
	}
	require.NoError(t, rows.Err())
	return got
}

func basisProfielJob(db *sql.DB, records RecordFetcher, opts ...store.Option) *ProfielJob[kvk.BasisProfiel] {
	return NewBasisProfielJob(
		store.NewReader(db, store.BasisProfielGap), store.NewBasisProfielWriter(db, opts...), records)
}

func TestBasisProfielJob_UpdatesOutdatedThenMissing(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewBasisProfielWriter(db, at(t0)), kvk.BasisProfiel{KvKNummer: "11111111", Naam: "Oud"})
	seed(t, store.NewSignaalWriter(db),
		signaal("s1", "11111111", "", t1),
		signaal("s2", "22222222", "", t1),
		signaal("s3", "33333333", "", t1),
	)

	records := newFakeRecords()
	records.basis["11111111"] = kvk.BasisProfiel{KvKNummer: "11111111", Naam: "Nieuw"}
	records.basis["22222222"] = kvk.BasisProfiel{KvKNummer: "22222222", Naam: "Twee"}
	// 33333333 is unknown upstream

	job := basisProfielJob(db, records, at(t2))
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, map[string]string{"11111111": "Nieuw", "22222222": "Twee"}, storedNamen(t, db))
	calls := records.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "11111111", calls[0], "outdated records are refreshed first")
	assert.ElementsMatch(t, []string{"22222222", "33333333"}, calls[1:])

	// Refreshed profiles are no longer outdated
	outdated, err := store.NewReader(db, store.BasisProfielGap).CountOutdated(ctx)
	require.NoError(t, err)
	assert.Zero(t, outdated)
}

func TestBasisProfielJob_FetchErrorsAreSkipped(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewSignaalWriter(db), signaal("s1", "11111111", "", t1), signaal("s2", "22222222", "", t1))

	records := newFakeRecords()
	records.failing["11111111"] = true
	records.basis["22222222"] = kvk.BasisProfiel{KvKNummer: "22222222", Naam: "Twee"}

	res, err := basisProfielJob(db, records).UpdateMissing(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, Result{Stored: 1, Failed: 1}, res)
	assert.Equal(t, map[string]string{"22222222": "Twee"}, storedNamen(t, db))
}

func TestBasisProfielJob_StoreErrorAborts(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewSignaalWriter(db), signaal("s1", "11111111", "", t1))
	records := newFakeRecords()
	records.basis["11111111"] = kvk.BasisProfiel{KvKNummer: "11111111"}

	_, err := db.Exec(`DROP TABLE basisprofielen`)
	require.NoError(t, err)

	err = basisProfielJob(db, records).WithMode(ModeOutdated).Run(ctx)
	require.Error(t, err)
}

func TestBasisProfielJob_Modes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want []string
	}{
		{mode: ModeOutdated, want: []string{"11111111"}},
		{mode: ModeMissing, want: []string{"22222222"}},
		{mode: ModeAll, want: []string{"11111111", "22222222"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			t.Parallel()
			db := database.SetupTestSQLite(t)

			seed(t, store.NewBasisProfielWriter(db, at(t0)), kvk.BasisProfiel{KvKNummer: "11111111"})
			seed(t, store.NewSignaalWriter(db), signaal("s1", "11111111", "", t1), signaal("s2", "22222222", "", t1))

			records := newFakeRecords()
			job := basisProfielJob(db, records).WithMode(tt.mode)
			require.NoError(t, job.Run(context.Background()))
			assert.Equal(t, tt.want, records.Calls())
		})
	}
}

func TestProfielJob_LimitBoundsSample(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)

	seed(t, store.NewSignaalWriter(db),
		signaal("s1", "11111111", "", t1), signaal("s2", "22222222", "", t1), signaal("s3", "33333333", "", t1))

	records := newFakeRecords()
	require.NoError(t, basisProfielJob(db, records).WithLimit(2).WithMode(ModeMissing).Run(context.Background()))
	assert.Len(t, records.Calls(), 2)

	assert.Equal(t, "basisprofiel", basisProfielJob(db, records).Name())
}

func TestProfielJob_SyncKeys(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewBasisProfielWriter(db), kvk.BasisProfiel{KvKNummer: "11111111", Naam: "Bestaand"})
	records := newFakeRecords()
	records.basis["01234567"] = kvk.BasisProfiel{KvKNummer: "01234567", Naam: "Kort"}
	records.basis["11111111"] = kvk.BasisProfiel{KvKNummer: "11111111", Naam: "Nieuw"}

	job := basisProfielJob(db, records)
	res, err := job.SyncKeys(ctx, Keys([]string{"1234567", "11111111", "geen cijfers", "99999999"}), true)
	require.NoError(t, err)

	assert.Equal(t, Result{Stored: 1, NotFound: 1, Failed: 1}, res)
	assert.Equal(t, []string{"01234567", "99999999"}, records.Calls(), "existing keys are not fetched")
	assert.Equal(t, map[string]string{"01234567": "Kort", "11111111": "Bestaand"}, storedNamen(t, db))

	res, err = job.SyncKeys(ctx, Keys([]string{"11111111"}), false)
	require.NoError(t, err)
	assert.Equal(t, Result{Stored: 1}, res)
	assert.Equal(t, "Nieuw", storedNamen(t, db)["11111111"])
}

func TestVestigingenJob_StoresListsForMissingCompanies(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewBasisProfielWriter(db), kvk.BasisProfiel{KvKNummer: "11111111"}, kvk.BasisProfiel{KvKNummer: "22222222"})
	records := newFakeRecords()
	records.vestigingen["11111111"] = kvk.Vestigingen{KvKNummer: "11111111", Vestigingsnummers: []string{"000000000001"}}
	records.vestigingen["22222222"] = kvk.Vestigingen{KvKNummer: "22222222", Vestigingsnummers: []string{kvk.GeenVestigingen}}

	job := NewVestigingenJob(store.NewReader(db, store.VestigingenGap), store.NewVestigingenWriter(db), records)
	require.NoError(t, job.Run(ctx))

	missing, err := store.NewReader(db, store.VestigingenGap).CountMissing(ctx)
	require.NoError(t, err)
	assert.Zero(t, missing)

	// Only the real establishment is reported as a missing profile
	keys, err := store.NewReader(db, store.VestigingsProfielGap).SampleMissing(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"000000000001"}, keys)
}

func TestVestigingsProfielJob_ClosesGap(t *testing.T) {
	t.Parallel()
	db := database.SetupTestSQLite(t)
	ctx := context.Background()

	seed(t, store.NewBasisProfielWriter(db), kvk.BasisProfiel{KvKNummer: "11111111"})
	seed(t, store.NewVestigingenWriter(db),
		kvk.Vestigingen{KvKNummer: "11111111", Vestigingsnummers: []string{"000000000001", "000000000002"}})
	seed(t, store.NewVestigingsProfielWriter(db, at(t0)), kvk.VestigingsProfiel{Vestigingsnummer: "000000000002"})
	seed(t, store.NewSignaalWriter(db), signaal("s1", "11111111", "000000000002", t1))

	records := newFakeRecords()
	records.profielen["000000000001"] = kvk.VestigingsProfiel{Vestigingsnummer: "000000000001", KvKNummer: "11111111"}
	records.profielen["000000000002"] = kvk.VestigingsProfiel{Vestigingsnummer: "000000000002", KvKNummer: "11111111"}

	reader := store.NewReader(db, store.VestigingsProfielGap)
	job := NewVestigingsProfielJob(reader, store.NewVestigingsProfielWriter(db, at(t2)), records)
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, []string{"000000000002", "000000000001"}, records.Calls())
	missing, err := reader.CountMissing(ctx)
	require.NoError(t, err)
	outdated, err := reader.CountOutdated(ctx)
	require.NoError(t, err)
	assert.Zero(t, missing)
	assert.Zero(t, outdated)
}

func TestExpandVestigingen(t *testing.T) {
	t.Parallel()

	records := newFakeRecords()
	records.vestigingen["11111111"] = kvk.Vestigingen{
		KvKNummer: "11111111", Vestigingsnummers: []string{"000000000001", "000000000002"},
	}
	records.vestigingen["22222222"] = kvk.Vestigingen{
		KvKNummer: "22222222", Vestigingsnummers: []string{kvk.GeenVestigingen},
	}
	records.failing["33333333"] = true

	var got []string
	for key, err := range ExpandVestigingen(context.Background(), records,
		Keys([]string{"11111111", "22222222", "33333333", "44444444"})) {
		require.NoError(t, err)
		got = append(got, key)
	}
	assert.Equal(t, []string{"000000000001", "000000000002"}, got)
}
