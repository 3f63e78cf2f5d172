package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
)

// adresColumns are shared by both profile tables, in the order of adresValues
var adresColumns = []string{
	"adres_type", "adres_straatnaam", "adres_toevoeging", "adres_postcode", "adres_plaats",
	"postbusnummer", "gps_latitude", "gps_longitude",
}

var (
	signaalColumns = []string{"id", "kvknummer", "vestigingsnummer", "timestamp", "signaal_type", "last_updated"}

	basisProfielColumns = slices.Concat([]string{
		"kvk_nummer", "naam", "hoofdactiviteit", "hoofdactiviteit_omschrijving", "activiteit_overig",
		"rechtsvorm", "rechtsvorm_uitgebreid", "eerste_handelsnaam", "vestigingsnummer",
		"totaal_werkzame_personen", "websites", "registratie_datum_aanvang", "registratie_datum_einde",
	}, adresColumns, []string{"last_updated"})

	vestigingsProfielColumns = slices.Concat([]string{
		"vestigingsnummer", "kvk_nummer", "rsin", "eerste_handelsnaam", "ind_hoofdvestiging",
		"ind_commerciele_vestiging", "voltijd_werkzame_personen", "deeltijd_werkzame_personen",
		"totaal_werkzame_personen", "hoofdactiviteit", "hoofdactiviteit_omschrijving", "activiteit_overig",
		"websites", "registratie_datum_aanvang", "registratie_datum_einde",
	}, adresColumns, []string{"last_updated"})

	upsertSignaalSQL           = upsertSQL("signalen", []string{"id"}, signaalColumns)
	upsertBasisProfielSQL      = upsertSQL("basisprofielen", []string{"kvk_nummer"}, basisProfielColumns)
	upsertVestigingsProfielSQL = upsertSQL("vestigingsprofielen", []string{"vestigingsnummer"}, vestigingsProfielColumns)
	upsertVestigingSQL         = upsertSQL("vestigingen",
		[]string{"kvk_nummer", "vestigingsnummer"}, []string{"kvk_nummer", "vestigingsnummer", "last_updated"})
)

// upsertSQL builds an INSERT that overwrites every non-key column on conflict.
// Postgres and SQLite share this syntax.
func upsertSQL(table string, keys, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var updates []string
	for _, c := range columns {
		if !isKey[c] {
			updates = append(updates, c+" = excluded."+c)
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		strings.Join(keys, ", "), strings.Join(updates, ", "))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func adresValues(a kvk.Adres) []any {
	return []any{
		nullString(a.Type), nullString(a.Straatnaam), nullString(a.Toevoeging), nullString(a.Postcode),
		nullString(a.Plaats), a.Postbusnummer, a.GPSLatitude, a.GPSLongitude,
	}
}

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// NewSignaalWriter creates a Writer for mutation signals, keyed on the signal id
func NewSignaalWriter(db *sql.DB, opts ...Option) Writer[kvk.Signaal] {
	return newWriter(db, "signaal", upsertSignaal, opts...)
}

func upsertSignaal(ctx context.Context, tx *sql.Tx, s kvk.Signaal, now time.Time) error {
	_, err := tx.ExecContext(ctx, upsertSignaalSQL,
		s.ID, s.KvKNummer, nullString(s.Vestigingsnummer), s.Timestamp.UTC(), s.SignaalType, now)
	return err
}

// NewBasisProfielWriter creates a Writer for base profiles, keyed on the KvK number
func NewBasisProfielWriter(db *sql.DB, opts ...Option) Writer[kvk.BasisProfiel] {
	return newWriter(db, "basisprofiel", upsertBasisProfiel, opts...)
}

func upsertBasisProfiel(ctx context.Context, tx *sql.Tx, b kvk.BasisProfiel, now time.Time) error {
	args := []any{
		b.KvKNummer, nullString(b.Naam), nullString(b.Hoofdactiviteit), nullString(b.HoofdactiviteitOmschrijving),
		nullString(b.ActiviteitOverig), nullString(b.Rechtsvorm), nullString(b.RechtsvormUitgebreid),
		nullString(b.EersteHandelsnaam), nullString(b.Vestigingsnummer), b.TotaalWerkzamePersonen,
		nullString(b.Websites), utcDate(b.RegistratieDatumAanvang), utcDate(b.RegistratieDatumEinde),
	}
	args = append(append(args, adresValues(b.Adres)...), now)
	_, err := tx.ExecContext(ctx, upsertBasisProfielSQL, args...)
	return err
}

// NewVestigingsProfielWriter creates a Writer for establishment profiles, keyed on the vestigingsnummer
func NewVestigingsProfielWriter(db *sql.DB, opts ...Option) Writer[kvk.VestigingsProfiel] {
	return newWriter(db, "vestigingsprofiel", upsertVestigingsProfiel, opts...)
}

func upsertVestigingsProfiel(ctx context.Context, tx *sql.Tx, v kvk.VestigingsProfiel, now time.Time) error {
	args := []any{
		v.Vestigingsnummer, nullString(v.KvKNummer), nullString(v.RSIN), nullString(v.EersteHandelsnaam),
		v.IndHoofdvestiging, v.IndCommercieleVestiging, v.VoltijdWerkzamePersonen, v.DeeltijdWerkzamePersonen,
		v.TotaalWerkzamePersonen, nullString(v.Hoofdactiviteit), nullString(v.HoofdactiviteitOmschrijving),
		nullString(v.ActiviteitOverig), nullString(v.Websites),
		utcDate(v.RegistratieDatumAanvang), utcDate(v.RegistratieDatumEinde),
	}
	args = append(append(args, adresValues(v.Adres)...), now)
	_, err := tx.ExecContext(ctx, upsertVestigingsProfielSQL, args...)
	return err
}

// NewVestigingenWriter creates a Writer for establishment lists. Each list replaces the
// stored pairs of its company; the base profile has to exist already.
func NewVestigingenWriter(db *sql.DB, opts ...Option) Writer[kvk.Vestigingen] {
	return newWriter(db, "vestigingen", upsertVestigingen, opts...)
}

func upsertVestigingen(ctx context.Context, tx *sql.Tx, v kvk.Vestigingen, now time.Time) error {
	for _, nummer := range v.Vestigingsnummers {
		if _, err := tx.ExecContext(ctx, upsertVestigingSQL, v.KvKNummer, nummer, now); err != nil {
			return err
		}
	}

	query := "DELETE FROM vestigingen WHERE kvk_nummer = $1"
	args := []any{v.KvKNummer}
	if len(v.Vestigingsnummers) > 0 {
		placeholders := make([]string, len(v.Vestigingsnummers))
		for i, nummer := range v.Vestigingsnummers {
			placeholders[i] = fmt.Sprintf("$%d", i+2)
			args = append(args, nummer)
		}
		query += " AND vestigingsnummer NOT IN (" + strings.Join(placeholders, ", ") + ")"
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
