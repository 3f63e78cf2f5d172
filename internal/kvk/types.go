// Package kvk defines the KvK registry domain types and maps API payloads onto them.
package kvk

import "time"

// GeenVestigingen is the vestigingsnummer stored for a company that has no
// establishments, so the company is not reported as missing on every cycle.
const GeenVestigingen = "000000000000"

// Signaal is a mutation signal emitted by the KvK mutation service.
type Signaal struct {
	ID               string    `json:"id"`
	KvKNummer        string    `json:"kvknummer"`
	Vestigingsnummer string    `json:"vestigingsnummer,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	SignaalType      string    `json:"signaal_type"`
}

// SignalenPage is one page of a mutation signal listing.
type SignalenPage struct {
	Pagina        int       `json:"pagina"`
	Aantal        int       `json:"aantal"`
	Totaal        int       `json:"totaal"`
	TotaalPaginas int       `json:"totaal_paginas"`
	Signalen      []Signaal `json:"signalen"`
	// Skipped counts the listed items that could not be mapped
	Skipped int `json:"skipped,omitempty"`
}

// Adres holds the address fields persisted for a profile.
type Adres struct {
	Type          string   `json:"adres_type"`
	Straatnaam    string   `json:"adres_straatnaam"`
	Toevoeging    string   `json:"adres_toevoeging"`
	Postcode      string   `json:"adres_postcode"`
	Plaats        string   `json:"adres_plaats"`
	Postbusnummer *int     `json:"postbusnummer"`
	GPSLatitude   *float64 `json:"gps_latitude"`
	GPSLongitude  *float64 `json:"gps_longitude"`
}

// BasisProfiel is the base profile of a company registered at the KvK.
type BasisProfiel struct {
	KvKNummer                   string     `json:"kvk_nummer"`
	Naam                        string     `json:"naam"`
	Hoofdactiviteit             string     `json:"hoofdactiviteit"`
	HoofdactiviteitOmschrijving string     `json:"hoofdactiviteit_omschrijving"`
	ActiviteitOverig            string     `json:"activiteit_overig"`
	Rechtsvorm                  string     `json:"rechtsvorm"`
	RechtsvormUitgebreid        string     `json:"rechtsvorm_uitgebreid"`
	EersteHandelsnaam           string     `json:"eerste_handelsnaam"`
	Vestigingsnummer            string     `json:"vestigingsnummer"`
	TotaalWerkzamePersonen      *int       `json:"totaal_werkzame_personen"`
	Websites                    string     `json:"websites"`
	RegistratieDatumAanvang     *time.Time `json:"registratie_datum_aanvang"`
	RegistratieDatumEinde       *time.Time `json:"registratie_datum_einde"`
	Adres
}

// Key returns the KvK number.
func (b BasisProfiel) Key() string { return b.KvKNummer }

// VestigingsProfiel is the profile of a single establishment.
type VestigingsProfiel struct {
	Vestigingsnummer            string     `json:"vestigingsnummer"`
	KvKNummer                   string     `json:"kvk_nummer"`
	RSIN                        string     `json:"rsin"`
	EersteHandelsnaam           string     `json:"eerste_handelsnaam"`
	IndHoofdvestiging           bool       `json:"ind_hoofdvestiging"`
	IndCommercieleVestiging     bool       `json:"ind_commerciele_vestiging"`
	VoltijdWerkzamePersonen     *int       `json:"voltijd_werkzame_personen"`
	DeeltijdWerkzamePersonen    *int       `json:"deeltijd_werkzame_personen"`
	TotaalWerkzamePersonen      *int       `json:"totaal_werkzame_personen"`
	Hoofdactiviteit             string     `json:"hoofdactiviteit"`
	HoofdactiviteitOmschrijving string     `json:"hoofdactiviteit_omschrijving"`
	ActiviteitOverig            string     `json:"activiteit_overig"`
	Websites                    string     `json:"websites"`
	RegistratieDatumAanvang     *time.Time `json:"registratie_datum_aanvang"`
	RegistratieDatumEinde       *time.Time `json:"registratie_datum_einde"`
	Adres
}

// Key returns the vestigingsnummer.
func (v VestigingsProfiel) Key() string { return v.Vestigingsnummer }

// Vestigingen lists the establishment numbers of a company.
type Vestigingen struct {
	KvKNummer         string   `json:"kvk_nummer"`
	Vestigingsnummers []string `json:"vestigingsnummers"`
}

// Key returns the KvK number.
func (v Vestigingen) Key() string { return v.KvKNummer }

// MutatieAbonnement is a subscription on the mutation service.
type MutatieAbonnement struct {
	ID           string     `json:"id"`
	ContractID   string     `json:"contract_id"`
	ContractNaam string     `json:"contract_naam"`
	StartDatum   *time.Time `json:"start_datum"`
	Actief       bool       `json:"actief"`
}
