package kvk

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kvk-connect/kvk-sync/internal/normalize"
)

// ErrMalformedPayload is returned when an API payload is not valid JSON or lacks its identifying fields.
var ErrMalformedPayload = errors.New("malformed payload")

// ParseBasisProfiel maps a basisprofiel API response onto a BasisProfiel.
func ParseBasisProfiel(data []byte) (*BasisProfiel, error) {
	root, err := parseRoot(data, "kvkNummer")
	if err != nil {
		return nil, err
	}

	hoofdvestiging := root.Get("_embedded.hoofdvestiging")
	eigenaar := root.Get("_embedded.eigenaar")
	hoofd, overig := activiteiten(root.Get("sbiActiviteiten"))

	return &BasisProfiel{
		KvKNummer:                   root.Get("kvkNummer").String(),
		Naam:                        root.Get("naam").String(),
		Hoofdactiviteit:             hoofd.Get("sbiCode").String(),
		HoofdactiviteitOmschrijving: hoofd.Get("sbiOmschrijving").String(),
		ActiviteitOverig:            overig,
		Rechtsvorm:                  eigenaar.Get("rechtsvorm").String(),
		RechtsvormUitgebreid:        eigenaar.Get("uitgebreideRechtsvorm").String(),
		EersteHandelsnaam:           eersteHandelsnaam(root),
		Vestigingsnummer:            hoofdvestiging.Get("vestigingsnummer").String(),
		TotaalWerkzamePersonen:      optionalInt(root.Get("totaalWerkzamePersonen")),
		Websites:                    joinStrings(hoofdvestiging.Get("websites")),
		RegistratieDatumAanvang:     normalize.ParseDate(root.Get("materieleRegistratie.datumAanvang").String()),
		RegistratieDatumEinde:       normalize.ParseDate(root.Get("materieleRegistratie.datumEinde").String()),
		Adres:                       adres(hoofdvestiging.Get("adressen")),
	}, nil
}

// ParseVestigingsProfiel maps a vestigingsprofiel API response onto a VestigingsProfiel.
func ParseVestigingsProfiel(data []byte) (*VestigingsProfiel, error) {
	root, err := parseRoot(data, "vestigingsnummer")
	if err != nil {
		return nil, err
	}

	hoofd, overig := activiteiten(root.Get("sbiActiviteiten"))

	return &VestigingsProfiel{
		Vestigingsnummer:            root.Get("vestigingsnummer").String(),
		KvKNummer:                   root.Get("kvkNummer").String(),
		RSIN:                        root.Get("rsin").String(),
		EersteHandelsnaam:           eersteHandelsnaam(root),
		IndHoofdvestiging:           indicator(root.Get("indHoofdvestiging")),
		IndCommercieleVestiging:     indicator(root.Get("indCommercieleVestiging")),
		VoltijdWerkzamePersonen:     optionalInt(root.Get("voltijdWerkzamePersonen")),
		DeeltijdWerkzamePersonen:    optionalInt(root.Get("deeltijdWerkzamePersonen")),
		TotaalWerkzamePersonen:      optionalInt(root.Get("totaalWerkzamePersonen")),
		Hoofdactiviteit:             hoofd.Get("sbiCode").String(),
		HoofdactiviteitOmschrijving: hoofd.Get("sbiOmschrijving").String(),
		ActiviteitOverig:            overig,
		Websites:                    joinStrings(root.Get("websites")),
		RegistratieDatumAanvang:     normalize.ParseDate(root.Get("materieleRegistratie.datumAanvang").String()),
		RegistratieDatumEinde:       normalize.ParseDate(root.Get("materieleRegistratie.datumEinde").String()),
		Adres:                       adres(root.Get("adressen")),
	}, nil
}

// ParseVestigingen maps a vestigingen listing onto Vestigingen. A company without
// establishments gets the GeenVestigingen placeholder.
func ParseVestigingen(data []byte) (*Vestigingen, error) {
	root, err := parseRoot(data, "kvkNummer")
	if err != nil {
		return nil, err
	}

	var nummers []string
	for _, v := range root.Get("vestigingen").Array() {
		if nr := v.Get("vestigingsnummer").String(); nr != "" {
			nummers = append(nummers, nr)
		}
	}
	if len(nummers) == 0 {
		nummers = []string{GeenVestigingen}
	}

	return &Vestigingen{
		KvKNummer:         root.Get("kvkNummer").String(),
		Vestigingsnummers: nummers,
	}, nil
}

// ParseSignalenPage maps one page of the mutation signal listing.
func ParseSignalenPage(data []byte) (*SignalenPage, error) {
	root, err := parseRoot(data, "signalen")
	if err != nil {
		return nil, err
	}
	if !root.Get("signalen").IsArray() {
		return nil, fmt.Errorf("%w: signalen is not a list", ErrMalformedPayload)
	}

	page := &SignalenPage{
		Pagina:        int(root.Get("pagina").Int()),
		Aantal:        int(root.Get("aantal").Int()),
		Totaal:        int(root.Get("totaal").Int()),
		TotaalPaginas: int(root.Get("totaalPaginas").Int()),
	}
	for i, item := range root.Get("signalen").Array() {
		signaal, err := signaal(item)
		if err != nil {
			slog.Warn("Skipping malformed signal",
				"page", page.Pagina, "index", i, "id", item.Get("id").String(), "error", err)
			page.Skipped++
			continue
		}
		page.Signalen = append(page.Signalen, *signaal)
	}
	return page, nil
}

// ParseSignaal maps a single mutation signal.
func ParseSignaal(data []byte) (*Signaal, error) {
	root, err := parseRoot(data, "id")
	if err != nil {
		return nil, err
	}
	return signaal(root)
}

// ParseAbonnementen maps the subscription listing of the mutation service.
func ParseAbonnementen(data []byte) ([]MutatieAbonnement, error) {
	root, err := parseRoot(data, "abonnementen")
	if err != nil {
		return nil, err
	}

	var abonnementen []MutatieAbonnement
	for _, a := range root.Get("abonnementen").Array() {
		abonnementen = append(abonnementen, MutatieAbonnement{
			ID:           a.Get("id").String(),
			ContractID:   a.Get("contract.id").String(),
			ContractNaam: a.Get("contract.naam").String(),
			StartDatum:   parseTimestamp(a.Get("startDatum").String()),
			Actief:       a.Get("actief").Bool(),
		})
	}
	return abonnementen, nil
}

func parseRoot(data []byte, required string) (gjson.Result, error) {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() || !root.Get(required).Exists() {
		return gjson.Result{}, fmt.Errorf("%w: missing %s", ErrMalformedPayload, required)
	}
	return root, nil
}

func signaal(item gjson.Result) (*Signaal, error) {
	ts := parseTimestamp(item.Get("timestamp").String())
	if ts == nil {
		return nil, fmt.Errorf("%w: signal %q has no valid timestamp", ErrMalformedPayload, item.Get("id").String())
	}

	kvkNummer := item.Get("kvknummer").String()
	if kvkNummer == "" {
		kvkNummer = item.Get("kvkNummer").String()
	}

	return &Signaal{
		ID:               item.Get("id").String(),
		KvKNummer:        kvkNummer,
		Vestigingsnummer: item.Get("vestigingsnummer").String(),
		Timestamp:        *ts,
		SignaalType:      item.Get("signaalType").String(),
	}, nil
}

// parseTimestamp accepts RFC 3339 timestamps and plain dates, always returning UTC.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// activiteiten returns the main SBI activity and the codes of all other activities.
func activiteiten(list gjson.Result) (gjson.Result, string) {
	var hoofd gjson.Result
	var overig []string
	for _, a := range list.Array() {
		if !hoofd.Exists() && indicator(a.Get("indHoofdactiviteit")) {
			hoofd = a
			continue
		}
		if code := a.Get("sbiCode").String(); code != "" {
			overig = append(overig, code)
		}
	}
	return hoofd, strings.Join(overig, ",")
}

func eersteHandelsnaam(root gjson.Result) string {
	if naam := root.Get("eersteHandelsnaam").String(); naam != "" {
		return naam
	}
	best := int64(-1)
	var naam string
	for _, h := range root.Get("handelsnamen").Array() {
		volgorde := h.Get("volgorde").Int()
		if best == -1 || volgorde < best {
			best = volgorde
			naam = h.Get("naam").String()
		}
	}
	return naam
}

// adres picks the visiting address, falling back to the first listed address.
func adres(list gjson.Result) Adres {
	adressen := list.Array()
	if len(adressen) == 0 {
		return Adres{}
	}
	chosen := adressen[0]
	for _, a := range adressen {
		if a.Get("type").String() == "bezoekadres" {
			chosen = a
			break
		}
	}

	toevoeging := strings.TrimSpace(chosen.Get("huisnummer").String() + chosen.Get("huisletter").String() +
		" " + chosen.Get("huisnummerToevoeging").String())

	return Adres{
		Type:          chosen.Get("type").String(),
		Straatnaam:    chosen.Get("straatnaam").String(),
		Toevoeging:    toevoeging,
		Postcode:      chosen.Get("postcode").String(),
		Plaats:        chosen.Get("plaats").String(),
		Postbusnummer: optionalInt(chosen.Get("postbusnummer")),
		GPSLatitude:   optionalFloat(chosen.Get("geoData.gpsLatitude")),
		GPSLongitude:  optionalFloat(chosen.Get("geoData.gpsLongitude")),
	}
}

func indicator(r gjson.Result) bool {
	if r.Type == gjson.True || r.Type == gjson.False {
		return r.Bool()
	}
	return strings.EqualFold(r.String(), "ja")
}

func joinStrings(list gjson.Result) string {
	var values []string
	for _, v := range list.Array() {
		if s := v.String(); s != "" {
			values = append(values, s)
		}
	}
	return strings.Join(values, ",")
}

func optionalInt(r gjson.Result) *int {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := int(r.Int())
	return &v
}

func optionalFloat(r gjson.Result) *float64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Float()
	return &v
}
