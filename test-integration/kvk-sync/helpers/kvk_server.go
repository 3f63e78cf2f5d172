// Package helpers provides fixtures for the kvk-sync integration tests.
package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// APIKey is the key the fake API accepts
const APIKey = "integration-key"

// Signaal is a mutation signal served by the fake API
type Signaal struct {
	ID               string
	KvKNummer        string
	Vestigingsnummer string
	Timestamp        time.Time
}

// Company is a registered company served by the fake API
type Company struct {
	KvKNummer   string
	Naam        string
	Vestigingen []string
}

// KvKServer is an in-process stand-in for the KvK REST API
type KvKServer struct {
	*httptest.Server

	AbonnementID string

	mu        sync.Mutex
	signalen  []Signaal
	companies map[string]Company
	requests  map[string]int
}

// NewKvKServer starts a fake API serving the given signals and companies
func NewKvKServer(abonnementID string, signalen []Signaal, companies ...Company) *KvKServer {
	s := &KvKServer{
		AbonnementID: abonnementID,
		signalen:     signalen,
		companies:    map[string]Company{},
		requests:     map[string]int{},
	}
	for _, c := range companies {
		s.companies[c.KvKNummer] = c
	}

	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Get("/v1/abonnementen", s.abonnementen)
	r.Get("/v1/abonnementen/{id}", s.signalenPage)
	r.Get("/v1/abonnementen/{id}/signalen/{signaalID}", s.signaal)
	r.Get("/v1/basisprofielen/{kvk}", s.basisprofiel)
	r.Get("/v1/basisprofielen/{kvk}/vestigingen", s.vestigingen)
	r.Get("/v1/vestigingsprofielen/{nummer}", s.vestigingsprofiel)

	s.Server = httptest.NewServer(r)
	return s
}

// Requests returns how often the route pattern was requested
func (s *KvKServer) Requests(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[pattern]
}

func (s *KvKServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
		s.mu.Lock()
		s.requests[chi.RouteContext(r.Context()).RoutePattern()]++
		s.mu.Unlock()
	})
}

func (s *KvKServer) abonnementen(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"klantId": "000000001",
		"abonnementen": []map[string]any{{
			"id":         s.AbonnementID,
			"contract":   map[string]any{"id": "1234", "naam": "Mutatieservice KvK-nummers"},
			"startDatum": "2023-02-08T00:00:00Z",
			"actief":     true,
		}},
	})
}

func (s *KvKServer) signalenPage(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "id") != s.AbonnementID {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	from, errFrom := time.Parse(time.RFC3339, q.Get("vanaf"))
	to, errTo := time.Parse(time.RFC3339, q.Get("tot"))
	pagina, _ := strconv.Atoi(q.Get("pagina"))
	aantal, _ := strconv.Atoi(q.Get("aantal"))
	if errFrom != nil || errTo != nil || pagina < 1 || aantal < 1 {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var matched []Signaal
	for _, sig := range s.signalen {
		if !sig.Timestamp.Before(from) && sig.Timestamp.Before(to) {
			matched = append(matched, sig)
		}
	}

	pages := (len(matched) + aantal - 1) / aantal
	start := min((pagina-1)*aantal, len(matched))
	end := min(start+aantal, len(matched))

	items := make([]map[string]any, 0, end-start)
	for _, sig := range matched[start:end] {
		items = append(items, signaalJSON(sig))
	}
	writeJSON(w, map[string]any{
		"pagina":        pagina,
		"aantal":        aantal,
		"totaal":        len(matched),
		"totaalPaginas": pages,
		"signalen":      items,
	})
}

func (s *KvKServer) signaal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "signaalID")
	idx := slices.IndexFunc(s.signalen, func(sig Signaal) bool { return sig.ID == id })
	if chi.URLParam(r, "id") != s.AbonnementID || idx < 0 {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, signaalJSON(s.signalen[idx]))
}

func (s *KvKServer) basisprofiel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.companies[chi.URLParam(r, "kvk")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	hoofdvestiging := map[string]any{"kvkNummer": c.KvKNummer}
	if len(c.Vestigingen) > 0 {
		hoofdvestiging["vestigingsnummer"] = c.Vestigingen[0]
	}
	writeJSON(w, map[string]any{
		"kvkNummer":            c.KvKNummer,
		"naam":                 c.Naam,
		"materieleRegistratie": map[string]any{"datumAanvang": "20040901"},
		"handelsnamen":         []map[string]any{{"naam": c.Naam, "volgorde": 0}},
		"_embedded": map[string]any{
			"hoofdvestiging": hoofdvestiging,
			"eigenaar":       map[string]any{"rechtsvorm": "Eenmanszaak"},
		},
	})
}

func (s *KvKServer) vestigingen(w http.ResponseWriter, r *http.Request) {
	c, ok := s.companies[chi.URLParam(r, "kvk")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	items := make([]map[string]any, 0, len(c.Vestigingen))
	for _, nr := range c.Vestigingen {
		items = append(items, map[string]any{"vestigingsnummer": nr, "kvkNummer": c.KvKNummer})
	}
	writeJSON(w, map[string]any{
		"kvkNummer":               c.KvKNummer,
		"totaalAantalVestigingen": len(items),
		"vestigingen":             items,
	})
}

func (s *KvKServer) vestigingsprofiel(w http.ResponseWriter, r *http.Request) {
	nummer := chi.URLParam(r, "nummer")
	for _, c := range s.companies {
		if idx := slices.Index(c.Vestigingen, nummer); idx >= 0 {
			writeJSON(w, map[string]any{
				"vestigingsnummer":        nummer,
				"kvkNummer":               c.KvKNummer,
				"eersteHandelsnaam":       c.Naam,
				"indHoofdvestiging":       map[bool]string{true: "Ja", false: "Nee"}[idx == 0],
				"indCommercieleVestiging": "Ja",
				"adressen": []map[string]any{{
					"type":       "bezoekadres",
					"straatnaam": "Stationsweg",
					"huisnummer": 12,
					"postcode":   "9711AA",
					"plaats":     "Groningen",
				}},
			})
			return
		}
	}
	http.NotFound(w, r)
}

func signaalJSON(sig Signaal) map[string]any {
	item := map[string]any{
		"id":          sig.ID,
		"timestamp":   sig.Timestamp.UTC().Format(time.RFC3339Nano),
		"kvknummer":   sig.KvKNummer,
		"signaalType": "SignaalGewijzigdeInschrijving",
	}
	if sig.Vestigingsnummer != "" {
		item["vestigingsnummer"] = sig.Vestigingsnummer
		item["signaalType"] = "SignaalGewijzigdeVestiging"
	}
	return item
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
