package sync

import (
	"context"
	"errors"
	"iter"
	stdsync "sync"
	"time"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/timewindow"
)

var errUpstream = errors.New("upstream unavailable")

// fakeRecords serves records from maps; keys in failing return errUpstream
type fakeRecords struct {
	mu          stdsync.Mutex
	basis       map[string]kvk.BasisProfiel
	vestigingen map[string]kvk.Vestigingen
	profielen   map[string]kvk.VestigingsProfiel
	failing     map[string]bool
	calls       []string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		basis:       map[string]kvk.BasisProfiel{},
		vestigingen: map[string]kvk.Vestigingen{},
		profielen:   map[string]kvk.VestigingsProfiel{},
		failing:     map[string]bool{},
	}
}

func lookup[T any](f *fakeRecords, m map[string]T, key string) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.failing[key] {
		return nil, errUpstream
	}
	rec, ok := m[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRecords) BasisProfiel(_ context.Context, kvkNummer string) (*kvk.BasisProfiel, error) {
	return lookup(f, f.basis, kvkNummer)
}

func (f *fakeRecords) Vestigingen(_ context.Context, kvkNummer string) (*kvk.Vestigingen, error) {
	return lookup(f, f.vestigingen, kvkNummer)
}

func (f *fakeRecords) VestigingsProfiel(_ context.Context, vestigingsnummer string) (*kvk.VestigingsProfiel, error) {
	return lookup(f, f.profielen, vestigingsnummer)
}

func (f *fakeRecords) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeSignals returns the stored signals that fall inside the requested window
type fakeSignals struct {
	signalen []kvk.Signaal
	windows  []timewindow.Window
	// failAfter yields errUpstream once this many signals have been returned, when positive
	failAfter int
}

func (f *fakeSignals) Signals(_ context.Context, w timewindow.Window, _ int) iter.Seq2[kvk.Signaal, error] {
	f.windows = append(f.windows, w)
	return func(yield func(kvk.Signaal, error) bool) {
		for i, s := range f.signalen {
			if f.failAfter > 0 && i == f.failAfter {
				yield(kvk.Signaal{}, errUpstream)
				return
			}
			if s.Timestamp.Before(w.From) || !s.Timestamp.Before(w.To) {
				continue
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (f *fakeSignals) Signaal(_ context.Context, id string) (*kvk.Signaal, error) {
	for _, s := range f.signalen {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, errUpstream
}

func signaal(id, kvkNummer, vestigingsnummer string, ts time.Time) kvk.Signaal {
	return kvk.Signaal{ID: id, KvKNummer: kvkNummer, Vestigingsnummer: vestigingsnummer, Timestamp: ts}
}
