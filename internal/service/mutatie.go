package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/kvk/api"
	"github.com/kvk-connect/kvk-sync/internal/timewindow"
)

// DefaultPageSize is the number of signals requested per page
const DefaultPageSize = 500

// ErrNoAbonnement is returned when the mutation service is used without a subscription id
var ErrNoAbonnement = errors.New("mutatie abonnement id is not configured")

// MutatieService reads mutation signals of a single subscription
type MutatieService struct {
	client       api.Client
	abonnementID string
}

// NewMutatieService creates a MutatieService for the subscription abonnementID
func NewMutatieService(client api.Client, abonnementID string) *MutatieService {
	return &MutatieService{client: client, abonnementID: abonnementID}
}

// Signals returns the signals emitted within window, fetched page by page.
//
// The first page determines the page count; failing to fetch or parse it ends the
// sequence with an error. Later pages that cannot be parsed are skipped with a
// warning, while transport errors on later pages end the sequence with that error.
// The sequence is lazy: no request is made until it is ranged over.
func (s *MutatieService) Signals(
	ctx context.Context,
	window timewindow.Window,
	pageSize int,
) iter.Seq2[kvk.Signaal, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(kvk.Signaal, error) bool) {
		if s.abonnementID == "" {
			yield(kvk.Signaal{}, ErrNoAbonnement)
			return
		}

		first, err := s.page(ctx, window, 1, pageSize)
		if err != nil {
			yield(kvk.Signaal{}, err)
			return
		}
		if !yieldAll(first, yield) {
			return
		}

		slog.DebugContext(ctx, "Fetched first signal page",
			"from", window.From, "to", window.To,
			"total", first.Totaal, "pages", first.TotaalPaginas)

		for pagina := 2; pagina <= first.TotaalPaginas; pagina++ {
			if err := ctx.Err(); err != nil {
				yield(kvk.Signaal{}, err)
				return
			}

			data, err := s.client.Signalen(ctx, s.abonnementID, window.From, window.To, pagina, pageSize)
			if err != nil {
				yield(kvk.Signaal{}, fmt.Errorf("failed to fetch signal page %d: %w", pagina, err))
				return
			}
			page, err := kvk.ParseSignalenPage(data)
			if err != nil {
				slog.WarnContext(ctx, "Skipping unreadable signal page",
					"page", pagina, "error", err)
				continue
			}
			if !yieldAll(page, yield) {
				return
			}
		}
	}
}

func (s *MutatieService) page(
	ctx context.Context,
	window timewindow.Window,
	pagina, pageSize int,
) (*kvk.SignalenPage, error) {
	data, err := s.client.Signalen(ctx, s.abonnementID, window.From, window.To, pagina, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signal page %d: %w", pagina, err)
	}
	page, err := kvk.ParseSignalenPage(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signal page %d: %w", pagina, err)
	}
	return page, nil
}

func yieldAll(page *kvk.SignalenPage, yield func(kvk.Signaal, error) bool) bool {
	for _, signaal := range page.Signalen {
		if !yield(signaal, nil) {
			return false
		}
	}
	return true
}

// Signaal fetches a single signal by id
func (s *MutatieService) Signaal(ctx context.Context, signaalID string) (*kvk.Signaal, error) {
	if s.abonnementID == "" {
		return nil, ErrNoAbonnement
	}
	data, err := s.client.Signaal(ctx, s.abonnementID, signaalID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signal %s: %w", signaalID, err)
	}
	signaal, err := kvk.ParseSignaal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signal %s: %w", signaalID, err)
	}
	return signaal, nil
}

// Abonnementen lists the subscriptions available to the API key
func (s *MutatieService) Abonnementen(ctx context.Context) ([]kvk.MutatieAbonnement, error) {
	data, err := s.client.Abonnementen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch abonnementen: %w", err)
	}
	abonnementen, err := kvk.ParseAbonnementen(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse abonnementen: %w", err)
	}
	return abonnementen, nil
}
