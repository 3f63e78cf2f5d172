// Package service fetches KvK records from the registry API and maps them onto domain types.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kvk-connect/kvk-sync/internal/kvk"
	"github.com/kvk-connect/kvk-sync/internal/kvk/api"
	"github.com/kvk-connect/kvk-sync/internal/normalize"
)

// RecordService retrieves single records by key.
// A key unknown to the registry yields a nil record and a nil error.
type RecordService struct {
	client api.Client
}

// NewRecordService creates a RecordService on top of an API client
func NewRecordService(client api.Client) *RecordService {
	return &RecordService{client: client}
}

// BasisProfiel fetches the base profile of a company
func (s *RecordService) BasisProfiel(ctx context.Context, kvkNummer string) (*kvk.BasisProfiel, error) {
	nummer, err := normalize.KvKNummer(kvkNummer)
	if err != nil {
		return nil, fmt.Errorf("invalid kvk number %q: %w", kvkNummer, err)
	}

	data, err := s.client.BasisProfiel(ctx, nummer)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			slog.DebugContext(ctx, "No basisprofiel found", "kvk_nummer", nummer)
			return nil, nil
		}
		return nil, err
	}

	profiel, err := kvk.ParseBasisProfiel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse basisprofiel %s: %w", nummer, err)
	}
	return profiel, nil
}

// Vestigingen fetches the establishment numbers of a company
func (s *RecordService) Vestigingen(ctx context.Context, kvkNummer string) (*kvk.Vestigingen, error) {
	nummer, err := normalize.KvKNummer(kvkNummer)
	if err != nil {
		return nil, fmt.Errorf("invalid kvk number %q: %w", kvkNummer, err)
	}

	data, err := s.client.Vestigingen(ctx, nummer)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			slog.DebugContext(ctx, "No vestigingen found", "kvk_nummer", nummer)
			return nil, nil
		}
		return nil, err
	}

	vestigingen, err := kvk.ParseVestigingen(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vestigingen %s: %w", nummer, err)
	}
	return vestigingen, nil
}

// VestigingsProfiel fetches the profile of an establishment including its GPS coordinates
func (s *RecordService) VestigingsProfiel(ctx context.Context, vestigingsnummer string) (*kvk.VestigingsProfiel, error) {
	nummer, err := normalize.Vestigingsnummer(vestigingsnummer)
	if err != nil {
		return nil, fmt.Errorf("invalid vestigingsnummer %q: %w", vestigingsnummer, err)
	}

	data, err := s.client.VestigingsProfiel(ctx, nummer, true)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			slog.DebugContext(ctx, "No vestigingsprofiel found", "vestigingsnummer", nummer)
			return nil, nil
		}
		return nil, err
	}

	profiel, err := kvk.ParseVestigingsProfiel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vestigingsprofiel %s: %w", nummer, err)
	}
	return profiel, nil
}
