// Package api implements a client for the KvK registry REST API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kvk-connect/kvk-sync/internal/httpclient"
	"github.com/kvk-connect/kvk-sync/internal/otel"
)

const (
	// ProductionBaseURL is the base URL of the production KvK API
	ProductionBaseURL = "https://api.kvk.nl/api"

	// TestBaseURL is the base URL of the KvK test environment
	TestBaseURL = "https://developers.kvk.nl/test/api"

	// apiKeyHeader is the header carrying the API key
	apiKeyHeader = "apikey"
)

// ErrNotFound is returned when the API has no record for the requested key
var ErrNotFound = errors.New("not found")

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/kvk-connect/kvk-sync/internal/kvk/api Client

// Client retrieves raw KvK API payloads
type Client interface {
	// BasisProfiel returns the base profile of a company
	BasisProfiel(ctx context.Context, kvkNummer string) ([]byte, error)

	// Vestigingen returns the establishment listing of a company
	Vestigingen(ctx context.Context, kvkNummer string) ([]byte, error)

	// VestigingsProfiel returns the profile of an establishment
	VestigingsProfiel(ctx context.Context, vestigingsnummer string, geoData bool) ([]byte, error)

	// Abonnementen returns the mutation service subscriptions of the API key
	Abonnementen(ctx context.Context) ([]byte, error)

	// Signalen returns one page of mutation signals of a subscription within [from, to)
	Signalen(ctx context.Context, abonnementID string, from, to time.Time, pagina, aantal int) ([]byte, error)

	// Signaal returns a single mutation signal
	Signaal(ctx context.Context, abonnementID, signaalID string) ([]byte, error)
}

type defaultClient struct {
	http    httpclient.Client
	baseURL string
	tracer  trace.Tracer
}

// Option configures the API client
type Option func(*clientConfig)

type clientConfig struct {
	baseURL    string
	timeout    time.Duration
	tracer     trace.Tracer
	httpClient httpclient.Client
}

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithTracer sets the tracer used to create a span per request
func WithTracer(tracer trace.Tracer) Option {
	return func(c *clientConfig) {
		c.tracer = tracer
	}
}

// WithHTTPClient replaces the HTTP transport. The API key header is then the caller's responsibility.
func WithHTTPClient(client httpclient.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// New creates a KvK API client authenticating with apiKey
func New(apiKey string, opts ...Option) Client {
	cfg := &clientConfig{
		baseURL: ProductionBaseURL,
		timeout: httpclient.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.httpClient == nil {
		cfg.httpClient = httpclient.NewDefaultClient(cfg.timeout, httpclient.WithHeader(apiKeyHeader, apiKey))
	}

	return &defaultClient{
		http:    cfg.httpClient,
		baseURL: cfg.baseURL,
		tracer:  cfg.tracer,
	}
}

func (c *defaultClient) BasisProfiel(ctx context.Context, kvkNummer string) ([]byte, error) {
	return c.get(ctx, "basisprofiel", "/v1/basisprofielen/"+url.PathEscape(kvkNummer), nil,
		otel.AttrKvKNummer.String(kvkNummer))
}

func (c *defaultClient) Vestigingen(ctx context.Context, kvkNummer string) ([]byte, error) {
	return c.get(ctx, "vestigingen", "/v1/basisprofielen/"+url.PathEscape(kvkNummer)+"/vestigingen", nil,
		otel.AttrKvKNummer.String(kvkNummer))
}

func (c *defaultClient) VestigingsProfiel(ctx context.Context, vestigingsnummer string, geoData bool) ([]byte, error) {
	query := url.Values{}
	if geoData {
		query.Set("geoData", "true")
	}
	return c.get(ctx, "vestigingsprofiel", "/v1/vestigingsprofielen/"+url.PathEscape(vestigingsnummer), query,
		otel.AttrVestigingsnummer.String(vestigingsnummer))
}

func (c *defaultClient) Abonnementen(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "abonnementen", "/v1/abonnementen", nil)
}

func (c *defaultClient) Signalen(
	ctx context.Context,
	abonnementID string,
	from, to time.Time,
	pagina, aantal int,
) ([]byte, error) {
	query := url.Values{}
	query.Set("vanaf", from.UTC().Format(time.RFC3339))
	query.Set("tot", to.UTC().Format(time.RFC3339))
	query.Set("pagina", strconv.Itoa(pagina))
	query.Set("aantal", strconv.Itoa(aantal))
	return c.get(ctx, "signalen", "/v1/abonnementen/"+url.PathEscape(abonnementID), query,
		otel.AttrPage.Int(pagina), otel.AttrPageSize.Int(aantal))
}

func (c *defaultClient) Signaal(ctx context.Context, abonnementID, signaalID string) ([]byte, error) {
	return c.get(ctx, "signaal",
		"/v1/abonnementen/"+url.PathEscape(abonnementID)+"/signalen/"+url.PathEscape(signaalID), nil)
}

func (c *defaultClient) get(
	ctx context.Context,
	operation, path string,
	query url.Values,
	attrs ...attribute.KeyValue,
) ([]byte, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "kvk.api."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := c.http.Get(ctx, endpoint)
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, fmt.Errorf("%s %s: %w", operation, path, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to fetch %s: %w", operation, err)
	}
	return body, nil
}
