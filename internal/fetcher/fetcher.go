// Package fetcher retrieves rendered search-result pages through a remote
// fetch service. The service is asked to load the search URL with JavaScript
// enabled and returns the final markup as its response body.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-flight-scraper/internal/config"
	"github.com/tbourn/go-flight-scraper/internal/domain"
)

const userAgent = "go-flight-scraper/1.0"

// Fetcher is an HTTP client for the fetch service. It is safe for concurrent
// use.
type Fetcher struct {
	serviceURL *url.URL
	apiKey     string
	searchBase string
	maxBody    int64

	client *http.Client
	log    zerolog.Logger
	tracer trace.Tracer
}

// New validates cfg and returns a Fetcher. A nil client gets a default one
// whose timeout is cfg.Timeout.
func New(cfg config.FetchConfig, client *http.Client, log zerolog.Logger) (*Fetcher, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.ServiceURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("fetcher: invalid service url %q", cfg.ServiceURL)
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, errors.New("fetcher: max body bytes must be > 0")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		serviceURL: u,
		apiKey:     cfg.APIKey,
		searchBase: strings.TrimRight(cfg.SearchBaseURL, "/"),
		maxBody:    cfg.MaxBodyBytes,
		client:     client,
		log:        log.With().Str("component", "fetcher").Logger(),
		tracer:     otel.Tracer("fetcher"),
	}, nil
}

// SearchURL is the results page for q, sorted by ascending price.
func (f *Fetcher) SearchURL(q domain.RouteQuery) string {
	return fmt.Sprintf("%s/flights/%s-%s/%s/%s?sort=price_a",
		f.searchBase,
		q.Origin, q.Destination,
		q.DepartureDate.Format(domain.DateLayout),
		q.ReturnDate.Format(domain.DateLayout),
	)
}

func (f *Fetcher) requestURL(q domain.RouteQuery) string {
	u := *f.serviceURL
	params := u.Query()
	params.Set("url", f.SearchURL(q))
	params.Set("render_js", "true")
	if f.apiKey != "" {
		params.Set("api_key", f.apiKey)
	}
	u.RawQuery = params.Encode()
	return u.String()
}

// Fetch returns the rendered markup for q. Every failure is a
// *domain.FetchError: non-2xx responses carry the upstream status, deadline
// expiry maps to 504 and other transport errors to 502. Bodies longer than
// the configured cap are truncated.
func (f *Fetcher) Fetch(ctx context.Context, q domain.RouteQuery) (string, error) {
	ctx, span := f.tracer.Start(ctx, "Fetcher.Fetch", trace.WithAttributes(
		attribute.String("route", q.String()),
	))
	defer span.End()

	start := time.Now()
	body, status, err := f.do(ctx, q)
	span.SetAttributes(attribute.Int("http.status_code", status), attribute.Int("body.bytes", len(body)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.log.Error().Err(err).
			Str("route", q.String()).
			Int("status", status).
			Dur("elapsed", time.Since(start)).
			Msg("fetch failed")
		return "", err
	}
	f.log.Debug().
		Str("route", q.String()).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("page fetched")
	return body, nil
}

func (f *Fetcher) do(ctx context.Context, q domain.RouteQuery) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.requestURL(q), nil)
	if err != nil {
		return "", 0, domain.NewFetchError(http.StatusBadGateway, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", 0, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, domain.NewFetchError(resp.StatusCode, nil)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return "", resp.StatusCode, transportError(err)
	}
	if int64(len(b)) > f.maxBody {
		f.log.Warn().Int64("limit", f.maxBody).Str("route", q.String()).Msg("page body truncated")
		b = b[:f.maxBody]
	}
	return string(b), resp.StatusCode, nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewFetchError(http.StatusGatewayTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.NewFetchError(http.StatusGatewayTimeout, err)
	}
	return domain.NewFetchError(http.StatusBadGateway, err)
}
