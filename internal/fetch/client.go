// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fetch performs single bounded HTTP fetches for playlists and segments.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/streamguard/internal/metrics"
	"github.com/ManuGH/streamguard/internal/platform/httpx"
	"github.com/ManuGH/streamguard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Request kinds used for metric and span labels.
const (
	KindManifest = "manifest"
	KindPlaylist = "playlist"
	KindSegment  = "segment"
)

const (
	defaultTimeout        = 5 * time.Second
	defaultMaxBodyBytes   = 64 << 20
	defaultRateLimit      = 20
	defaultRateLimitBurst = 40
)

// Doer is the subset of *http.Client the fetcher needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	HTTPClient     Doer
	RateLimit      rate.Limit
	RateLimitBurst int
	UserAgent      string
	MaxBodyBytes   int64
}

// Response is a fully read successful response.
type Response struct {
	URL        string // final URL after redirects
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues exactly one round trip per call, bounded by a timeout.
type Client struct {
	http      Doer
	limiter   *rate.Limiter
	userAgent string
	maxBody   int64
}

// New creates a Client. Zero options fall back to an httpx client and
// conservative rate limits.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpx.NewClient(httpx.Options{})
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Limit(defaultRateLimit)
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = defaultRateLimitBurst
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = "streamguard"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Client{
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(opts.RateLimit, opts.RateLimitBurst),
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
	}
}

// Once fetches a manifest within timeout. See Get.
func (c *Client) Once(ctx context.Context, rawURL string, timeout time.Duration) (*Response, error) {
	return c.Get(ctx, KindManifest, rawURL, timeout)
}

// Get performs one GET of rawURL. If no complete response arrives within
// timeout the request is cancelled and a KindTimeout *Error is returned.
// Non-2xx responses return a KindHTTPStatus *Error. Cancellation of ctx
// itself is returned unwrapped as ctx.Err().
func (c *Client) Get(ctx context.Context, kind, rawURL string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	route, urlLabel := traceLabels(rawURL)

	ctx, span := telemetry.Tracer("streamguard.fetch").Start(ctx, "streamguard.fetch."+kind, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.FetchAttributes(kind, timeout.Milliseconds())...)

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.do(attemptCtx, rawURL)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	err = c.classify(ctx, attemptCtx, rawURL, err)
	metrics.RecordFetch(kind, status, time.Since(start), err)

	span.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, route, urlLabel, status)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &Response{StatusCode: resp.StatusCode}, &Error{
			Kind:       KindHTTPStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        ErrHTTPStatus,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return &Response{StatusCode: resp.StatusCode}, err
	}
	if int64(len(body)) > c.maxBody {
		return &Response{StatusCode: resp.StatusCode}, &Error{Kind: KindTransport, URL: rawURL, Err: ErrBodyTooLarge}
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &Response{
		URL:        final,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// classify maps raw errors onto the fetch taxonomy. The deadline of
// attemptCtx firing while parent is still live is the only timeout.
func (c *Client) classify(parent, attemptCtx context.Context, rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: context.DeadlineExceeded}
	}
	return &Error{Kind: KindTransport, URL: rawURL, Err: fmt.Errorf("request failed: %w", err)}
}

func traceLabels(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, rawURL
	}
	route := u.Path
	if route == "" {
		route = "/"
	}
	urlLabel := u.Host + route
	if u.RawQuery != "" {
		urlLabel += "?"
	}
	return route, urlLabel
}
