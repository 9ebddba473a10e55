package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/maltedev/lighting-importer/internal/metrics"
	"github.com/maltedev/lighting-importer/internal/ratelimit"
)

var (
	ErrTimeout    = errors.New("fetch timeout")
	ErrBadStatus  = errors.New("unexpected status")
	ErrInvalidURL = errors.New("invalid url")
)

// FetchError covers network failures, timeouts and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because its deadline passed.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// Result is a decoded page body and the URL it was served from after redirects.
type Result struct {
	HTML       string
	FinalURL   string
	StatusCode int
}

// Options configures a Fetcher. Zero values fall back to the package defaults.
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	MaxBodyBytes   int64
	Proxy          *url.URL
	Limiter        ratelimit.RateLimiter
}

// Fetcher downloads product pages over plain HTTP.
type Fetcher struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// New creates a Fetcher. A proxy URL in opts routes every request through it.
func New(opts Options, logger *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Proxy != nil {
		transport.Proxy = http.ProxyURL(opts.Proxy)
	}

	return &Fetcher{
		client: &http.Client{Transport: transport},
		opts:   opts,
		logger: logger.With("component", "fetcher"),
	}
}

// ProxyURL builds the outbound proxy address from injected settings.
// An empty raw URL disables the proxy.
func ProxyURL(raw, user, password string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid proxy url: unsupported scheme %q", u.Scheme)
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u, nil
}

// Fetch downloads one product page and decodes it to UTF-8. There are no
// retries; the batch caller decides whether to resubmit.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrInvalidURL}
	}

	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Wait(ctx, rawURL); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.opts.AcceptLanguage)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.FetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, &FetchError{URL: rawURL, Err: f.classify(ctx, fetchCtx, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FetchDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w %d", ErrBadStatus, resp.StatusCode),
		}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, f.opts.MaxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode body: %w", err)}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: f.classify(ctx, fetchCtx, err)}
	}
	metrics.FetchDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	f.logger.Debug("page fetched",
		"url", rawURL,
		"final_url", resp.Request.URL.String(),
		"bytes", len(body),
		"duration", time.Since(start))

	return &Result{
		HTML:       string(body),
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}

func (f *Fetcher) classify(parent, fetchCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, f.opts.Timeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
