package charts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodyBytes caps how much of a chart page is read.
const maxBodyBytes = 16 << 20

// FetcherOpts configures a [Fetcher].
type FetcherOpts struct {
	Client    *http.Client
	UserAgent string
	RateLimit float64 // requests per second, 0 disables limiting
	Timeout   time.Duration
	Logger    *log.Logger
}

// Fetcher downloads chart pages with browser-like headers.
type Fetcher struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewFetcher creates a [Fetcher].
func NewFetcher(opts FetcherOpts) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Fetcher{client: client, userAgent: ua, limiter: limiter, logger: logger}
}

// Fetch downloads the chart page for src and param.
func (f *Fetcher) Fetch(ctx context.Context, src Source, param string) (Document, error) {
	return f.FetchURL(ctx, src, src.URL(param))
}

// FetchURL downloads u and tags the document with src.
func (f *Fetcher) FetchURL(ctx context.Context, src Source, u string) (Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return Document{}, fmt.Errorf("%w: %v", shared.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: failed to create request: %v", shared.ErrFetch, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if src.Referer != "" {
		req.Header.Set("Referer", src.Referer)
	}

	f.logger.Debug("fetching chart", "source", src.Tag, "url", u)

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s: %v", shared.ErrFetch, u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Document{}, fmt.Errorf("%w: failed to read response body: %v", shared.ErrFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Document{}, fmt.Errorf("%w: %s returned status %d", shared.ErrFetch, u, resp.StatusCode)
	}

	return Document{Source: src.Tag, URL: u, Body: body, FetchedAt: time.Now()}, nil
}
