package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spbu-research/spbu-maps/internal/apperr"
	"github.com/spbu-research/spbu-maps/internal/workspace"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RatePerSec  float64       // per-host request rate; 0 = 5/s
	BaseBackoff time.Duration // first retry delay; 0 = 1s
}

// HTTPFetcher implements Fetcher using net/http with retry and per-host
// rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "spbu-maps/1.0"
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: opts.Timeout},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(math.Max(1, f.opts.RatePerSec))
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerSec), burst)
		f.limiters[host] = lim
	}
	return lim
}

func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	lim := f.limiterFor(req.URL.String())

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			f.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("server busy or failing, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			f.backoff(ctx, attempt)
			continue
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "http: all retries exhausted")
}

func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(f.opts.BaseBackoff) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "http: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.doWithRetry(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "http: download")
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		_ = resp.Body.Close()
		return nil, apperr.NotFound(nil, "http: unexpected status %d from %s", resp.StatusCode, rawURL)
	default:
		_ = resp.Body.Close()
		return nil, eris.Errorf("http: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to the given path.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeToFile(path, body)
}

// writeToFile streams r into path through a temporary file, creating the
// parent directory.
func writeToFile(path string, r io.Reader) (int64, error) {
	var n int64
	err := workspace.WriteFileAtomic(path, func(w io.Writer) error {
		var err error
		n, err = io.Copy(w, r)
		if err != nil {
			return eris.Wrap(err, "write file")
		}
		return nil
	})
	return n, err
}
