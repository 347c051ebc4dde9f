package cachedconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// HTTPSource serves config paths from {baseURL}/{path}. The response ETag
// is the modification marker, falling back to Last-Modified and finally to
// a hash of the body when the server supplies neither. Servers that send no
// validator headers at all cause every PathsToRefresh probe to report the
// path as changed; the entity's marker check still prevents redundant
// deserialization in that case.
//
// Requests run through a circuit breaker so a failing config server trips
// fast instead of stalling every refresh iteration, and through an optional
// rate limiter so bulk PathsToRefresh probing stays polite.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	log     zerolog.Logger

	mu sync.Mutex
	// observed holds validators as of the last probe; ConfigForPath never
	// writes it.
	observed map[string]ModificationTime
}

// HTTPSourceOption configures an HTTPSource.
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient overrides the default client. Callers that need
// authentication should pass a client whose transport injects credentials.
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(h *HTTPSource) {
		h.client = c
	}
}

// WithRequestRate caps outgoing requests at rps with the given burst.
func WithRequestRate(rps float64, burst int) HTTPSourceOption {
	return func(h *HTTPSource) {
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRequestTimeout sets the per-request timeout. Default is 10s.
func WithRequestTimeout(d time.Duration) HTTPSourceOption {
	return func(h *HTTPSource) {
		h.timeout = d
	}
}

// NewHTTPSource builds an HTTP source serving paths relative to baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPSourceOption) (*HTTPSource, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("cachedconfig: invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("cachedconfig: base URL %q must be absolute", baseURL)
	}

	h := &HTTPSource{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{},
		timeout:  10 * time.Second,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		log:      packageLogger().With().Str("source", "http").Logger(),
		observed: make(map[string]ModificationTime),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "cachedconfig-http-source",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A missing path is an answer, not a server failure.
			return err == nil || errors.Is(err, ErrNotFound)
		},
	})
	return h, nil
}

// ConfigForPath fetches the path's payload and derives its marker from the
// response validators.
func (h *HTTPSource) ConfigForPath(path string) (SourceEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp, err := h.do(ctx, http.MethodGet, path)
	if err != nil {
		return SourceEntry{}, err
	}
	defer h.closeBody(resp)

	contents, err := io.ReadAll(resp.Body)
	if err != nil {
		return SourceEntry{}, fmt.Errorf("cachedconfig: read body for %q: %w", path, err)
	}

	// Fetches never touch the probe state: a registration between two probes
	// must not consume the change edge the next probe would report to the
	// path's existing entities.
	return SourceEntry{Contents: contents, ModTime: markerFromResponse(resp, contents)}, nil
}

// PathsToRefresh probes each candidate with a HEAD request and returns
// those whose validator differs from the one the previous probe observed.
// Paths never probed before and paths that fail to probe are included; the
// store's follow-up fetch either surfaces the error or lands on the
// entity's marker check.
func (h *HTTPSource) PathsToRefresh(paths []string) []string {
	var changed []string
	for _, path := range paths {
		marker, err := h.probeMarker(path)
		if err != nil {
			h.log.Debug().Err(err).Str("path", path).Msg("refresh probe failed")
			changed = append(changed, path)
			continue
		}
		if marker == "" {
			// No validators: changes cannot be detected from a HEAD probe, so
			// always refetch and let the entity's marker check stop redundant
			// deserialization.
			changed = append(changed, path)
			continue
		}

		h.mu.Lock()
		observed, ok := h.observed[path]
		if !ok || observed != marker {
			h.observed[path] = marker
			changed = append(changed, path)
		}
		h.mu.Unlock()
	}
	return changed
}

// probeMarker HEADs one path under its own request timeout, so a slow probe
// cannot starve the rest of the batch. An empty marker means the response
// carried no validator headers.
func (h *HTTPSource) probeMarker(path string) (ModificationTime, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	resp, err := h.do(ctx, http.MethodHead, path)
	if err != nil {
		return "", err
	}
	defer h.closeBody(resp)

	if resp.Header.Get("ETag") == "" && resp.Header.Get("Last-Modified") == "" {
		return "", nil
	}
	return markerFromResponse(resp, nil), nil
}

func (h *HTTPSource) do(ctx context.Context, method, path string) (*http.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("cachedconfig: rate limit wait: %w", err)
	}

	return h.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, h.baseURL+"/"+path, http.NoBody)
		if err != nil {
			return nil, err
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("cachedconfig: fetch %q: %w", path, err)
		}
		if resp.StatusCode == http.StatusNotFound {
			h.closeBody(resp)
			return nil, fmt.Errorf("cachedconfig: %q: %w", path, ErrNotFound)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			h.closeBody(resp)
			return nil, fmt.Errorf("cachedconfig: fetch %q: unexpected status %d", path, resp.StatusCode)
		}
		return resp, nil
	})
}

func (h *HTTPSource) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		h.log.Debug().Err(err).Msg("failed to close response body")
	}
}

func markerFromResponse(resp *http.Response, contents []byte) ModificationTime {
	if etag := resp.Header.Get("ETag"); etag != "" {
		return ModificationTime(etag)
	}
	if lastModified := resp.Header.Get("Last-Modified"); lastModified != "" {
		return ModificationTime(lastModified)
	}
	sum := sha256.Sum256(contents)
	return ModificationTime(hex.EncodeToString(sum[:]))
}
