package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"voicetransit/internal/logger"
	"voicetransit/internal/utils"
)

// maxErrorBody bounds how much of a failed response is kept for the error
const maxErrorBody = 512

// upstream is the HTTP plumbing shared by all backend adapters
type upstream struct {
	backend    string
	baseURL    string
	headers    http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// upstreamOptions configures newUpstream
type upstreamOptions struct {
	Backend string
	BaseURL string
	Headers http.Header
	Timeout time.Duration
	Rate    float64 // requests per second, <= 0 disables limiting
	Burst   int
	Logger  *logger.Logger
}

func newUpstream(opts upstreamOptions) *upstream {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}

	headers := opts.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Accept", "application/json")

	return &upstream{
		backend: opts.Backend,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		headers: headers,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
		log:     opts.Logger.WithComponent(opts.Backend),
	}
}

// getJSON performs a GET against path (relative to the base URL) and decodes
// the response body into target. Non-2xx responses become *UpstreamError.
func (u *upstream) getJSON(ctx context.Context, operation, path string, query url.Values, target interface{}) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return &UpstreamError{Backend: u.backend, Operation: operation, Err: err}
	}

	endpoint := u.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range u.headers {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		ue := &UpstreamError{Backend: u.backend, Operation: operation, Err: err}
		u.log.UpstreamError(u.backend, operation, ue)
		return ue
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Backend: u.backend, Operation: operation, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	u.log.Debug("upstream call",
		"operation", operation,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ue := &UpstreamError{
			Backend:   u.backend,
			Operation: operation,
			Status:    resp.StatusCode,
			Body:      truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
		u.log.UpstreamError(u.backend, operation, ue)
		return ue
	}

	if err := utils.DecodeJSON(body, target); err != nil {
		return fmt.Errorf("%s %s: %w", u.backend, operation, err)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
