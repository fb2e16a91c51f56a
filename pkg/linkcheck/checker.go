package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Option configures a Checker.
type Option func(*Checker)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(client HTTPClient) Option {
	return func(checker *Checker) {
		checker.client = client
	}
}

// WithLogger sets the logger used for per-link debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(checker *Checker) {
		checker.logger = logger
	}
}

// Checker verifies links host by host: hosts are checked concurrently, links
// on one host sequentially and rate limited.
type Checker struct {
	config   Config
	client   HTTPClient
	cache    *Cache
	limiters *hostLimiters
	logger   zerolog.Logger
}

// NewChecker creates a checker. Zero fields in config take their defaults.
func NewChecker(config Config, opts ...Option) *Checker {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RateLimit < 0 {
		config.RateLimit = 0
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	checker := &Checker{
		config:   config,
		cache:    NewCache(config.CacheTTL),
		limiters: newHostLimiters(config.RateLimit),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(checker)
	}
	if checker.client == nil {
		checker.client = &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return checker
}

// Config returns the effective configuration.
func (checker *Checker) Config() Config {
	return checker.config
}

// CacheSize returns the number of cached page results.
func (checker *Checker) CacheSize() int {
	return checker.cache.Len()
}

// ClearCache drops every cached result.
func (checker *Checker) ClearCache() {
	checker.cache.Clear()
}

// Check verifies links and returns the report. Links whose URI could not be
// built are reported as errors without a request. Cancelling ctx stops the
// check; links not yet visited are left out of the report.
func (checker *Checker) Check(ctx context.Context, links []LinkInput) *Report {
	report := NewReport()

	results := make(chan *Result, len(links))
	groups := make(map[string][]LinkInput)
	for _, link := range links {
		if link.BuildError != "" {
			results <- &Result{
				URI:       link.URI,
				Citation:  link.Citation,
				Status:    StatusError,
				Error:     link.BuildError,
				CheckedAt: time.Now(),
			}
			continue
		}
		host := HostOf(link.URI)
		groups[host] = append(groups[host], link)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, checker.config.Concurrency)
	for host, hostLinks := range groups {
		wg.Add(1)
		go func(host string, hostLinks []LinkInput) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			for _, link := range hostLinks {
				if ctx.Err() != nil {
					return
				}
				results <- checker.checkLink(ctx, link, host)
			}
		}(host, hostLinks)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for result := range results {
		report.Add(result)
	}

	report.Finalize()
	return report
}

// CheckURI verifies a single URI.
func (checker *Checker) CheckURI(ctx context.Context, uri string) *Result {
	return checker.checkLink(ctx, LinkInput{URI: uri}, HostOf(uri))
}

// checkLink consults the cache, then requests the page with retries.
func (checker *Checker) checkLink(ctx context.Context, link LinkInput, host string) *Result {
	if cached, ok := checker.cache.Get(link.URI); ok {
		cached.URI = link.URI
		cached.Citation = link.Citation
		return &cached
	}

	var result *Result
	for attempt := 0; attempt <= checker.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 250 * time.Millisecond
			select {
			case <-ctx.Done():
				return checker.failure(link, host, StatusError, "cancelled", 0)
			case <-time.After(backoff):
			}
		}

		result = checker.request(ctx, link, host)
		checker.logger.Debug().
			Str("uri", link.URI).
			Str("status", string(result.Status)).
			Int("attempt", attempt+1).
			Msg("checked link")

		if result.Status != StatusTimeout && result.Status != StatusError {
			break
		}
	}

	if result.Status != StatusError || ctx.Err() == nil {
		checker.cache.Set(link.URI, *result)
	}
	return result
}

// request sends HEAD and falls back to GET for servers that reject HEAD.
func (checker *Checker) request(ctx context.Context, link LinkInput, host string) *Result {
	start := time.Now()

	if err := checker.limiters.get(host).wait(ctx); err != nil {
		return checker.failure(link, host, StatusError, "cancelled", 0)
	}

	response, err := checker.do(ctx, http.MethodHead, link.URI)
	if err == nil && (response.StatusCode == http.StatusMethodNotAllowed || response.StatusCode == http.StatusNotImplemented) {
		response.Body.Close()
		response, err = checker.do(ctx, http.MethodGet, link.URI)
	}
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return checker.failure(link, host, StatusTimeout, "request timed out", elapsed)
		}
		return checker.failure(link, host, StatusError, err.Error(), elapsed)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 64<<10))

	result := &Result{
		URI:          link.URI,
		Citation:     link.Citation,
		StatusCode:   response.StatusCode,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
		Host:         host,
	}

	switch code := response.StatusCode; {
	case code >= 200 && code < 300:
		result.Status = StatusValid
	case code >= 300 && code < 400:
		result.Status = StatusRedirect
		result.RedirectURI = response.Header.Get("Location")
	case code >= 400:
		result.Status = StatusInvalid
		result.Error = fmt.Sprintf("HTTP %d", code)
	default:
		result.Status = StatusError
		result.Error = fmt.Sprintf("unexpected status code: %d", code)
	}

	return result
}

func (checker *Checker) do(ctx context.Context, method, uri string) (*http.Response, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, checker.config.Timeout)

	request, err := http.NewRequestWithContext(timeoutCtx, method, pageOf(uri), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("User-Agent", checker.config.UserAgent)

	response, err := checker.client.Do(request)
	if err != nil {
		cancel()
		return nil, err
	}
	response.Body = &cancelBody{ReadCloser: response.Body, cancel: cancel}
	return response, nil
}

func (checker *Checker) failure(link LinkInput, host string, status Status, message string, elapsed int64) *Result {
	return &Result{
		URI:          link.URI,
		Citation:     link.Citation,
		Status:       status,
		Error:        message,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
		Host:         host,
	}
}

// cancelBody releases the request timeout once the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (body *cancelBody) Close() error {
	err := body.ReadCloser.Close()
	body.cancel()
	return err
}
