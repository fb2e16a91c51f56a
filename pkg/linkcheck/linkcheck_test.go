package linkcheck

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coolbeans/scriptura/pkg/locale"
)

// --- Types tests ---

func TestResult_IsSuccess(t *testing.T) {
	testCases := []struct {
		name     string
		status   Status
		expected bool
	}{
		{"valid", StatusValid, true},
		{"redirect", StatusRedirect, true},
		{"invalid", StatusInvalid, false},
		{"timeout", StatusTimeout, false},
		{"error", StatusError, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := &Result{Status: tc.status}
			if result.IsSuccess() != tc.expected {
				t.Errorf("IsSuccess() = %v, want %v", result.IsSuccess(), tc.expected)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	testCases := []struct {
		name     string
		uri      string
		expected string
	}{
		{"https", "https://www.jw.org/en/library/bible/", "www.jw.org"},
		{"with_port", "http://localhost:8080/books", "localhost:8080"},
		{"with_fragment", "https://www.jw.org/en/#v40024014", "www.jw.org"},
		{"invalid", "not-a-url", ""},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HostOf(tc.uri); got != tc.expected {
				t.Errorf("HostOf(%q) = %q, want %q", tc.uri, got, tc.expected)
			}
		})
	}
}

func TestPageOf(t *testing.T) {
	got := pageOf("https://www.jw.org/en/library/bible/study-bible/books/matthew/24/#v40024014-v40024015")
	want := "https://www.jw.org/en/library/bible/study-bible/books/matthew/24/"
	if got != want {
		t.Errorf("pageOf() = %q, want %q", got, want)
	}
}

func TestReport_Add(t *testing.T) {
	report := NewReport()

	report.Add(&Result{URI: "https://a.example/1", Status: StatusValid, Host: "a.example", ResponseTime: 100})
	report.Add(&Result{URI: "https://a.example/2", Status: StatusInvalid, StatusCode: 404, Host: "a.example", ResponseTime: 50})
	report.Add(&Result{URI: "https://b.example/1", Status: StatusTimeout, Host: "b.example"})
	report.Add(&Result{Citation: "John 3:16;4:1", Status: StatusError, Error: "no template"})

	if report.Total != 4 {
		t.Errorf("Total = %d, want 4", report.Total)
	}
	if report.Valid != 1 || report.Invalid != 1 || report.Timeouts != 1 || report.Errors != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 1/1/1/1", report.Valid, report.Invalid, report.Timeouts, report.Errors)
	}
	if len(report.Broken) != 3 {
		t.Errorf("Broken = %d, want 3", len(report.Broken))
	}

	stats := report.Hosts["a.example"]
	if stats == nil {
		t.Fatal("missing stats for a.example")
	}
	if stats.Total != 2 || stats.Valid != 1 || stats.Broken != 1 {
		t.Errorf("a.example stats = %+v", stats)
	}
	if stats.AvgResponse != 75 {
		t.Errorf("AvgResponse = %d, want 75", stats.AvgResponse)
	}
	if report.OK() {
		t.Error("OK() = true with broken links")
	}
}

func TestReport_SuccessRate(t *testing.T) {
	report := NewReport()
	if rate := report.SuccessRate(); rate != 100.0 {
		t.Errorf("empty SuccessRate() = %v, want 100", rate)
	}

	report.Add(&Result{Status: StatusValid})
	report.Add(&Result{Status: StatusRedirect})
	report.Add(&Result{Status: StatusInvalid})
	report.Add(&Result{Status: StatusInvalid})
	if rate := report.SuccessRate(); rate != 50.0 {
		t.Errorf("SuccessRate() = %v, want 50", rate)
	}
}

func TestReport_FinalizeSortsResults(t *testing.T) {
	report := NewReport()
	report.Add(&Result{URI: "https://b.example/", Status: StatusInvalid})
	report.Add(&Result{URI: "https://a.example/", Status: StatusInvalid})
	report.Finalize()

	if report.Results[0].URI != "https://a.example/" || report.Broken[0].URI != "https://a.example/" {
		t.Errorf("results not sorted: %q, %q", report.Results[0].URI, report.Broken[0].URI)
	}
	if report.CompletedAt.Before(report.StartedAt) {
		t.Error("CompletedAt before StartedAt")
	}
}

func TestReport_ToJSON(t *testing.T) {
	report := NewReport()
	report.Add(&Result{URI: "https://a.example/", Citation: "John 3:16", Status: StatusValid, Host: "a.example"})
	report.Finalize()

	data, err := report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["total"] != float64(1) {
		t.Errorf("total = %v, want 1", decoded["total"])
	}
	if !strings.Contains(string(data), `"citation": "John 3:16"`) {
		t.Errorf("JSON missing citation: %s", data)
	}
}

func TestReport_ToMarkdown(t *testing.T) {
	report := NewReport()
	report.Add(&Result{URI: "https://a.example/", Status: StatusValid, Host: "a.example"})
	report.Add(&Result{URI: "https://a.example/x", Citation: "Mark 1:1", Status: StatusInvalid, StatusCode: 404, Host: "a.example"})
	report.Finalize()

	markdown := report.ToMarkdown()
	for _, want := range []string{
		"# Scripture Link Report",
		"- **Total Links**: 2",
		"| a.example | 2 | 1 | 1 |",
		"## Broken Links",
		"| Mark 1:1 | https://a.example/x | invalid | HTTP 404 |",
	} {
		if !strings.Contains(markdown, want) {
			t.Errorf("markdown missing %q:\n%s", want, markdown)
		}
	}
}

func TestReport_String(t *testing.T) {
	report := NewReport()
	report.Add(&Result{URI: "https://a.example/x", Citation: "Mark 1:1", Status: StatusTimeout, Error: "request timed out"})

	summary := report.String()
	if !strings.Contains(summary, "1 links checked") {
		t.Errorf("summary missing count: %s", summary)
	}
	if !strings.Contains(summary, "Mark 1:1 -> https://a.example/x: timeout (request timed out)") {
		t.Errorf("summary missing broken link: %s", summary)
	}
}

// --- Cache tests ---

func TestCache_GetSet(t *testing.T) {
	cache := NewCache(time.Hour)

	if _, ok := cache.Get("https://a.example/page/"); ok {
		t.Error("Get() on empty cache returned a result")
	}

	cache.Set("https://a.example/page/#v1", Result{Status: StatusValid, StatusCode: 200})

	result, ok := cache.Get("https://a.example/page/#v2")
	if !ok {
		t.Fatal("Get() missed a result for the same page")
	}
	if result.Status != StatusValid || result.StatusCode != 200 {
		t.Errorf("Get() = %+v", result)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", cache.Len())
	}
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache(20 * time.Millisecond)
	cache.Set("https://a.example/", Result{Status: StatusValid})

	time.Sleep(40 * time.Millisecond)

	if _, ok := cache.Get("https://a.example/"); ok {
		t.Error("Get() returned an expired result")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry dropped", cache.Len())
	}
}

func TestCache_Cleanup(t *testing.T) {
	cache := NewCache(20 * time.Millisecond)
	cache.Set("https://a.example/1", Result{Status: StatusValid})
	cache.Set("https://a.example/2", Result{Status: StatusValid})

	time.Sleep(40 * time.Millisecond)

	if removed := cache.Cleanup(); removed != 2 {
		t.Errorf("Cleanup() = %d, want 2", removed)
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after cleanup", cache.Len())
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(0)
	cache.Set("https://a.example/", Result{Status: StatusValid})
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 with caching disabled", cache.Len())
	}
}

// --- Checker tests with mock server ---

func testConfig() Config {
	config := DefaultConfig()
	config.RateLimit = 10 * time.Millisecond
	config.Timeout = 5 * time.Second
	return config
}

func noRedirects() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestChecker_Check(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/john/3/":
			w.WriteHeader(http.StatusOK)
		case "/books/mary/2/":
			w.WriteHeader(http.StatusNotFound)
		case "/books/moved/1/":
			w.Header().Set("Location", "/books/john/3/")
			w.WriteHeader(http.StatusMovedPermanently)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	checker := NewChecker(testConfig(), WithHTTPClient(noRedirects()))

	report := checker.Check(context.Background(), []LinkInput{
		{URI: server.URL + "/books/john/3/#v43003016", Citation: "John 3:16"},
		{URI: server.URL + "/books/mary/2/#v99002023", Citation: "Mary 2:23"},
		{URI: server.URL + "/books/moved/1/", Citation: "Moved 1"},
	})

	if report.Total != 3 {
		t.Fatalf("Total = %d, want 3", report.Total)
	}

	statuses := make(map[string]Status)
	for _, result := range report.Results {
		statuses[result.Citation] = result.Status
	}
	if statuses["John 3:16"] != StatusValid {
		t.Errorf("John 3:16 = %s, want valid", statuses["John 3:16"])
	}
	if statuses["Mary 2:23"] != StatusInvalid {
		t.Errorf("Mary 2:23 = %s, want invalid", statuses["Mary 2:23"])
	}
	if statuses["Moved 1"] != StatusRedirect {
		t.Errorf("Moved 1 = %s, want redirect", statuses["Moved 1"])
	}

	for _, result := range report.Results {
		if result.Status == StatusRedirect && result.RedirectURI != "/books/john/3/" {
			t.Errorf("RedirectURI = %q", result.RedirectURI)
		}
	}
}

func TestChecker_SendsUserAgent(t *testing.T) {
	var agent atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := testConfig()
	config.UserAgent = "scriptura-test/0.1"
	checker := NewChecker(config)

	if result := checker.CheckURI(context.Background(), server.URL); !result.IsSuccess() {
		t.Fatalf("CheckURI() = %+v", result)
	}
	if got, _ := agent.Load().(string); got != "scriptura-test/0.1" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestChecker_HeadFallback(t *testing.T) {
	var methods []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(testConfig())
	result := checker.CheckURI(context.Background(), server.URL+"/page/")

	if result.Status != StatusValid {
		t.Errorf("Status = %s, want valid", result.Status)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(methods) != 2 || methods[0] != http.MethodHead || methods[1] != http.MethodGet {
		t.Errorf("methods = %v, want [HEAD GET]", methods)
	}
}

func TestChecker_CachesPerPage(t *testing.T) {
	requestCount := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(testConfig())

	page := server.URL + "/books/psalms/23/"
	report := checker.Check(context.Background(), []LinkInput{
		{URI: page + "#v19023001", Citation: "Psalms 23:1"},
		{URI: page + "#v19023004", Citation: "Psalms 23:4"},
	})
	if report.Valid != 2 {
		t.Errorf("Valid = %d, want 2", report.Valid)
	}

	// A second run reuses the cache too.
	checker.Check(context.Background(), []LinkInput{{URI: page + "#v19023006"}})

	if got := atomic.LoadInt32(&requestCount); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
	if checker.CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", checker.CacheSize())
	}

	checker.ClearCache()
	checker.CheckURI(context.Background(), page)
	if got := atomic.LoadInt32(&requestCount); got != 2 {
		t.Errorf("request count after ClearCache = %d, want 2", got)
	}
}

func TestChecker_BuildErrorsSkipRequests(t *testing.T) {
	requestCount := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(testConfig())
	report := checker.Check(context.Background(), []LinkInput{
		{Citation: "John 3:16;4:1", BuildError: "citations spanning several chapters are not supported"},
	})

	if report.Errors != 1 {
		t.Errorf("Errors = %d, want 1", report.Errors)
	}
	if report.Broken[0].Citation != "John 3:16;4:1" {
		t.Errorf("Broken[0] = %+v", report.Broken[0])
	}
	if atomic.LoadInt32(&requestCount) != 0 {
		t.Errorf("request count = %d, want 0", requestCount)
	}
}

func TestChecker_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewChecker(testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	report := checker.Check(ctx, []LinkInput{
		{URI: server.URL + "/1"},
		{URI: server.URL + "/2"},
		{URI: server.URL + "/3"},
	})

	// Timing decides how many links were visited before the cancel.
	if report.Total > 3 {
		t.Errorf("Total = %d, want <= 3", report.Total)
	}
	if report.Valid == 3 {
		t.Error("all links resolved despite cancellation")
	}
}

func TestChecker_HostRateLimiting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := testConfig()
	config.RateLimit = 100 * time.Millisecond
	checker := NewChecker(config)

	start := time.Now()
	checker.Check(context.Background(), []LinkInput{
		{URI: server.URL + "/1"},
		{URI: server.URL + "/2"},
		{URI: server.URL + "/3"},
	})
	elapsed := time.Since(start)

	// Two intervals between three requests.
	if elapsed < 150*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 150ms", elapsed)
	}
}

func TestChecker_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := testConfig()
	config.Timeout = 100 * time.Millisecond
	config.MaxRetries = 0
	checker := NewChecker(config)

	report := checker.Check(context.Background(), []LinkInput{{URI: server.URL + "/slow"}})

	if report.Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1 (results: %+v)", report.Timeouts, report.Results)
	}
}

type stubClient func(req *http.Request) (*http.Response, error)

func (stub stubClient) Do(req *http.Request) (*http.Response, error) {
	return stub(req)
}

func TestChecker_RetriesTransportErrors(t *testing.T) {
	calls := int32(0)
	client := stubClient(func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	})

	config := testConfig()
	config.MaxRetries = 1
	checker := NewChecker(config, WithHTTPClient(client))

	result := checker.CheckURI(context.Background(), "https://www.jw.org/en/")
	if result.Status != StatusValid {
		t.Errorf("Status = %s, want valid after retry", result.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestChecker_GivesUpAfterRetries(t *testing.T) {
	calls := int32(0)
	client := stubClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("no route to host")
	})

	config := testConfig()
	config.MaxRetries = 1
	checker := NewChecker(config, WithHTTPClient(client))

	result := checker.CheckURI(context.Background(), "https://www.jw.org/en/")
	if result.Status != StatusError {
		t.Errorf("Status = %s, want error", result.Status)
	}
	if !strings.Contains(result.Error, "no route to host") {
		t.Errorf("Error = %q", result.Error)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestNewChecker_Defaults(t *testing.T) {
	checker := NewChecker(Config{RateLimit: -1, MaxRetries: -1})
	config := checker.Config()

	defaults := DefaultConfig()
	if config.Timeout != defaults.Timeout {
		t.Errorf("Timeout = %v, want %v", config.Timeout, defaults.Timeout)
	}
	if config.Concurrency != defaults.Concurrency {
		t.Errorf("Concurrency = %d, want %d", config.Concurrency, defaults.Concurrency)
	}
	if config.UserAgent != defaults.UserAgent {
		t.Errorf("UserAgent = %q", config.UserAgent)
	}
	if config.RateLimit != 0 || config.MaxRetries != 0 {
		t.Errorf("negative values not clamped: %+v", config)
	}
}

// --- Limiter tests ---

func TestHostLimiter_Spacing(t *testing.T) {
	limiter := &hostLimiter{interval: 50 * time.Millisecond}
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.wait(ctx); err != nil {
			t.Fatalf("wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 90ms", elapsed)
	}
}

func TestHostLimiter_Cancelled(t *testing.T) {
	limiter := &hostLimiter{interval: time.Hour}
	if err := limiter.wait(context.Background()); err != nil {
		t.Fatalf("first wait() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestHostLimiters_Get(t *testing.T) {
	limiters := newHostLimiters(time.Second)

	first := limiters.get("www.jw.org")
	if first != limiters.get("www.jw.org") {
		t.Error("expected the same limiter for the same host")
	}
	if first == limiters.get("wol.jw.org") {
		t.Error("expected a separate limiter per host")
	}
}

// --- Link building tests ---

func TestLinksFromText(t *testing.T) {
	english := locale.MustBuiltin().MustGet(locale.DefaultLocale)
	site, err := english.Site(locale.DefaultSite)
	if err != nil {
		t.Fatalf("Site() error = %v", err)
	}

	links := LinksFromText(english.Annotator(), "Read John 3:16 and John 3:16;4:1 then Psalms 23.", site)
	if len(links) != 3 {
		t.Fatalf("links = %+v, want 3", links)
	}

	if links[0].URI != "https://www.jw.org/en/library/bible/study-bible/books/john/3/#v43003016" {
		t.Errorf("links[0].URI = %q", links[0].URI)
	}
	if links[1].BuildError == "" || links[1].URI != "" {
		t.Errorf("links[1] = %+v, want a build error", links[1])
	}
	if links[1].Citation != "John 3:16;4:1" {
		t.Errorf("links[1].Citation = %q", links[1].Citation)
	}
	if links[2].URI != "https://www.jw.org/en/library/bible/study-bible/books/psalms/23/" {
		t.Errorf("links[2].URI = %q", links[2].URI)
	}
}

func TestDedupe(t *testing.T) {
	links := Dedupe([]LinkInput{
		{URI: "https://a.example/1", Citation: "first"},
		{URI: "https://a.example/1", Citation: "second"},
		{Citation: "broken", BuildError: "x"},
		{Citation: "broken again", BuildError: "x"},
		{URI: "https://a.example/2"},
	})

	if len(links) != 4 {
		t.Fatalf("Dedupe() = %+v, want 4 links", links)
	}
	if links[0].Citation != "first" {
		t.Errorf("kept %q, want the first citation", links[0].Citation)
	}
}
