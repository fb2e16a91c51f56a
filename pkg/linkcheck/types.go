// Package linkcheck verifies that generated study-site links resolve, with
// per-host rate limiting, a result cache and report generation.
package linkcheck

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Status is the outcome of checking one link.
type Status string

const (
	StatusValid    Status = "valid"
	StatusRedirect Status = "redirect"
	StatusInvalid  Status = "invalid"
	StatusTimeout  Status = "timeout"
	StatusError    Status = "error"
)

// LinkInput is a link to check and the citation it was built from.
type LinkInput struct {
	URI      string `json:"uri"`
	Citation string `json:"citation,omitempty"`

	// BuildError is set when no URI could be built for Citation.
	BuildError string `json:"build_error,omitempty"`
}

// Result captures the outcome of checking a single link.
type Result struct {
	URI          string    `json:"uri"`
	Citation     string    `json:"citation,omitempty"`
	Status       Status    `json:"status"`
	StatusCode   int       `json:"status_code,omitempty"`
	RedirectURI  string    `json:"redirect_uri,omitempty"`
	Error        string    `json:"error,omitempty"`
	ResponseTime int64     `json:"response_time_ms"`
	CheckedAt    time.Time `json:"checked_at"`
	Host         string    `json:"host"`
}

// IsSuccess reports whether the link resolved.
func (result *Result) IsSuccess() bool {
	return result.Status == StatusValid || result.Status == StatusRedirect
}

// describe returns the error text, falling back to the HTTP status.
func (result *Result) describe() string {
	if result.Error == "" && result.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d", result.StatusCode)
	}
	return result.Error
}

// Config controls a Checker.
type Config struct {
	// Timeout bounds each HTTP request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RateLimit is the minimum interval between requests to one host.
	RateLimit time.Duration `json:"rate_limit" yaml:"rate_limit"`

	// MaxRetries is the number of retries after a timeout or transport error.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Concurrency is the number of hosts checked at the same time.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// UserAgent is sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// CacheTTL is how long a page result is reused.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// DefaultConfig returns a Config with polite defaults for public study sites.
func DefaultConfig() Config {
	return Config{
		Timeout:     15 * time.Second,
		RateLimit:   500 * time.Millisecond,
		MaxRetries:  2,
		Concurrency: 3,
		UserAgent:   "scriptura-linkcheck/1.0",
		CacheTTL:    time.Hour,
	}
}

// Report is the outcome of a batch check.
type Report struct {
	Total    int `json:"total"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Timeouts int `json:"timeouts"`
	Errors   int `json:"errors"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	Hosts   map[string]*HostStats `json:"hosts"`
	Results []*Result             `json:"results"`
	Broken  []*Result             `json:"broken"`
}

// HostStats aggregates results for one host.
type HostStats struct {
	Host        string `json:"host"`
	Total       int    `json:"total"`
	Valid       int    `json:"valid"`
	Broken      int    `json:"broken"`
	AvgResponse int64  `json:"avg_response_ms"`
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		StartedAt: time.Now(),
		Hosts:     make(map[string]*HostStats),
		Results:   make([]*Result, 0),
		Broken:    make([]*Result, 0),
	}
}

// Add records a result and updates the counters.
func (report *Report) Add(result *Result) {
	report.Results = append(report.Results, result)
	report.Total++

	switch result.Status {
	case StatusValid, StatusRedirect:
		report.Valid++
	case StatusInvalid:
		report.Invalid++
	case StatusTimeout:
		report.Timeouts++
	case StatusError:
		report.Errors++
	}
	if !result.IsSuccess() {
		report.Broken = append(report.Broken, result)
	}

	stats, ok := report.Hosts[result.Host]
	if !ok {
		stats = &HostStats{Host: result.Host}
		report.Hosts[result.Host] = stats
	}
	stats.Total++
	if result.IsSuccess() {
		stats.Valid++
	} else {
		stats.Broken++
	}
	if result.ResponseTime > 0 {
		previous := stats.AvgResponse * int64(stats.Total-1)
		stats.AvgResponse = (previous + result.ResponseTime) / int64(stats.Total)
	}
}

// Finalize stamps the completion time and sorts the results by URI.
func (report *Report) Finalize() {
	report.CompletedAt = time.Now()
	report.DurationMs = report.CompletedAt.Sub(report.StartedAt).Milliseconds()

	byURI := func(results []*Result) func(i, j int) bool {
		return func(i, j int) bool {
			if results[i].URI == results[j].URI {
				return results[i].Citation < results[j].Citation
			}
			return results[i].URI < results[j].URI
		}
	}
	sort.SliceStable(report.Results, byURI(report.Results))
	sort.SliceStable(report.Broken, byURI(report.Broken))
}

// OK reports whether every link resolved.
func (report *Report) OK() bool {
	return len(report.Broken) == 0
}

// SuccessRate returns the percentage of links that resolved.
func (report *Report) SuccessRate() float64 {
	if report.Total == 0 {
		return 100.0
	}
	return float64(report.Valid) / float64(report.Total) * 100.0
}

// ToJSON serializes the report.
func (report *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// ToMarkdown renders the report as Markdown.
func (report *Report) ToMarkdown() string {
	var builder strings.Builder

	builder.WriteString("# Scripture Link Report\n\n")
	builder.WriteString("## Summary\n\n")
	builder.WriteString(fmt.Sprintf("- **Total Links**: %d\n", report.Total))
	builder.WriteString(fmt.Sprintf("- **Valid**: %d\n", report.Valid))
	builder.WriteString(fmt.Sprintf("- **Invalid**: %d\n", report.Invalid))
	builder.WriteString(fmt.Sprintf("- **Timeouts**: %d\n", report.Timeouts))
	builder.WriteString(fmt.Sprintf("- **Errors**: %d\n", report.Errors))
	builder.WriteString(fmt.Sprintf("- **Success Rate**: %.1f%%\n", report.SuccessRate()))
	builder.WriteString(fmt.Sprintf("- **Duration**: %dms\n\n", report.DurationMs))

	if len(report.Hosts) > 0 {
		builder.WriteString("## Hosts\n\n")
		builder.WriteString("| Host | Total | Valid | Broken | Avg Response |\n")
		builder.WriteString("|------|-------|-------|--------|--------------|\n")

		hosts := make([]string, 0, len(report.Hosts))
		for host := range report.Hosts {
			hosts = append(hosts, host)
		}
		sort.Strings(hosts)

		for _, host := range hosts {
			stats := report.Hosts[host]
			builder.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %dms |\n",
				displayHost(host), stats.Total, stats.Valid, stats.Broken, stats.AvgResponse))
		}
		builder.WriteString("\n")
	}

	if len(report.Broken) > 0 {
		builder.WriteString("## Broken Links\n\n")
		builder.WriteString("| Citation | URI | Status | Error |\n")
		builder.WriteString("|----------|-----|--------|-------|\n")
		for _, result := range report.Broken {
			citation := result.Citation
			if citation == "" {
				citation = "-"
			}
			uri := result.URI
			if uri == "" {
				uri = "-"
			}
			builder.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				citation, uri, result.Status, result.describe()))
		}
		builder.WriteString("\n")
	}

	return builder.String()
}

// String returns a plain-text summary.
func (report *Report) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("%d links checked: %d valid, %d invalid, %d timeouts, %d errors (%.1f%%)\n",
		report.Total, report.Valid, report.Invalid, report.Timeouts, report.Errors, report.SuccessRate()))

	for _, result := range report.Broken {
		label := result.URI
		if result.Citation != "" {
			label = result.Citation + " -> " + label
		}
		builder.WriteString(fmt.Sprintf("  - %s: %s (%s)\n", label, result.Status, result.describe()))
	}

	return builder.String()
}

// HostOf returns the host of uri, or "" when it cannot be parsed.
func HostOf(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// pageOf strips the fragment: every verse anchor on a chapter page shares
// one request.
func pageOf(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	return parsed.String()
}

func displayHost(host string) string {
	if host == "" {
		return "-"
	}
	return host
}
