// Package portal holds the HTTP session with the EAMS public search site.
//
// The site only answers searches after a short handshake: a HEAD on the base
// URL sets the JSESSIONID cookie, then the requester information form must be
// posted. Client performs that handshake, keeps the cookie jar, and serves
// detail pages to the expander through Fetch.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"eams/internal/metrics"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public EAMS web enhancement site.
	DefaultBaseURL = "https://eams.dwc.ca.gov/WebEnhancement/"

	pathInformationCapture = "InformationCapture"
	pathInjuredWorkerFind  = "InjuredWorkerFinder"

	sessionCookie = "JSESSIONID"
	maxErrorBody  = 4096
	maxPageBytes  = 16 << 20
)

// Requester is who the portal is told is searching.
type Requester struct {
	FirstName string
	LastName  string
	UAN       string
	Email     string
	Reason    string
}

// withDefaults fills the fields the portal requires.
func (r Requester) withDefaults() Requester {
	if r.FirstName == "" {
		r.FirstName = "test"
	}
	if r.LastName == "" {
		r.LastName = "test"
	}
	if r.Email == "" {
		r.Email = "admin@admin.com"
	}
	if r.Reason == "" {
		r.Reason = "APPORTIONMENT"
	}
	return r
}

func (r Requester) values() url.Values {
	return url.Values{
		"requesterFirstName": {r.FirstName},
		"requesterLastName":  {r.LastName},
		"UAN":                {r.UAN},
		"email":              {r.Email},
		"reason":             {r.Reason},
		"action":             {"Next"},
	}
}

// SearchForm is the injured worker search. Empty fields are sent empty.
type SearchForm struct {
	CaseNumber  string
	FirstName   string
	LastName    string
	DateOfBirth string
	City        string
	ZipCode     string
}

func (f SearchForm) values() url.Values {
	return url.Values{
		"caseNumber":  {f.CaseNumber},
		"firstName":   {f.FirstName},
		"lastName":    {f.LastName},
		"dateOfBirth": {f.DateOfBirth},
		"city":        {f.City},
		"zipCode":     {f.ZipCode},
		"action":      {"Search"},
	}
}

// Options configures a Client. Zero values pick the defaults noted.
type Options struct {
	BaseURL   string        // DefaultBaseURL
	Timeout   time.Duration // per attempt, 30s
	Retries   int           // retries on 5xx and transport errors, 0 = none
	RetryWait time.Duration // minimum backoff, 500ms
	RateLimit float64       // requests per second, 0 = unlimited
	UserAgent string

	// SessionID, when set, is installed as the JSESSIONID cookie so an
	// existing portal session is reused.
	SessionID string
	Requester Requester

	Cache *DiskCache // optional GET page cache
	Job   string     // metrics job label, "eams"

	Logger *zap.Logger
}

// Client is a portal session. It is safe for concurrent use once
// bootstrapped.
type Client struct {
	base      *url.URL
	http      *retryablehttp.Client
	jar       http.CookieJar
	limiter   *rate.Limiter
	userAgent string
	requester Requester
	cache     *DiskCache
	job       string
	log       *zap.Logger
	maxPage   int64
}

// New builds a Client. It performs no request; call Bootstrap before Search.
func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse base url: %q is not absolute", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	if opts.SessionID != "" {
		jar.SetCookies(base, []*http.Cookie{{Name: sessionCookie, Value: opts.SessionID, Path: base.Path}})
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = max(opts.Retries, 0)
	rc.RetryWaitMin = wait
	rc.RetryWaitMax = 30 * wait
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Jar = jar
	rc.HTTPClient.Timeout = timeout

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(int(opts.RateLimit), 1))
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "eams-extract/1.0"
	}
	job := opts.Job
	if job == "" {
		job = "eams"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		base:      base,
		http:      rc,
		jar:       jar,
		limiter:   limiter,
		userAgent: ua,
		requester: opts.Requester.withDefaults(),
		cache:     opts.Cache,
		job:       job,
		log:       log,
		maxPage:   maxPageBytes,
	}, nil
}

// Base returns a copy of the base URL.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

// SessionID returns the current JSESSIONID cookie value, "" if none.
func (c *Client) SessionID() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == sessionCookie {
			return ck.Value
		}
	}
	return ""
}

// Resolve turns a portal href into an absolute URL.
func (c *Client) Resolve(href string) (string, error) {
	u, err := c.base.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", href, err)
	}
	return u.String(), nil
}

// Bootstrap opens the session: HEAD on the base URL, then the requester
// information form.
func (c *Client) Bootstrap(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodHead, c.base.String(), nil); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	capture, _ := c.Resolve(pathInformationCapture)
	if _, err := c.do(ctx, http.MethodPost, capture, c.requester.values()); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	c.log.Info("portal session ready", zap.String("base", c.base.String()), zap.Bool("has_session", c.SessionID() != ""))
	return nil
}

// Search posts the injured worker search form and returns the results page.
func (c *Client) Search(ctx context.Context, form SearchForm) (string, error) {
	finder, _ := c.Resolve(pathInjuredWorkerFind)
	html, err := c.do(ctx, http.MethodPost, finder, form.values())
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	return html, nil
}

// Fetch GETs a portal page. Relative hrefs are resolved against the base URL.
// With a cache configured, cached pages are returned without a request.
func (c *Client) Fetch(ctx context.Context, href string) (string, error) {
	abs, err := c.Resolve(href)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		if html, ok := c.cache.Get(abs); ok {
			c.log.Debug("cache hit", zap.String("url", abs))
			return html, nil
		}
	}
	html, err := c.do(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return "", err
	}
	if c.cache != nil {
		if err := c.cache.Set(abs, html); err != nil {
			c.log.Warn("cache write failed", zap.String("url", abs), zap.Error(err))
		}
	}
	return html, nil
}

// do sends one request (with retries) and returns the decoded body.
func (c *Client) do(ctx context.Context, method, target string, form url.Values) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	var body any
	if form != nil {
		body = []byte(form.Encode())
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	reqDur := time.Since(start)
	if err != nil {
		metrics.RecordHTTP(c.job, 0, err, reqDur, 0, -1)
		return "", fmt.Errorf("http %s %s: %w", strings.ToLower(method), target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.RecordHTTP(c.job, resp.StatusCode, nil, reqDur, 0, int64(len(snippet)))
		return "", &StatusError{Method: method, URL: target, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	readStart := time.Now()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPage+1))
	metrics.RecordHTTP(c.job, resp.StatusCode, err, reqDur, time.Since(readStart), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(raw)) > c.maxPage {
		return "", fmt.Errorf("%w: %s %s exceeds %d bytes", ErrPageTooLarge, method, target, c.maxPage)
	}
	c.log.Debug("http", zap.String("method", method), zap.String("url", target),
		zap.Int("status", resp.StatusCode), zap.Int("bytes", len(raw)), zap.Duration("took", reqDur))

	if method == http.MethodHead {
		return "", nil
	}
	return decodeBody(raw, resp.Header.Get("Content-Type"))
}
