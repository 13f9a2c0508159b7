// Package httpx builds the HTTP client used by the wiki scraper.
package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultRetryMax  = 2
)

// Transport sets a browser User-Agent on every request and retries
// replayable requests on transport errors. HTTP status codes are never
// retried.
type Transport struct {
	Base      http.RoundTripper
	UserAgent string
	// RetryMax excludes the first attempt: 2 means at most 3 attempts.
	RetryMax int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}

		resp, err := base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

type Options struct {
	Timeout   time.Duration
	UserAgent string
	ProxyURL  string
}

// NewClient returns a client with an overall timeout and the retrying
// Transport. Zero-valued options fall back to the defaults.
func NewClient(opts Options) (*http.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: ua,
			RetryMax:  defaultRetryMax,
		},
		Timeout: timeout,
	}, nil
}
