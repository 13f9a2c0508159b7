package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Timeout != DefaultTimeout {
		t.Fatalf("expected default timeout, got %v", c.Timeout)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("expected *Transport, got %T", c.Transport)
	}
	if tr.UserAgent != DefaultUserAgent {
		t.Fatalf("unexpected user agent: %q", tr.UserAgent)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatal("expected error for invalid proxy url")
	}
}

func TestTransport_SetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewClient(Options{Timeout: 5 * time.Second, UserAgent: "yt-ingest-test"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if got != "yt-ingest-test" {
		t.Fatalf("expected user agent to be set, got %q", got)
	}
}

func TestTransport_RetriesTransportErrors(t *testing.T) {
	attempts := 0
	tr := &Transport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return nil, errors.New("connection reset by peer")
		}),
		RetryMax: 2,
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestTransport_DoesNotRetryPost(t *testing.T) {
	attempts := 0
	tr := &Transport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return nil, errors.New("boom")
		}),
		RetryMax: 2,
	}
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/", http.NoBody)
	_, _ = tr.RoundTrip(req)
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}
