package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/havenworks/docvault/internal/breaker"
	"github.com/havenworks/docvault/pkg/retry"
)

// fastRetry keeps test backoff in the millisecond range.
var fastRetry = retry.Config{
	MaxRetries: 3,
	BaseDelay:  time.Millisecond,
	MaxDelay:   10 * time.Millisecond,
}

// noRetry disables retrying entirely so each call is exactly one attempt.
var noRetry = retry.Config{MaxRetries: -1}

type fakeTokens struct {
	token       string
	err         error
	invalidated atomic.Int32
}

func (f *fakeTokens) Token(context.Context) (string, error) { return f.token, f.err }
func (f *fakeTokens) Invalidate()                           { f.invalidated.Add(1) }

func newTestExecutor(baseURL string, rc retry.Config, bc breaker.Config) (*executor, *fakeTokens) {
	tokens := &fakeTokens{token: "test-token"}
	return &executor{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
		tokens:  tokens,
		breaker: breaker.New(bc),
		retry:   rc,
		metrics: noopMetrics{},
	}, tokens
}

func TestDo_SuccessDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("client-request-id") == "" {
			t.Error("missing client-request-id header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"item-1","name":"report.pdf"}`))
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	resp, err := e.do(context.Background(), http.MethodGet, "/items/item-1", requestOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		t.Fatal(err)
	}
	if item.ID != "item-1" || item.Name != "report.pdf" {
		t.Errorf("decoded item = %+v", item)
	}
}

func TestDo_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	resp, err := e.do(context.Background(), http.MethodDelete, "/items/item-1", requestOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var item DriveItem
	if err := resp.decode(&item); err != nil {
		t.Fatal(err)
	}
	if item.ID != "" {
		t.Errorf("204 decode should leave target untouched, got %+v", item)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"itemNotFound","message":"The resource could not be found."}}`))
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	_, err := e.do(context.Background(), http.MethodGet, "/items/missing", requestOptions{})
	if err == nil {
		t.Fatal("expected error")
	}

	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if ae.Kind != KindPermanent || ae.Status != 404 {
		t.Errorf("kind=%v status=%d", ae.Kind, ae.Status)
	}
	if ae.Code != "itemNotFound" {
		t.Errorf("code = %q", ae.Code)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should match")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1 (no retries on 4xx)", got)
	}
	if e.breaker.Failures() != 0 {
		t.Error("permanent failure must not count against the breaker")
	}
}

func TestDo_TransientRetriedThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"c1","displayName":"Receipts"}`))
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	resp, err := e.do(context.Background(), http.MethodGet, "/containers/c1", requestOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var c Container
	if err := resp.decode(&c); err != nil {
		t.Fatal(err)
	}
	if c.ID != "c1" {
		t.Errorf("container = %+v", c)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hit %d times, want 3", got)
	}
	if e.breaker.Failures() != 0 {
		t.Error("eventual success must reset the breaker")
	}
}

func TestDo_ExhaustedRetriesCountOnceAgainstBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	_, err := e.do(context.Background(), http.MethodGet, "/containers", requestOptions{})
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := hits.Load(); got != 4 {
		t.Errorf("server hit %d times, want 4 (initial + 3 retries)", got)
	}
	if got := e.breaker.Failures(); got != 1 {
		t.Errorf("breaker failures = %d, want 1 per logical operation", got)
	}
}

func TestDo_ConsecutiveFailuresOpenCircuit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(srv.URL, noRetry, breaker.Config{Threshold: 5})

	for i := 0; i < 5; i++ {
		_, err := e.do(context.Background(), http.MethodGet, "/containers", requestOptions{})
		if !IsTransient(err) {
			t.Fatalf("call %d: expected transient error, got %v", i+1, err)
		}
	}

	if got := e.breaker.State(); got != breaker.StateOpen {
		t.Fatalf("breaker state = %v, want open after 5 failures", got)
	}

	before := hits.Load()
	_, err := e.do(context.Background(), http.MethodGet, "/containers", requestOptions{})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected CircuitOpenError, got %v", err)
	}
	if got := hits.Load(); got != before {
		t.Errorf("open circuit made a network attempt (%d -> %d hits)", before, got)
	}
}

func TestDo_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`))
	}))
	defer srv.Close()

	e, tokens := newTestExecutor(srv.URL, fastRetry, breaker.Config{})

	_, err := e.do(context.Background(), http.MethodGet, "/containers", requestOptions{})
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != 401 {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if tokens.invalidated.Load() != 1 {
		t.Error("401 must invalidate the cached token")
	}
}

func TestDo_TokenFailureSurfacedWithoutNetworkCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	e, tokens := newTestExecutor(srv.URL, fastRetry, breaker.Config{})
	tokens.err = errors.New("invalid_client")

	_, err := e.do(context.Background(), http.MethodGet, "/containers", requestOptions{})
	var ae *APIError
	if !errors.As(err, &ae) || ae.Kind != KindAuthentication {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Error("token failure must not reach the network")
	}
}

func TestDo_AbsoluteURLBypassesBase(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uploadUrl":"https://upload.example.test/s1"}`))
	}))
	defer other.Close()

	e, _ := newTestExecutor("http://unreachable.invalid", fastRetry, breaker.Config{})

	resp, err := e.do(context.Background(), http.MethodPut, other.URL+"/session", requestOptions{})
	if err != nil {
		t.Fatal(err)
	}

	var s UploadSession
	if err := resp.decode(&s); err != nil {
		t.Fatal(err)
	}
	if s.UploadURL == "" {
		t.Error("expected decoded upload session")
	}
}

func TestNormalizeAPIError_RetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "17")

	ae := normalizeAPIError(http.StatusTooManyRequests, []byte(`{"error":{"code":"activityLimitReached","message":"Throttled."}}`), h)
	if ae.Kind != KindTransient {
		t.Errorf("kind = %v", ae.Kind)
	}
	if ae.RetryAfter != 17*time.Second {
		t.Errorf("RetryAfter = %v", ae.RetryAfter)
	}
	if ae.Code != "activityLimitReached" {
		t.Errorf("code = %q", ae.Code)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{" 5 ", 5 * time.Second},
		{"-1", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAPIError_UnparsableBody(t *testing.T) {
	ae := normalizeAPIError(http.StatusBadGateway, []byte("<html>gateway error</html>"), http.Header{})
	if ae.Kind != KindTransient {
		t.Errorf("kind = %v", ae.Kind)
	}
	if ae.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q", ae.Message)
	}
	if string(ae.RawBody) != "<html>gateway error</html>" {
		t.Error("raw body must be preserved for diagnostics")
	}
}
