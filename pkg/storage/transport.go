package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havenworks/docvault/internal/breaker"
	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/internal/ratelimiter"
	"github.com/havenworks/docvault/pkg/retry"
)

// TokenSource supplies the bearer credential for outbound requests.
// Implemented by auth.Manager; replaced by fakes in tests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// staticToken is a TokenSource for pre-issued credentials (tests, local
// development against an emulator).
type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }
func (staticToken) Invalidate()                             {}

// StaticTokenSource returns a TokenSource that always yields token.
func StaticTokenSource(token string) TokenSource {
	return staticToken(token)
}

// requestOptions modify one executor call.
type requestOptions struct {
	// jsonBody is marshalled to JSON; mutually exclusive with rawBody.
	jsonBody any

	// rawBody is sent verbatim (upload bytes). Bypasses JSON serialization.
	rawBody []byte

	// headers are added to the request.
	headers map[string]string

	// contentType overrides the derived Content-Type.
	contentType string
}

// response is the normalized result of a successful executor call.
// Empty (204) responses carry a nil body.
type response struct {
	status int
	body   []byte
	header http.Header
}

// decode unmarshals the response body into v. A 204 or empty body leaves v
// untouched rather than attempting to parse.
func (r *response) decode(v any) error {
	if r.status == http.StatusNoContent || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// executor issues authenticated HTTP calls against the remote API and
// normalizes every failure into an APIError. Each call is routed through the
// shared circuit breaker and the retry policy:
//
//   - before each attempt the breaker is consulted (fast-fail when open)
//   - transient failures (429, 5xx, transport faults) are retried with
//     exponential backoff, honoring a Retry-After hint verbatim
//   - an operation that succeeds records a breaker success; one that
//     exhausts its retries records a breaker failure
//   - permanent 4xx failures surface immediately and do not count against
//     the breaker
type executor struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	breaker *breaker.Breaker
	retry   retry.Config
	limiter *ratelimiter.Limiter
	metrics Metrics
}

// newHTTPClient builds the transport used for all operations. The timeout
// bounds one attempt; retries get a fresh window each.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// wireError is the remote API's error body shape.
type wireError struct {
	Error struct {
		Code       string          `json:"code"`
		Message    string          `json:"message"`
		InnerError json.RawMessage `json:"innerError,omitempty"`
	} `json:"error"`
}

// do executes one logical operation. pathOrURL is resolved against the base
// URL unless it is already absolute (upload-session URLs are absolute).
func (e *executor) do(ctx context.Context, method, pathOrURL string, opt requestOptions) (*response, error) {
	url := pathOrURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = e.baseURL + pathOrURL
	}

	cfg := e.retry.WithDefaults()
	var lastErr *APIError

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := e.breaker.Allow(); err != nil {
			return nil, &CircuitOpenError{}
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, &APIError{
					Kind:    KindTransient,
					Code:    "request_cancelled",
					Message: "cancelled while waiting for rate limiter",
					Err:     err,
				}
			}
		}

		resp, apiErr := e.attempt(ctx, method, url, opt)
		if apiErr == nil {
			e.breaker.RecordSuccess()
			e.publishBreakerState()
			return resp, nil
		}

		if apiErr.Kind != KindTransient {
			// Auth and permanent failures surface immediately and do not
			// count against the breaker.
			return nil, apiErr
		}

		lastErr = apiErr
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.DelayWithHint(attempt, apiErr.RetryAfter)
		logger.Warn("transient failure on %s %s (attempt %d/%d, status %d), retrying in %v",
			method, pathOrURL, attempt+1, cfg.MaxRetries+1, apiErr.Status, delay)
		e.metrics.IncRetry(method)

		if err := retry.Sleep(ctx, delay); err != nil {
			return nil, &APIError{
				Kind:    KindTransient,
				Code:    "request_cancelled",
				Message: "cancelled during retry backoff",
				Err:     err,
			}
		}
	}

	e.breaker.RecordFailure()
	e.publishBreakerState()
	logger.Error("%s %s failed after %d attempts: %v", method, pathOrURL, cfg.MaxRetries+1, lastErr)
	return nil, lastErr
}

// attempt performs a single network round trip. All failures come back as
// *APIError with the kind already decided.
func (e *executor) attempt(ctx context.Context, method, url string, opt requestOptions) (*response, *APIError) {
	var body io.Reader
	contentType := opt.contentType

	switch {
	case opt.rawBody != nil:
		body = bytes.NewReader(opt.rawBody)
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	case opt.jsonBody != nil:
		data, err := json.Marshal(opt.jsonBody)
		if err != nil {
			return nil, &APIError{
				Kind:    KindValidation,
				Code:    "encode_failed",
				Message: fmt.Sprintf("failed to encode request body: %v", err),
				Err:     err,
			}
		}
		body = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	token, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, &APIError{
			Kind:    KindAuthentication,
			Code:    "token_acquisition_failed",
			Message: err.Error(),
			Err:     err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &APIError{
			Kind:    KindValidation,
			Code:    "bad_request",
			Message: fmt.Sprintf("failed to build request: %v", err),
			Err:     err,
		}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("client-request-id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range opt.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := e.http.Do(req)
	if err != nil {
		e.metrics.ObserveRequest(method, 0, time.Since(start))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{
				Kind:    KindTransient,
				Code:    "request_cancelled",
				Message: err.Error(),
				Err:     err,
			}
		}
		// DNS failures, resets, timeouts: all transient connectivity faults.
		return nil, &APIError{
			Kind:    KindTransient,
			Code:    "network_error",
			Message: err.Error(),
			Err:     err,
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	e.metrics.ObserveRequest(method, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &APIError{
			Kind:    KindTransient,
			Status:  httpResp.StatusCode,
			Code:    "body_read_failed",
			Message: err.Error(),
			Err:     err,
		}
	}

	if httpResp.StatusCode < 300 {
		return &response{
			status: httpResp.StatusCode,
			body:   respBody,
			header: httpResp.Header,
		}, nil
	}

	if httpResp.StatusCode == http.StatusUnauthorized {
		// The cached token was rejected; drop it so the next operation
		// refreshes before failing the same way.
		e.tokens.Invalidate()
	}

	return nil, normalizeAPIError(httpResp.StatusCode, respBody, httpResp.Header)
}

// normalizeAPIError decodes the remote error body shape
// {error: {code, message, innerError?}} once, classifies the status and
// extracts the Retry-After hint.
func normalizeAPIError(status int, body []byte, header http.Header) *APIError {
	apiErr := &APIError{
		Status:  status,
		RawBody: body,
		Message: http.StatusText(status),
	}

	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && we.Error.Message != "" {
		apiErr.Code = we.Error.Code
		apiErr.Message = we.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		apiErr.Kind = KindTransient
		apiErr.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	default:
		apiErr.Kind = KindPermanent
	}

	return apiErr
}

// parseRetryAfter handles the delay-seconds form of the header. An
// unparsable value falls back to the computed backoff (zero duration).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (e *executor) publishBreakerState() {
	e.metrics.SetBreakerState(e.breaker.State().String())
}
