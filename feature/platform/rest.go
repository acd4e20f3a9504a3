package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxRetryAfter caps how long a server-supplied Retry-After hint is honored.
const maxRetryAfter = 30 * time.Second

// restClient is the HTTP transport shared by every concrete adapter. It
// applies a per-request timeout, classifies responses into the platform
// error taxonomy and retries transient failures with capped exponential
// backoff. A 429 waits out the (bounded) Retry-After hint before the next
// attempt; that wait is separate from the sync queue's own retry counter.
type restClient struct {
	platform  string
	base      string
	client    *http.Client
	authorize func(*http.Request)
	logger    *zap.Logger
}

func newRESTClient(platformName, baseURL string, timeout time.Duration, authorize func(*http.Request), logger *zap.Logger) *restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	return &restClient{
		platform:  platformName,
		base:      baseURL,
		client:    &http.Client{Transport: transport, Timeout: timeout},
		authorize: authorize,
		logger:    logger,
	}
}

// do performs one API call. body is JSON-marshaled when non-nil; the
// response body is decoded into out when non-nil.
func (r *restClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	operation := func() error {
		return r.doOnce(ctx, method, path, query, body, out)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(operation, policy)
}

func (r *restClient) doOnce(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := r.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return backoff.Permanent(WrapError(CodeValidation, r.platform, err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return backoff.Permanent(WrapError(CodeAPI, r.platform, err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.authorize != nil {
		r.authorize(req)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Network-level failures are retryable upstream errors.
		return WrapError(CodeAPI, r.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(WrapError(CodeAPI, r.platform,
				fmt.Errorf("decoding %s %s response: %w", method, path, err)))
		}
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, string(snippet))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(NewError(CodeAuthFailed, r.platform, msg))
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return backoff.Permanent(NewError(CodeValidation, r.platform, msg))
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"))
		r.logger.Warn("Rate limited, honoring retry hint",
			zap.String("platform", r.platform),
			zap.Duration("wait", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return backoff.Permanent(WrapError(CodeRateLimit, r.platform, ctx.Err()))
		}
		return NewError(CodeRateLimit, r.platform, msg)
	default:
		return NewError(CodeAPI, r.platform, msg)
	}
}

// retryAfter parses a Retry-After header (seconds form), capped so a hostile
// or confused server cannot stall a dispatcher worker indefinitely.
func retryAfter(header string) time.Duration {
	wait := 2 * time.Second
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}
