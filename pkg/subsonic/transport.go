package subsonic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxResponseBody = 8 << 20

// envelope is the JSON root of every response.
type envelope struct {
	Response response `json:"subsonic-response"`
}

type response struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Error   *apiError `json:"error,omitempty"`

	Song          *Song          `json:"song,omitempty"`
	SearchResult3 *searchResult3 `json:"searchResult3,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type searchResult3 struct {
	Songs []Song `json:"song"`
}

// call performs a GET of one REST method, retrying temporary failures.
func (c *Client) call(ctx context.Context, method string, params url.Values) (*response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxInterval = 10 * time.Second
	policy.MaxElapsedTime = 0

	var result *response
	op := func() error {
		resp, err := c.do(ctx, method, params)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.debugf("subsonic: %s failed, retrying in %s: %v", method, wait, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method string, params url.Values) (*response, error) {
	q := c.authParams()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	u := *c.endpoint
	u.Path += method
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.debugf("subsonic: calling %s", method)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	r := &env.Response
	if r.Status != "ok" {
		if r.Error == nil {
			return nil, &Error{Code: ErrCodeGeneric, Message: "status " + r.Status}
		}
		return nil, &Error{Code: r.Error.Code, Message: r.Error.Message}
	}
	return r, nil
}

// retryable reports whether a failed attempt is worth repeating.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
