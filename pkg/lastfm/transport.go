package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// envelope is the <lfm> root of every API response.
type envelope struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

type apiError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const statusFailed = "failed"

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 4 << 20

// call signs and POSTs one API method and returns the inner XML of a
// successful response. Network failures, 5xx responses and temporary API
// errors are retried with exponential backoff.
func (c *Client) call(ctx context.Context, method string, params map[string]string, requiresAuth bool) ([]byte, error) {
	form, err := c.signedForm(method, params, requiresAuth)
	if err != nil {
		return nil, err
	}
	body := form.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0

	attempt := 0
	var result []byte
	op := func() error {
		attempt++
		c.debugf("lastfm: calling %s (attempt %d/%d)", method, attempt, c.maxRetries+1)

		inner, err := c.do(ctx, body)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = inner
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.debugf("lastfm: %s failed, retrying in %s: %v", method, wait, err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}

	c.debugf("lastfm: %s succeeded", method)
	return result, nil
}

func (c *Client) signedForm(method string, params map[string]string, requiresAuth bool) (url.Values, error) {
	signed := make(map[string]string, len(params)+3)
	for k, v := range params {
		signed[k] = v
	}
	signed["method"] = method
	signed["api_key"] = c.apiKey

	if requiresAuth {
		sk := c.GetSessionKey()
		if sk == "" {
			return nil, ErrNoSessionKey
		}
		signed["sk"] = sk
	}

	form := url.Values{}
	for k, v := range signed {
		form.Set(k, v)
	}
	form.Set("api_sig", calculateSignature(signed, c.apiSecret))
	return form, nil
}

// do performs a single request.
func (c *Client) do(ctx context.Context, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	if env.Status == statusFailed {
		var ae apiError
		if err := xml.Unmarshal(env.Inner, &ae); err != nil {
			return nil, fmt.Errorf("failed to parse error response: %w", err)
		}
		return nil, &Error{Code: ae.Code, Message: strings.TrimSpace(ae.Message)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	return env.Inner, nil
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
