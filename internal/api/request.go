package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// APIError represents a non-2xx HTTP response from the Deribit API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("deribit api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// RPCError is the JSON-RPC error object returned in the response envelope.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("deribit rpc error %d: %s", e.Code, e.Message)
}

// rpcResponse is the JSON-RPC envelope wrapping every result.
type rpcResponse[T any] struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  *T        `json:"result"`
	Error   *RPCError `json:"error"`
	UsIn    int64     `json:"usIn"`
	UsOut   int64     `json:"usOut"`
}

// doRequest performs an HTTP request with the given method and path.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := http.StatusText(resp.StatusCode)
		// Deribit reports the reason in the JSON-RPC error object even on 4xx.
		var env rpcResponse[struct{}]
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			msg = env.Error.Message
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    msg,
			Body:       body,
		}
	}

	return body, nil
}

// doWithRetry performs a request with exponential backoff retry.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Add jitter: backoff * (0.5 to 1.5)
			jitter := backoff
			if backoff > 0 {
				jitter = backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
			}
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", jitter,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}

		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// decodeResult unwraps the JSON-RPC envelope into result.
func decodeResult[T any](body []byte) (*T, error) {
	var env rpcResponse[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error
	}
	if env.Result == nil {
		return nil, errors.New("unexpected response: missing result")
	}
	return env.Result, nil
}

// get performs a GET request with retries and decodes the result.
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	return decodeResult[T](body)
}

// getOnce performs a single GET request and decodes the result.
// Callers that own their retry policy use this instead of get.
func getOnce[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path, query)
	if err != nil {
		return nil, err
	}
	return decodeResult[T](body)
}
