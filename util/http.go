package util

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bundleminer/bundleminer/errors"
)

// DefaultHTTPTimeout applies when neither the client nor the context sets a deadline.
const DefaultHTTPTimeout = 30 * time.Second

// DoHTTPRequest performs a GET, or a JSON POST when a request body is given, and returns the
// response body. Non-2xx responses become coded errors: 404 is NOT_FOUND, 429 and 5xx are
// SERVICE_UNAVAILABLE, everything else is SERVICE_ERROR.
func DoHTTPRequest(ctx context.Context, client *http.Client, url string, requestBody ...[]byte) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	if _, ok := ctx.Deadline(); !ok && client.Timeout == 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, DefaultHTTPTimeout)
		defer cancel()
	}

	method := http.MethodGet

	var body io.Reader

	if len(requestBody) > 0 && requestBody[0] != nil {
		method = http.MethodPost
		body = bytes.NewReader(requestBody[0])
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.NewInvalidArgumentError("failed to create http request", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewNetworkTimeoutError("http request [%s] timed out", url, err)
		}

		return nil, errors.NewNetworkError("http request [%s] failed", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError("http request [%s] failed to read body", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errFn := errors.NewServiceError

		switch {
		case resp.StatusCode == http.StatusNotFound:
			errFn = errors.NewNotFoundError
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			errFn = errors.NewServiceUnavailableError
		}

		return nil, errFn("http request [%s] returned status code [%d] with body [%s]", url, resp.StatusCode, string(b))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return nil, errors.NewInvalidResponseError("http request [%s] returned HTML - assume bad URL", url)
	}

	return b, nil
}
