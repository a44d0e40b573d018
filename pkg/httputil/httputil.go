// Package httputil is a thin helper around net/http used by the explorer
// clients.
package httputil

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client wraps an http.Client with a sane default timeout.
type Client struct {
	inner *http.Client
}

// NewClient returns a Client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{inner: &http.Client{Timeout: timeout}}
}

// NewHTTPRequest performs the request and returns the response status code
// and body.
func (c *Client) NewHTTPRequest(
	method, url, bodyString string, header map[string]string,
) (int, string, error) {
	switch method {
	case http.MethodGet:
		return c.do(http.MethodGet, url, "", header)
	case http.MethodPost:
		return c.do(http.MethodPost, url, bodyString, header)
	default:
		return 0, "", fmt.Errorf("verb not supported %s", method)
	}
}

func (c *Client) do(
	method, url, bodyString string, header map[string]string,
) (int, string, error) {
	var body io.Reader
	if len(bodyString) > 0 {
		body = strings.NewReader(bodyString)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.inner.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}

	return rs.StatusCode, string(bodyBytes), nil
}
