package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cinetick/cinetick/internal/tenant"
	"github.com/cinetick/cinetick/pkg/apperrors"
	"github.com/cinetick/cinetick/pkg/logger"
)

// backendClient performs the raw HTTP exchange with a tenant backend. It
// knows nothing about entities: it builds tenant headers, executes the call
// and hands the body back for envelope decoding.
type backendClient struct {
	http     *http.Client
	registry *tenant.Registry
	l        logger.Logger
}

func newBackendClient(registry *tenant.Registry, timeout time.Duration, l logger.Logger) *backendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &backendClient{
		http:     &http.Client{Timeout: timeout},
		registry: registry,
		l:        l,
	}
}

// buildURL defaults to https; a domain carrying an explicit scheme (as some
// base_url announcements do) keeps it.
func (c *backendClient) buildURL(domain, path string, query url.Values) string {
	scheme := "https"
	if i := strings.Index(domain, "://"); i >= 0 {
		scheme, domain = domain[:i], domain[i+3:]
	}
	u := url.URL{Scheme: scheme, Host: domain, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *backendClient) get(ctx context.Context, op, tenantID, domain, path, token string, query url.Values) ([]byte, error) {
	return c.do(ctx, op, tenantID, http.MethodGet, domain, path, token, query, nil)
}

func (c *backendClient) postForm(ctx context.Context, op, tenantID, domain, path, token string, query, form url.Values) ([]byte, error) {
	return c.do(ctx, op, tenantID, http.MethodPost, domain, path, token, query, form)
}

func (c *backendClient) do(ctx context.Context, op, tenantID, method, domain, path, token string, query, form url.Values) ([]byte, error) {
	fullURL := c.buildURL(domain, path, query)

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", op, err)
	}

	headers, err := c.registry.BuildHeaders(tenantID, token)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewTransportError(op, fullURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewTransportError(op, fullURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewTransportError(op, fullURL,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	c.l.Debugf(ctx, "%s %s -> %d bytes", method, fullURL, len(raw))
	return stripBOM(raw), nil
}

// stripBOM removes a UTF-8 byte order mark; some regional backends prepend
// one to otherwise valid JSON.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
