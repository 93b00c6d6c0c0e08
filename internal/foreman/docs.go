package foreman

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// FetchDocument GETs a static page (apidoc or template documentation) below the
// base URL and returns its body unchanged.
func (c *Client) FetchDocument(ctx context.Context, path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.username, c.password)
	c.logger.Debug("Fetching document", zap.String("path", path))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("foreman GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError(req, resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(body), nil
}
