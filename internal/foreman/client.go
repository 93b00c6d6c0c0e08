// Package foreman provides a minimal client for the Foreman REST API.
package foreman

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single HTTP exchange when no client is supplied.
const DefaultTimeout = 30 * time.Second

// Record is a decoded Foreman JSON object: an index envelope or a single entity.
type Record = map[string]any

// Config holds the connection settings for a Foreman instance.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	VerifySSL bool
}

// Client talks to one Foreman instance. It is safe for concurrent use; nothing
// in it changes after New returns.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	username string
	password string
	logger   *zap.Logger
	catalog  *catalog
}

// New returns a client for cfg and loads the service catalog from the instance's
// apidoc. If httpClient is nil, a default with DefaultTimeout and TLS
// verification following cfg.VerifySSL is used.
func New(ctx context.Context, cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("foreman url missing")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid foreman url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.VerifySSL},
			},
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		BaseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		HTTP:     httpClient,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger.Named("foreman"),
	}
	cat, err := c.loadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load apidoc: %w", err)
	}
	c.catalog = cat
	c.logger.Info("Loaded Foreman service catalog", zap.Int("resources", len(cat.names)))
	return c, nil
}

// Resources lists the resource collections described by the instance's apidoc.
func (c *Client) Resources() []string {
	out := make([]string, len(c.catalog.names))
	copy(out, c.catalog.names)
	return out
}

// ResourceAction performs a named action (index, show, ...) on a resource
// collection. Route placeholders are filled from params; the remaining params
// become the query string for GET and DELETE and a JSON body otherwise.
func (c *Client) ResourceAction(ctx context.Context, resource, action string, params map[string]any) (Record, error) {
	rt, err := c.catalog.route(resource, action, params)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	reqURL := c.BaseURL + rt.path
	switch rt.method {
	case http.MethodGet, http.MethodDelete:
		if len(rt.rest) > 0 {
			q := url.Values{}
			for k, v := range rt.rest {
				q.Set(k, formatParam(v))
			}
			reqURL += "?" + q.Encode()
		}
	default:
		buf, err := json.Marshal(rt.rest)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, rt.method, reqURL, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.logger.Debug("Resource action",
		zap.String("resource", resource),
		zap.String("action", action),
		zap.String("method", rt.method),
		zap.String("path", rt.path))

	var rec Record
	if err := c.do(req, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// do sends req with credentials and decodes a JSON reply into out.
func (c *Client) do(req *http.Request, out any) error {
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json;version=2")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("foreman %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(req, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// Results returns the entities of an index envelope. ok is false when r has no
// results list, e.g. because it is a single entity.
func Results(r Record) (out []Record, ok bool) {
	raw, ok := r["results"].([]any)
	if !ok {
		return nil, false
	}
	out = make([]Record, 0, len(raw))
	for _, it := range raw {
		if m, isMap := it.(map[string]any); isMap {
			out = append(out, m)
		}
	}
	return out, true
}

// Paging reads the subtotal and page size from an index envelope. Both are zero
// when the envelope does not carry them.
func Paging(r Record) (subtotal, perPage int) {
	return intField(r, "subtotal"), intField(r, "per_page")
}

// String returns a string field of r, or "" if missing or not a string.
func String(r Record, key string) string {
	if r == nil {
		return ""
	}
	if v, ok := r[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		}
	}
	return ""
}

// ID returns the integer id of an entity.
func ID(r Record) (int, bool) {
	switch t := r["id"].(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func intField(r Record, key string) int {
	switch t := r[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	}
	return 0
}

func formatParam(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return fmt.Sprint(v)
}
