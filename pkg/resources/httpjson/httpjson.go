// Package httpjson provides a Resource that GETs a JSON document from a REST
// endpoint. A non-2xx status or a body that is not JSON is a fetch error.
package httpjson

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"gitlab.com/tinyland/lab/livedash/pkg/credentials"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds a request when the caller supplies no client.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response is kept for the message.
const maxErrorBody = 256

// Config describes one endpoint.
type Config struct {
	// Name identifies the resource inside its view (e.g., "summary").
	Name string

	// BaseURL is the API origin, e.g. "http://localhost:8004".
	BaseURL string

	// Path is joined to BaseURL, e.g. "/api/v1/agents".
	Path string

	// Query holds optional query parameters.
	Query map[string]string
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("GET %s: %s: %s", e.URL, e.Status, e.Body)
}

// Resource fetches and decodes one endpoint.
type Resource struct {
	name   string
	url    string
	client *http.Client
	creds  credentials.Provider
}

// Option configures a Resource.
type Option func(*Resource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resource) { r.client = c }
}

// WithCredentials attaches a bearer token provider.
func WithCredentials(p credentials.Provider) Option {
	return func(r *Resource) { r.creds = p }
}

// New validates cfg and builds the request URL.
func New(cfg Config, opts ...Option) (*Resource, error) {
	if cfg.Name == "" {
		return nil, errors.New("httpjson: empty resource name")
	}
	u, err := BuildURL(cfg.BaseURL, cfg.Path, cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("httpjson: %s: %w", cfg.Name, err)
	}
	r := &Resource{
		name:   cfg.Name,
		url:    u,
		client: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// BuildURL joins base and path and encodes query. Query keys are sorted by
// url.Values.Encode, so the result is stable.
func BuildURL(base, path string, query map[string]string) (string, error) {
	if base == "" && !strings.HasPrefix(path, "http") {
		return "", errors.New("no base URL for relative path")
	}
	raw := path
	if base != "" {
		raw = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Name returns the resource name.
func (r *Resource) Name() string { return r.name }

// URL returns the full request URL.
func (r *Resource) URL() string { return r.url }

// Fetch performs the GET and decodes the body. Numbers decode as
// json.Number so integers render without a decimal point.
func (r *Resource) Fetch(ctx context.Context) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if r.creds != nil {
		tok, err := r.creds.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			URL:    r.url,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.url, err)
	}
	return out, nil
}
