// Package schemaclient implements schemacache.Loader against the schema
// service's HTTP read endpoint. This is a thin, stdlib net/http client:
// simple internal service-to-service GET calls don't warrant pulling in an
// HTTP client library.
package schemaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/99souls/harvester/internal/schema"
)

// Client resolves a schema by (schema_id, version) from the schema
// service's read API, implementing schemacache.Loader.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client against baseURL (e.g. "http://schema-service:8081").
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// Load fetches GET {baseURL}/schemas/{schema_id}?version={version} and
// decodes the response as a ParsingSchema.
func (c *Client) Load(ctx context.Context, schemaID, version string) (schema.ParsingSchema, error) {
	u, err := url.Parse(fmt.Sprintf("%s/schemas/%s", c.baseURL, url.PathEscape(schemaID)))
	if err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemaclient: build url: %w", err)
	}
	if version != "" {
		q := u.Query()
		q.Set("version", version)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemaclient: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemaclient: request %s: %w", schemaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return schema.ParsingSchema{}, fmt.Errorf("schemaclient: %s returned status %d", schemaID, resp.StatusCode)
	}

	var s schema.ParsingSchema
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return schema.ParsingSchema{}, fmt.Errorf("schemaclient: decode %s: %w", schemaID, err)
	}
	return s, nil
}
