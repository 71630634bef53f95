package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"opsagent/internal/config"
)

// HTTPConnector calls one REST-style domain API. Each configured endpoint
// name maps to a path under the base URL; calls POST a JSON params object.
type HTTPConnector struct {
	name      string
	baseURL   string
	authToken string
	endpoints map[string]string
	client    *http.Client
}

func NewHTTPConnector(entry config.ConnectorEntry) *HTTPConnector {
	return &HTTPConnector{
		name:      entry.Name,
		baseURL:   strings.TrimRight(entry.BaseURL, "/"),
		authToken: entry.AuthToken,
		endpoints: entry.Endpoints,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPConnector) Name() string { return c.name }

func (c *HTTPConnector) Endpoints() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *HTTPConnector) Call(ctx context.Context, endpoint string, params map[string]any) (*Response, error) {
	path, ok := c.endpoints[endpoint]
	if !ok {
		return nil, fmt.Errorf("connector %s has no endpoint %q", c.name, endpoint)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connector %s call %s: %w", c.name, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("connector %s endpoint %s: HTTP %d: %s", c.name, endpoint, resp.StatusCode, truncate(string(raw), 200))
	}

	data := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			// Non-JSON body is still a usable result.
			data = map[string]any{"raw": string(raw)}
		}
	}
	return &Response{Success: true, Data: data}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// BuildRegistry constructs a registry from configuration.
func BuildRegistry(entries []config.ConnectorEntry) *Registry {
	r := NewRegistry()
	for _, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		r.Register(NewHTTPConnector(entry))
	}
	return r
}
