// Package registry is the HTTP client for the remote skill catalog.
// The catalog is read-only to this process: descriptors are treated as
// immutable snapshots per fetch.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SkillDescriptor is the authoritative record for one skill as served
// by the registry.
type SkillDescriptor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ContentHash string    `json:"content_hash"`
	Version     string    `json:"version,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Page is one page of the skill listing.
type Page struct {
	Skills     []SkillDescriptor `json:"skills"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Total      int               `json:"total"`
}

// Client fetches skill descriptors from a registry endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a registry client. timeout applies per request; a
// timed-out fetch is a recoverable failure, not a fatal one.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListSkills fetches one page of skill descriptors.
func (c *Client) ListSkills(ctx context.Context, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/skills?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("registry error %d: %s", resp.StatusCode, string(b))
	}

	var result Page
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	if result.TotalPages < 1 {
		result.TotalPages = 1
	}
	return &result, nil
}
