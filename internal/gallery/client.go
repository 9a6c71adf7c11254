package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mingjobo/piximagegenerator/internal/models"
)

// Page is one normalized page of gallery results.
type Page struct {
	Works      []models.Work
	HasMore    bool
	NextCursor *string
}

// Fetcher retrieves pages from the gallery read endpoint. Implemented by
// *Client; the engine and scheduler accept the interface so tests can
// substitute a fake.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor *string, limit int) (Page, error)
}

var _ Fetcher = (*Client)(nil)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the gallery HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client for the given base URL (scheme://host[:port]).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

type galleryResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Works      []models.Work `json:"works"`
		HasMore    bool          `json:"has_more"`
		NextCursor *string       `json:"next_cursor"`
	} `json:"data"`
}

// FetchPage retrieves up to limit works older than cursor. A nil cursor
// starts from the newest. The call has no side effects on any store;
// callers are responsible for serializing overlapping requests.
func (c *Client) FetchPage(ctx context.Context, cursor *string, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("limit must be positive, got %d", limit)
	}

	values := url.Values{}
	values.Set("limit", strconv.Itoa(limit))
	if cursor != nil {
		values.Set("cursor", *cursor)
	}

	endpoint := c.baseURL + "/api/gallery?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Page{}, fmt.Errorf("failed to build gallery request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("gallery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Page{}, fmt.Errorf("gallery request returned status %d", resp.StatusCode)
	}

	var payload galleryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Page{}, fmt.Errorf("failed to decode gallery response: %w", err)
	}
	if payload.Code != 0 {
		return Page{}, fmt.Errorf("gallery request rejected: %s", payload.Message)
	}

	return Page{
		Works:      payload.Data.Works,
		HasMore:    payload.Data.HasMore,
		NextCursor: payload.Data.NextCursor,
	}, nil
}
