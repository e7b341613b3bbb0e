package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// RemoteResult is one ranked fragment from the remote document-search back-end,
// keyed by an opaque file identifier
type RemoteResult struct {
	FileID     string  `json:"file_id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// RemoteSearchClient is the remote document-search contract
type RemoteSearchClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]RemoteResult, error)
}

// DocSearchClient queries the remote document-search service over HTTP
type DocSearchClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewDocSearchClientFromEnv builds the remote client, or returns nil when
// DOC_SEARCH_URL is unset so the remote retrieval path is skipped entirely
func NewDocSearchClientFromEnv() *DocSearchClient {
	baseURL := os.Getenv("DOC_SEARCH_URL")
	if baseURL == "" {
		return nil
	}
	return &DocSearchClient{
		baseURL: baseURL,
		apiKey:  os.Getenv("DOC_SEARCH_API_KEY"),
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type docSearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type docSearchResponse struct {
	Results []RemoteResult `json:"results"`
}

// Search runs a ranked document search against the remote back-end
func (c *DocSearchClient) Search(ctx context.Context, query string, maxResults int) ([]RemoteResult, error) {
	body, err := json.Marshal(docSearchRequest{Query: query, MaxResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/search", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document search error: %d", resp.StatusCode)
	}

	var apiResp docSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return apiResp.Results, nil
}
