package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const serperEndpoint = "https://google.serper.dev/search"

// SerperResult is one organic result from the Serper search API.
type SerperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type serperResponse struct {
	Organic []SerperResult `json:"organic"`
}

// SerperClient queries the Serper web search API.
type SerperClient struct {
	APIKey string
	HTTP   *http.Client
}

func NewSerperClient(apiKey string) *SerperClient {
	return &SerperClient{
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Search returns up to maxResults organic results for the query.
func (c *SerperClient) Search(ctx context.Context, query string, maxResults int) ([]SerperResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	payload, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, body)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := parsed.Organic
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for i := range results {
		// Some responses carry the address under "url" instead of "link".
		if results[i].Link == "" {
			results[i].Link = results[i].URL
		}
	}
	return results, nil
}
