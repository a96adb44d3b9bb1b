package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Epistemic-Technology/rfp-mcp/internal/documents"
	"github.com/Epistemic-Technology/rfp-mcp/models"
)

const (
	defaultEndpoint = "https://google.serper.dev/search"
	defaultResults  = 5
)

// ErrNotConfigured is returned when no search API key is set.
var ErrNotConfigured = errors.New("web search is not configured")

// Result is one organic search hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// SerperClient queries the Serper Google search API.
type SerperClient struct {
	endpoint string
	apiKey   string
	results  int
	http     *http.Client
}

// NewSerperClient creates a client. An empty endpoint uses the public API.
func NewSerperClient(apiKey, endpoint string, client *http.Client) *SerperClient {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &SerperClient{endpoint: endpoint, apiKey: apiKey, results: defaultResults, http: client}
}

// Enabled reports whether searches can be made.
func (c *SerperClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Search returns the organic results for query.
func (c *SerperClient) Search(ctx context.Context, query string) ([]Result, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	body, err := json.Marshal(map[string]any{"q": query, "num": c.results})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var payload struct {
		Organic []Result `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Organic, nil
}

// FetchText downloads a page and returns its visible text.
func (c *SerperClient) FetchText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "rfp-mcp/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	return documents.HTMLText(resp.Body)
}

var pitchNearWord = regexp.MustCompile(`(?i)(?:pixel\s*pitch|pitch)[^0-9\n]{0,25}(\d+(?:\.\d+)?)\s*mm|(\d+(?:\.\d+)?)\s*mm\s+(?:pixel\s+)?pitch`)

// LookupPitch searches for a product line's pixel pitch. Snippets are tried
// first; the top result page is fetched only when no snippet states a pitch.
func (c *SerperClient) LookupPitch(ctx context.Context, productType string) (models.Extracted[float64], error) {
	results, err := c.Search(ctx, fmt.Sprintf("%s LED display pixel pitch mm", productType))
	if err != nil {
		return models.Extracted[float64]{}, err
	}
	for _, r := range results {
		if v, ok := PitchFromText(r.Title + " " + r.Snippet); ok {
			return models.Extracted[float64]{Value: &v, Confidence: 0.5}, nil
		}
	}
	if len(results) == 0 || results[0].Link == "" {
		return models.Extracted[float64]{}, nil
	}
	text, err := c.FetchText(ctx, results[0].Link)
	if err != nil {
		return models.Extracted[float64]{}, err
	}
	if v, ok := PitchFromText(text); ok {
		return models.Extracted[float64]{Value: &v, Confidence: 0.4}, nil
	}
	return models.Extracted[float64]{}, nil
}

// PitchFromText finds a pitch stated next to the word "pitch".
func PitchFromText(text string) (float64, bool) {
	for _, m := range pitchNearWord.FindAllStringSubmatch(text, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil && v >= 0.5 && v <= 50 {
			return v, true
		}
	}
	return 0, false
}
