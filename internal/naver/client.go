package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/search"
)

// DefaultBaseURL is the Naver news search endpoint.
const DefaultBaseURL = "https://openapi.naver.com/v1/search/news.json"

// maxDisplay is the largest page the API serves.
const maxDisplay = 100

// Credentials identify the application to the Naver Open API.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Complete reports whether both values are present.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Client fetches news search results from Naver.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	log     *slog.Logger
}

var (
	_ search.Fetcher   = (*Client)(nil)
	_ search.Validator = (*Client)(nil)
)

type searchResponse struct {
	Total int64        `json:"total"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// New creates a client. An empty baseURL selects DefaultBaseURL and a nil
// httpClient selects http.DefaultClient.
func New(baseURL string, creds Credentials, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{baseURL: baseURL, creds: creds, http: httpClient, log: logger}
}

// Validate fails with search.ErrMissingCredentials when a key is blank.
func (c *Client) Validate() error {
	if !c.creds.Complete() {
		return search.ErrMissingCredentials
	}
	return nil
}

// Fetch returns up to limit items for query, newest first.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]models.RawNewsItem, error) {
	if limit <= 0 || limit > maxDisplay {
		limit = maxDisplay
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	params := u.Query()
	params.Set("query", query)
	params.Set("display", strconv.Itoa(limit))
	params.Set("sort", "date")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.creds.ClientID)
	req.Header.Set("X-Naver-Client-Secret", c.creds.ClientSecret)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("naver request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("naver search failed (status %d): %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}

	items := make([]models.RawNewsItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, models.RawNewsItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			PubDate:     it.PubDate,
		})
	}

	c.log.Debug("naver search", slog.String("query", query), slog.Int("items", len(items)), slog.Int64("total", parsed.Total))
	return items, nil
}
