package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/search"
)

// Client searches a news archive index and serves as a fetch backend.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

var _ search.Fetcher = (*Client)(nil)

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger}, nil
}

// Ping checks that the archive cluster answers. It is used once at startup.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Fetch runs a full-text query over titles and descriptions and returns the
// newest limit documents as raw search hits.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]models.RawNewsItem, error) {
	if limit <= 0 {
		limit = search.DefaultFetchLimit
	}

	var q map[string]any
	if strings.TrimSpace(query) == "" {
		q = map[string]any{"match_all": map[string]any{}}
	} else {
		q = map[string]any{
			"multi_match": map[string]any{
				"query":    query,
				"fields":   []string{"title^2", "description"},
				"operator": "and",
			},
		}
	}

	body := map[string]any{
		"size":  limit,
		"query": q,
		"sort": []map[string]any{
			{"published_at": map[string]any{"order": "desc"}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.ArchivedNews `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.RawNewsItem, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		doc := hit.Source
		items = append(items, models.RawNewsItem{
			Title:       doc.Title,
			Link:        doc.Link,
			Description: doc.Description,
			PubDate:     doc.PublishedAt.Format(time.RFC1123Z),
		})
	}

	c.log.Debug("archive search", slog.String("query", query), slog.Int("items", len(items)))
	return items, nil
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
