package elasticsearch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-monitor/backend/internal/elasticsearch"
)

type recorded struct {
	path string
	body map[string]any
}

func newServer(t *testing.T, status int, response string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec != nil && strings.HasSuffix(r.URL.Path, "/_search") {
			rec.path = r.URL.Path
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &rec.body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const searchResponse = `{
  "hits": {
    "total": {"value": 2},
    "hits": [
      {"_source": {"id": "1", "title": "<b>Archived</b> one", "link": "https://a/1", "description": "d1", "published_at": "2024-03-15T10:00:00+09:00", "source": "naver"}},
      {"_source": {"id": "2", "title": "Archived two", "link": "https://a/2", "description": "d2", "published_at": "2024-03-14T01:00:00Z", "source": "rss"}}
    ]
  }
}`

func TestFetch(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, searchResponse, rec)

	c, err := elasticsearch.New(srv.URL, "news-archive", nil)
	require.NoError(t, err)

	items, err := c.Fetch(context.Background(), "archived", 100)
	require.NoError(t, err)

	require.Equal(t, "/news-archive/_search", rec.path)
	require.EqualValues(t, 100, rec.body["size"])
	query := rec.body["query"].(map[string]any)
	require.Contains(t, query, "multi_match")

	require.Len(t, items, 2)
	require.Equal(t, "<b>Archived</b> one", items[0].Title)
	require.Equal(t, "https://a/1", items[0].Link)
	require.Equal(t, "Fri, 15 Mar 2024 10:00:00 +0900", items[0].PubDate)
	require.Equal(t, "Thu, 14 Mar 2024 01:00:00 +0000", items[1].PubDate)
}

func TestFetchEmptyQueryMatchesAll(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"hits":{"hits":[]}}`, rec)

	c, err := elasticsearch.New(srv.URL, "news-archive", nil)
	require.NoError(t, err)

	items, err := c.Fetch(context.Background(), "", 0)
	require.NoError(t, err)
	require.Empty(t, items)

	query := rec.body["query"].(map[string]any)
	require.Contains(t, query, "match_all")
	require.EqualValues(t, 100, rec.body["size"])
}

func TestFetchError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest, `{"error":"index_not_found_exception"}`, nil)

	c, err := elasticsearch.New(srv.URL, "missing", nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "q", 10)
	require.Error(t, err)
	require.Contains(t, err.Error(), "index_not_found_exception")
}

func TestHealth(t *testing.T) {
	ok := newServer(t, http.StatusOK, `{"status":"green"}`, nil)
	c, err := elasticsearch.New(ok.URL, "news", nil)
	require.NoError(t, err)
	require.NoError(t, c.Health(context.Background()))

	bad := newServer(t, http.StatusServiceUnavailable, `{"status":"red"}`, nil)
	c, err = elasticsearch.New(bad.URL, "news", nil)
	require.NoError(t, err)
	require.Error(t, c.Health(context.Background()))
}

func TestPing(t *testing.T) {
	ok := newServer(t, http.StatusOK, ``, nil)
	c, err := elasticsearch.New(ok.URL, "news", nil)
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))

	missing := newServer(t, http.StatusNotFound, ``, nil)
	c, err = elasticsearch.New(missing.URL, "news", nil)
	require.NoError(t, err)
	err = c.Ping(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
