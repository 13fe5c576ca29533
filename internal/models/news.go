package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Logic selects how keywords are combined into search queries.
type Logic string

const (
	LogicOR  Logic = "OR"
	LogicAND Logic = "AND"
)

// ParseLogic maps request input to a Logic. Only the exact string "AND"
// selects AND; anything else is OR.
func ParseLogic(raw string) Logic {
	if raw == string(LogicAND) {
		return LogicAND
	}
	return LogicOR
}

// SearchParams is the validated input of a single search run.
type SearchParams struct {
	Keywords      []string
	CustomKeyword string
	Logic         Logic
	Display       int
	StartDate     string
	EndDate       string
}

// DateWindow is an inclusive time range.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window, both ends included.
func (w DateWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// RawNewsItem is a search hit as delivered by a fetch backend.
type RawNewsItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	PubDate     string `json:"pubDate"`
}

// ProcessedNewsItem is a cleaned search hit returned to the client.
type ProcessedNewsItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PubDate     string `json:"pubDate"`
	Description string `json:"description"`
}

// ResultSet maps each planned query to its processed items and keeps the
// order in which queries were first added.
type ResultSet struct {
	order  []string
	items  map[string][]ProcessedNewsItem
	window DateWindow
}

// NewResultSet returns an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{items: make(map[string][]ProcessedNewsItem)}
}

// Set stores items for query. A repeated query keeps its first position and
// takes the latest items.
func (r *ResultSet) Set(query string, items []ProcessedNewsItem) {
	if items == nil {
		items = []ProcessedNewsItem{}
	}
	if _, ok := r.items[query]; !ok {
		r.order = append(r.order, query)
	}
	r.items[query] = items
}

// Get returns the items stored for query.
func (r *ResultSet) Get(query string) ([]ProcessedNewsItem, bool) {
	items, ok := r.items[query]
	return items, ok
}

// Queries returns the stored queries in insertion order.
func (r *ResultSet) Queries() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SetWindow records the date window the items were filtered with.
func (r *ResultSet) SetWindow(w DateWindow) {
	r.window = w
}

// Window returns the date window the items were filtered with.
func (r *ResultSet) Window() DateWindow {
	return r.window
}

// Len returns the number of distinct queries.
func (r *ResultSet) Len() int {
	return len(r.order)
}

// MarshalJSON encodes the set as a JSON object with keys in insertion order.
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, query := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(query)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.items[query])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ArchivedNews is the document shape stored in the Elasticsearch news index.
type ArchivedNews struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
}
