package processing

import (
	"sort"
	"time"

	"github.com/DeafMist/news-monitor/backend/internal/dedupe"
	"github.com/DeafMist/news-monitor/backend/internal/models"
)

const (
	// PubDateLayout matches "Tue, 05 Mar 2024 14:03:00 +0900".
	PubDateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"
	// DisplayLayout is the pubDate format returned to clients.
	DisplayLayout = "2006-01-02 15:04:05"
)

type datedItem struct {
	raw models.RawNewsItem
	ts  time.Time
}

// ParsePubDate parses a search API publication date.
func ParsePubDate(raw string) (time.Time, bool) {
	ts, err := time.Parse(PubDateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Process turns the raw hits of one query into at most display items:
// undated and out-of-window hits are dropped, the rest are ordered newest
// first, and repeated links or near-identical titles keep only their first
// occurrence.
func Process(raw []models.RawNewsItem, window models.DateWindow, display int) []models.ProcessedNewsItem {
	dated := make([]datedItem, 0, len(raw))
	for _, item := range raw {
		ts, ok := ParsePubDate(item.PubDate)
		if !ok || !window.Contains(ts) {
			continue
		}
		dated = append(dated, datedItem{raw: item, ts: ts})
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].ts.After(dated[j].ts)
	})

	capacity := display
	if capacity < 0 {
		capacity = 0
	}
	if capacity > len(dated) {
		capacity = len(dated)
	}
	out := make([]models.ProcessedNewsItem, 0, capacity)
	seen := dedupe.NewTracker(dedupe.DefaultTitleThreshold)

	for _, d := range dated {
		if len(out) >= display {
			break
		}

		title := Sanitize(d.raw.Title)
		if seen.IsDuplicate(d.raw.Link, title) {
			continue
		}

		seen.MarkSeen(d.raw.Link, title)
		out = append(out, models.ProcessedNewsItem{
			Title:       title,
			Link:        d.raw.Link,
			PubDate:     d.ts.Format(DisplayLayout),
			Description: Sanitize(d.raw.Description),
		})
	}

	return out
}
