package search

import (
	"strings"
	"time"

	"github.com/DeafMist/news-monitor/backend/internal/models"
)

// DateLayout is the request format of start_date and end_date.
const DateLayout = "2006-01-02"

const defaultLookbackDays = 14

// ReferenceZone is the fixed UTC+9 zone the news API reports in.
var ReferenceZone = time.FixedZone("KST", 9*60*60)

// DefaultWindow spans from midnight 14 days before now through now.
func DefaultWindow(now time.Time) models.DateWindow {
	local := now.In(ReferenceZone)
	from := local.AddDate(0, 0, -defaultLookbackDays)
	return models.DateWindow{
		Start: time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, ReferenceZone),
		End:   local,
	}
}

// ResolveWindow turns optional YYYY-MM-DD bounds into an inclusive window.
// A missing bound takes its default. A malformed bound, or a start after the
// end, yields the whole default window.
func ResolveWindow(startRaw, endRaw string, now time.Time) models.DateWindow {
	fallback := DefaultWindow(now)
	window := fallback

	if s := strings.TrimSpace(startRaw); s != "" {
		day, err := time.ParseInLocation(DateLayout, s, ReferenceZone)
		if err != nil {
			return fallback
		}
		window.Start = day
	}

	if e := strings.TrimSpace(endRaw); e != "" {
		day, err := time.ParseInLocation(DateLayout, e, ReferenceZone)
		if err != nil {
			return fallback
		}
		window.End = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, ReferenceZone)
	}

	if window.Start.After(window.End) {
		return fallback
	}
	return window
}
