package dedupe

// DefaultTitleThreshold is the similarity at which two titles count as the
// same story.
const DefaultTitleThreshold = 0.8

// Tracker remembers the links and titles accepted for one result list.
// It is not safe for concurrent use; create one per list.
type Tracker struct {
	threshold float64
	links     map[string]struct{}
	titles    []string
}

// NewTracker creates a tracker using threshold for title similarity.
func NewTracker(threshold float64) *Tracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTitleThreshold
	}
	return &Tracker{
		threshold: threshold,
		links:     make(map[string]struct{}),
	}
}

// IsDuplicate returns true when link was already accepted or title is similar
// to an accepted title. It does not record anything; use MarkSeen().
func (t *Tracker) IsDuplicate(link, title string) bool {
	if _, ok := t.links[link]; ok {
		return true
	}
	for _, accepted := range t.titles {
		if Similar(title, accepted, t.threshold) {
			return true
		}
	}
	return false
}

// MarkSeen records an accepted item.
func (t *Tracker) MarkSeen(link, title string) {
	t.links[link] = struct{}{}
	t.titles = append(t.titles, title)
}
