package search

import (
	"strings"

	"github.com/DeafMist/news-monitor/backend/internal/models"
)

// Plan expands keywords and an optional custom keyword into search queries.
// AND combines everything into a single query; OR issues one query per
// keyword followed by the custom keyword. Duplicates are kept.
func Plan(keywords []string, custom string, logic models.Logic) []string {
	custom = strings.TrimSpace(custom)

	if logic == models.LogicAND {
		parts := make([]string, 0, len(keywords)+1)
		parts = append(parts, keywords...)
		if custom != "" {
			parts = append(parts, custom)
		}
		combined := strings.Join(parts, " ")
		if strings.TrimSpace(combined) == "" {
			return []string{}
		}
		return []string{combined}
	}

	queries := make([]string, 0, len(keywords)+1)
	queries = append(queries, keywords...)
	if custom != "" {
		queries = append(queries, custom)
	}
	return queries
}
