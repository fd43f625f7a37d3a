package view

import "github.com/eris-support/triage-service/internal/domain"

// Stats counts tickets per status, category and sentiment.
type Stats struct {
	Total       int                         `json:"total"`
	ByStatus    map[domain.TicketStatus]int `json:"by_status"`
	ByCategory  map[domain.Category]int     `json:"by_category"`
	BySentiment map[domain.Sentiment]int    `json:"by_sentiment"`
}

// Count summarizes tickets. A ticket without a category counts as other.
func Count(tickets []domain.Ticket) Stats {
	stats := Stats{
		Total:       len(tickets),
		ByStatus:    map[domain.TicketStatus]int{},
		ByCategory:  map[domain.Category]int{},
		BySentiment: map[domain.Sentiment]int{},
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
		category := t.Category
		if category == "" {
			category = domain.CategoryOther
		}
		stats.ByCategory[category]++
		if t.Sentiment != "" {
			stats.BySentiment[t.Sentiment]++
		}
	}
	return stats
}
