// Package view derives the ordered, filtered ticket projections used by the
// table and export endpoints. Functions here never mutate their input.
package view

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/eris-support/triage-service/internal/domain"
	apperrors "github.com/eris-support/triage-service/pkg/util/errorutil"
)

// SortDir is the ordering direction.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// Defaults used by the ticket table when the caller omits them.
const (
	DefaultSortKey = "date_received"
	DefaultSortDir = Desc
)

type comparator func(a, b domain.Ticket) int

var comparators = map[string]comparator{
	"id": func(a, b domain.Ticket) int { return compareIDs(a.ID, b.ID) },
	"date_received": func(a, b domain.Ticket) int {
		return a.DateReceived.Compare(b.DateReceived)
	},
	"full_name": byString(func(t domain.Ticket) string { return t.FullName }),
	"company":   byString(func(t domain.Ticket) string { return t.Company }),
	"phone":     byString(func(t domain.Ticket) string { return t.Phone }),
	"email":     byString(func(t domain.Ticket) string { return t.Email }),
	"device_serials": byString(func(t domain.Ticket) string {
		return strings.Join(t.DeviceSerials, ",")
	}),
	"device_type": byString(func(t domain.Ticket) string { return t.DeviceType }),
	"sentiment":   byString(func(t domain.Ticket) string { return string(t.Sentiment) }),
	"category":    byString(func(t domain.Ticket) string { return string(t.Category) }),
	"summary":     byString(func(t domain.Ticket) string { return t.Summary }),
	"status":      byString(func(t domain.Ticket) string { return string(t.Status) }),
}

// SortKeys lists the accepted sort keys in table column order.
var SortKeys = []string{
	"id", "date_received", "full_name", "company", "phone", "email",
	"device_serials", "device_type", "sentiment", "category", "summary", "status",
}

func byString(field func(domain.Ticket) string) comparator {
	return func(a, b domain.Ticket) int { return strings.Compare(field(a), field(b)) }
}

// compareIDs orders integer ids numerically and anything else as text.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a, b)
}

// ParseDir validates a direction; empty means ascending.
func ParseDir(dir string) (SortDir, error) {
	switch SortDir(strings.ToLower(strings.TrimSpace(dir))) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", apperrors.NewInvalidInput("unknown sort direction", map[string]any{"dir": dir})
}

// Matches reports whether the searchable text of t contains filter,
// ignoring case. An empty filter matches every ticket.
func Matches(t domain.Ticket, filter string) bool {
	if filter == "" {
		return true
	}
	haystack := strings.Join([]string{t.FullName, t.Company, t.Email, t.Summary, t.DeviceType}, " ")
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(filter))
}

// View filters tickets by filterText and sorts the result stably by sortKey.
// Ties keep their input order in both directions.
func View(tickets []domain.Ticket, filterText, sortKey string, sortDir SortDir) ([]domain.Ticket, error) {
	compare, ok := comparators[sortKey]
	if !ok {
		return nil, apperrors.NewInvalidInput("unknown sort key", map[string]any{"sort": sortKey})
	}
	dir, err := ParseDir(string(sortDir))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if Matches(t, filterText) {
			out = append(out, t.Clone())
		}
	}
	if dir == Desc {
		slices.SortStableFunc(out, func(a, b domain.Ticket) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(out, compare)
	}
	return out, nil
}

// Query is the full set of table controls accepted by the list endpoint.
type Query struct {
	Text      string
	Sort      string
	Dir       string
	Status    domain.TicketStatus
	Sentiment domain.Sentiment
	Category  domain.Category
}

// Apply narrows tickets by the exact-match fields, then delegates to View.
// An empty Sort falls back to DefaultSortKey with DefaultSortDir.
func (q Query) Apply(tickets []domain.Ticket) ([]domain.Ticket, error) {
	sortKey, dir := q.Sort, q.Dir
	if sortKey == "" {
		sortKey = DefaultSortKey
		if dir == "" {
			dir = string(DefaultSortDir)
		}
	}

	narrowed := tickets
	if q.Status != "" || q.Sentiment != "" || q.Category != "" {
		narrowed = make([]domain.Ticket, 0, len(tickets))
		for _, t := range tickets {
			if q.Status != "" && t.Status != q.Status {
				continue
			}
			if q.Sentiment != "" && t.Sentiment != q.Sentiment {
				continue
			}
			if q.Category != "" && t.Category != q.Category {
				continue
			}
			narrowed = append(narrowed, t)
		}
	}
	return View(narrowed, q.Text, sortKey, SortDir(dir))
}
